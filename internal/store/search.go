package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/soundleaf/soundleaf/internal/catalog"
)

// vectorTopKSQL orders by inner product distance; the negated distance is
// returned as a similarity score.
const vectorTopKSQL = `SELECT
	id,
	(optimized_description_embedding <#> ($1)::vector) * -1 AS score
FROM audiobook
ORDER BY (optimized_description_embedding <#> ($1)::vector) ASC
LIMIT $2`

const lexicalTopKSQL = `SELECT
	id,
	ts_rank(search_content, websearch_to_tsquery('english', $1)) AS score
FROM audiobook
WHERE search_content @@ websearch_to_tsquery('english', $1)
ORDER BY score DESC
LIMIT $2`

// VectorTopK returns the k nearest audiobooks to the query embedding, best
// first.
func (s *Store) VectorTopK(ctx context.Context, embedding []float32, k int) ([]catalog.RankedID, error) {
	rows, err := s.db.Query(ctx, vectorTopKSQL, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()
	return scanRanked(rows)
}

// LexicalTopK returns the k best full-text matches for the query string,
// best first.
func (s *Store) LexicalTopK(ctx context.Context, query string, k int) ([]catalog.RankedID, error) {
	rows, err := s.db.Query(ctx, lexicalTopKSQL, query, k)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()
	return scanRanked(rows)
}

func scanRanked(rows pgx.Rows) ([]catalog.RankedID, error) {
	var out []catalog.RankedID
	for rows.Next() {
		var r catalog.RankedID
		if err := rows.Scan(&r.ID, &r.Score); err != nil {
			return nil, fmt.Errorf("scan ranked row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read ranked rows: %w", err)
	}
	return out, nil
}
