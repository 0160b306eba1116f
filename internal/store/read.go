package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/soundleaf/soundleaf/internal/catalog"
)

const baseAudiobookQuery = `SELECT
	ab.id, ab.title, ab.language, ab.cover_url, ab.format, ab.unabridged,
	ab.description, ab.very_short_description, ab.description_for_embeddings,
	ab.bitrate, ab.file_size, ab.path, ab.timestamp_created, ab.timestamp_ingested,
	COALESCE(array_agg(DISTINCT aut.id) FILTER (WHERE aut.name IS NOT NULL), '{}') AS author_ids,
	COALESCE(array_agg(DISTINCT aut.name) FILTER (WHERE aut.name IS NOT NULL), '{}') AS author_names,
	COALESCE(array_agg(DISTINCT rdr.id) FILTER (WHERE rdr.name IS NOT NULL), '{}') AS reader_ids,
	COALESCE(array_agg(DISTINCT rdr.name) FILTER (WHERE rdr.name IS NOT NULL), '{}') AS reader_names,
	COALESCE(array_agg(DISTINCT cat.id) FILTER (WHERE cat.name IS NOT NULL), '{}') AS category_ids,
	COALESCE(array_agg(DISTINCT cat.name) FILTER (WHERE cat.name IS NOT NULL), '{}') AS category_names,
	COALESCE(array_agg(DISTINCT kw.id) FILTER (WHERE kw.name IS NOT NULL), '{}') AS keyword_ids,
	COALESCE(array_agg(DISTINCT kw.name) FILTER (WHERE kw.name IS NOT NULL), '{}') AS keyword_names,
	ser.id AS series_id,
	ser.title AS series_title
FROM audiobook ab
LEFT JOIN audiobook_author aba ON ab.id = aba.audiobook_id
LEFT JOIN author aut ON aba.author_id = aut.id
LEFT JOIN audiobook_reader abr ON ab.id = abr.audiobook_id
LEFT JOIN reader rdr ON abr.reader_id = rdr.id
LEFT JOIN audiobook_category abc ON ab.id = abc.audiobook_id
LEFT JOIN category cat ON abc.category_id = cat.id
LEFT JOIN audiobook_keyword abk ON ab.id = abk.audiobook_id
LEFT JOIN keyword kw ON abk.keyword_id = kw.id
LEFT JOIN series ser ON ab.series_id = ser.id`

const groupByAudiobook = `GROUP BY ab.id, ser.id, ser.title`

// GetAudiobooks serves every paginated catalog read variant. Results of the
// id-list variant keep the caller's id order so search relevance survives
// the hydration step.
func (s *Store) GetAudiobooks(ctx context.Context, req catalog.CatalogRequest, limit uint32) ([]catalog.AudiobookWithRelations, error) {
	switch req.Kind {
	case catalog.CatalogByID:
		return s.audiobooksByIDs(ctx, []int64{req.RelationID})
	case catalog.CatalogByIDList:
		ids, err := parseIDList(req.IDList)
		if err != nil {
			return nil, err
		}
		return s.audiobooksByIDs(ctx, ids)
	case catalog.CatalogMostRecent:
		return s.recentAudiobooks(ctx, req.Page, limit)
	case catalog.CatalogByAuthor, catalog.CatalogByReader, catalog.CatalogByCategory,
		catalog.CatalogByKeyword, catalog.CatalogBySeries:
		return s.audiobooksByRelation(ctx, req, limit)
	default:
		return nil, fmt.Errorf("unknown catalog request kind %q", req.Kind)
	}
}

func (s *Store) recentAudiobooks(ctx context.Context, page, limit uint32) ([]catalog.AudiobookWithRelations, error) {
	lim, offset := limitOffset(page, limit)
	query := fmt.Sprintf(`WITH filtered_ab AS (
	SELECT ab.id FROM audiobook ab
	ORDER BY ab.timestamp_ingested DESC
	LIMIT $1 OFFSET $2
)
%s
JOIN filtered_ab ON ab.id = filtered_ab.id
%s
ORDER BY ab.timestamp_ingested DESC`, baseAudiobookQuery, groupByAudiobook)
	return s.queryAudiobooks(ctx, query, lim, offset)
}

func (s *Store) audiobooksByRelation(ctx context.Context, req catalog.CatalogRequest, limit uint32) ([]catalog.AudiobookWithRelations, error) {
	lim, offset := limitOffset(req.Page, limit)

	var filter string
	switch req.Kind {
	case catalog.CatalogBySeries:
		filter = `SELECT ab.id FROM audiobook ab
	JOIN series s ON ab.series_id = s.id
	WHERE s.id = $1
	ORDER BY ab.timestamp_ingested DESC
	LIMIT $2 OFFSET $3`
	default:
		rt := relations[relationForKind(req.Kind)]
		filter = fmt.Sprintf(`SELECT ab.id FROM audiobook ab
	JOIN %[1]s j ON ab.id = j.audiobook_id
	JOIN %[2]s r ON j.%[3]s = r.id
	WHERE r.id = $1
	ORDER BY ab.timestamp_ingested DESC
	LIMIT $2 OFFSET $3`, rt.join, rt.entity, rt.joinColumn)
	}

	query := fmt.Sprintf(`WITH filtered_ab AS (
	%s
)
%s
JOIN filtered_ab ON ab.id = filtered_ab.id
%s
ORDER BY ab.timestamp_ingested DESC`, filter, baseAudiobookQuery, groupByAudiobook)
	return s.queryAudiobooks(ctx, query, req.RelationID, lim, offset)
}

func (s *Store) audiobooksByIDs(ctx context.Context, ids []int64) ([]catalog.AudiobookWithRelations, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("%s WHERE ab.id = ANY($1) %s", baseAudiobookQuery, groupByAudiobook)
	books, err := s.queryAudiobooks(ctx, query, ids)
	if err != nil {
		return nil, err
	}

	// The query does not preserve the input order, which carries search
	// relevance. Re-sort to match.
	position := make(map[int64]int, len(ids))
	for i, id := range ids {
		position[id] = i
	}
	sort.SliceStable(books, func(i, j int) bool {
		return position[books[i].ID] < position[books[j].ID]
	})
	return books, nil
}

func (s *Store) queryAudiobooks(ctx context.Context, query string, args ...any) ([]catalog.AudiobookWithRelations, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audiobooks: %w", err)
	}
	defer rows.Close()

	var out []catalog.AudiobookWithRelations
	for rows.Next() {
		book, err := scanAudiobookRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read audiobook rows: %w", err)
	}
	return out, nil
}

func scanAudiobookRow(row pgx.Rows) (catalog.AudiobookWithRelations, error) {
	var b catalog.AudiobookWithRelations
	var authorIDs, readerIDs, categoryIDs, keywordIDs []int64
	var authorNames, readerNames, categoryNames, keywordNames []string
	var seriesID *int64
	var seriesTitle *string

	err := row.Scan(
		&b.ID, &b.Title, &b.Language, &b.CoverURL, &b.Format, &b.Unabridged,
		&b.Description, &b.VeryShortDescription, &b.EmbeddableDescription,
		&b.Bitrate, &b.FileSizeBytes, &b.Path, &b.TimestampCreated, &b.TimestampIngested,
		&authorIDs, &authorNames,
		&readerIDs, &readerNames,
		&categoryIDs, &categoryNames,
		&keywordIDs, &keywordNames,
		&seriesID, &seriesTitle,
	)
	if err != nil {
		return catalog.AudiobookWithRelations{}, fmt.Errorf("scan audiobook row: %w", err)
	}

	b.Authors = zipEntities(authorIDs, authorNames)
	b.Readers = zipEntities(readerIDs, readerNames)
	b.Categories = zipEntities(categoryIDs, categoryNames)
	b.Keywords = zipEntities(keywordIDs, keywordNames)
	if seriesID != nil && seriesTitle != nil {
		b.SeriesID = seriesID
		b.Series = &catalog.RelationEntity{ID: *seriesID, Name: *seriesTitle}
	}
	return b, nil
}

func zipEntities(ids []int64, names []string) []catalog.RelationEntity {
	n := min(len(ids), len(names))
	out := make([]catalog.RelationEntity, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, catalog.RelationEntity{ID: ids[i], Name: names[i]})
	}
	return out
}

func relationForKind(kind catalog.CatalogRequestKind) catalog.RelationType {
	switch kind {
	case catalog.CatalogByAuthor:
		return catalog.RelationAuthor
	case catalog.CatalogByReader:
		return catalog.RelationReader
	case catalog.CatalogByCategory:
		return catalog.RelationCategory
	case catalog.CatalogBySeries:
		return catalog.RelationSeries
	default:
		return catalog.RelationKeyword
	}
}

func parseIDList(list string) ([]int64, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	parts := strings.Split(list, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse id %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func limitOffset(page, limit uint32) (int64, int64) {
	if page > 0 {
		page--
	}
	return int64(limit), int64(page) * int64(limit)
}
