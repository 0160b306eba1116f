package store

import (
	"context"
	"fmt"

	"github.com/soundleaf/soundleaf/internal/catalog"
)

// GetMeta serves the aggregate read variants: relation listings ordered
// alphabetically or by published-audiobook count, and audiobook counts.
func (s *Store) GetMeta(ctx context.Context, req catalog.MetaRequest) (catalog.MetaResponse, error) {
	switch req.Kind {
	case catalog.MetaAlphabetical:
		entities, err := s.listEntities(ctx, req, false)
		if err != nil {
			return catalog.MetaResponse{}, err
		}
		return catalog.MetaResponse{Entities: entities}, nil
	case catalog.MetaByPublished:
		entities, err := s.listEntities(ctx, req, true)
		if err != nil {
			return catalog.MetaResponse{}, err
		}
		return catalog.MetaResponse{Entities: entities}, nil
	case catalog.MetaCount:
		count, err := s.countForRelation(ctx, req.Relation, req.RelationID)
		if err != nil {
			return catalog.MetaResponse{}, err
		}
		return catalog.MetaResponse{Count: count}, nil
	case catalog.MetaCountAll:
		var count int64
		if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM audiobook").Scan(&count); err != nil {
			return catalog.MetaResponse{}, fmt.Errorf("count audiobooks: %w", err)
		}
		return catalog.MetaResponse{Count: count}, nil
	default:
		return catalog.MetaResponse{}, fmt.Errorf("unknown meta request kind %q", req.Kind)
	}
}

func (s *Store) listEntities(ctx context.Context, req catalog.MetaRequest, byPublished bool) ([]catalog.RelationEntity, error) {
	rt, err := relationFor(req.Relation)
	if err != nil {
		return nil, err
	}
	lim, offset := limitOffset(req.Page, req.Limit)

	builder := psql.
		Select("e.id", "e."+rt.nameColumn).
		From(rt.entity + " e")
	if byPublished {
		if req.Relation == catalog.RelationSeries {
			builder = builder.
				LeftJoin("audiobook ab ON e.id = ab.series_id").
				GroupBy("e.id", "e."+rt.nameColumn).
				OrderBy("COUNT(ab.id) DESC", "e."+rt.nameColumn+" ASC")
		} else {
			builder = builder.
				LeftJoin(fmt.Sprintf("%s j ON e.id = j.%s", rt.join, rt.joinColumn)).
				GroupBy("e.id", "e."+rt.nameColumn).
				OrderBy("COUNT(j.audiobook_id) DESC", "e."+rt.nameColumn+" ASC")
		}
	} else {
		builder = builder.OrderBy("e." + rt.nameColumn + " ASC")
	}
	query, args, err := builder.
		Suffix("LIMIT ? OFFSET ?", lim, offset).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s listing: %w", rt.entity, err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", rt.entity, err)
	}
	defer rows.Close()

	var out []catalog.RelationEntity
	for rows.Next() {
		var e catalog.RelationEntity
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", rt.entity, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s rows: %w", rt.entity, err)
	}
	return out, nil
}

func (s *Store) countForRelation(ctx context.Context, rel catalog.RelationType, relationID int64) (int64, error) {
	rt, err := relationFor(rel)
	if err != nil {
		return 0, err
	}
	var query string
	if rel == catalog.RelationSeries {
		query = "SELECT COUNT(*) FROM audiobook WHERE series_id = $1"
	} else {
		query = fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = $1", rt.join, rt.joinColumn)
	}
	var count int64
	if err := s.db.QueryRow(ctx, query, relationID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count audiobooks for %s: %w", rel, err)
	}
	return count, nil
}
