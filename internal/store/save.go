package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/soundleaf/soundleaf/internal/catalog"
)

const upsertSeriesSQL = `INSERT INTO series (title) VALUES ($1)
ON CONFLICT (title) DO UPDATE SET title = EXCLUDED.title
RETURNING id`

const insertAudiobookSQL = `INSERT INTO audiobook (
	title, language, cover_url, format, unabridged, description, bitrate, file_size, series_id,
	path, timestamp_created, timestamp_ingested, very_short_description,
	description_for_embeddings, optimized_description_embedding
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), $12, $13, $14::vector)
RETURNING id`

const insertMetadataSQL = `INSERT INTO hardcover_audiobook_metadata (audiobook_id, metadata) VALUES ($1, $2)`

// AudiobookExists reports whether an audiobook with the given path was
// already ingested.
func (s *Store) AudiobookExists(ctx context.Context, path string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM audiobook WHERE path = $1)", path).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check audiobook exists: %w", err)
	}
	return exists, nil
}

// SaveAudiobook persists an extracted audiobook in a single transaction: the
// series upsert, the record itself, every relation entity with its join row,
// and the optional third-party metadata. Either all rows land or none do.
func (s *Store) SaveAudiobook(ctx context.Context, req catalog.SaveAudiobookRequest) (int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin save transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var seriesID *int64
	if req.Fields.Series != "" {
		var id int64
		if err := tx.QueryRow(ctx, upsertSeriesSQL, req.Fields.Series).Scan(&id); err != nil {
			return 0, fmt.Errorf("upsert series %q: %w", req.Fields.Series, err)
		}
		seriesID = &id
	}

	created := parseUploadDate(req.Fields.UploadDate, time.Now().UTC())

	var audiobookID int64
	err = tx.QueryRow(ctx, insertAudiobookSQL,
		req.Fields.Title,
		req.Fields.Language,
		req.Fields.CoverURL,
		req.Fields.Format,
		req.Fields.Unabridged,
		req.Fields.Description,
		parseBitrate(req.Fields.Bitrate),
		parseFileSize(req.Fields.FileSize),
		seriesID,
		req.Path,
		created,
		req.VeryShortDescription,
		req.EmbeddableDescription,
		pgvector.NewVector(req.Embedding),
	).Scan(&audiobookID)
	if err != nil {
		return 0, fmt.Errorf("insert audiobook %q: %w", req.Fields.Title, err)
	}

	links := []struct {
		rel   catalog.RelationType
		names []string
	}{
		{catalog.RelationAuthor, req.Fields.Authors},
		{catalog.RelationReader, req.Fields.Readers},
		{catalog.RelationCategory, req.Fields.Categories},
		{catalog.RelationKeyword, req.Fields.Keywords},
	}
	for _, link := range links {
		rt := relations[link.rel]
		for _, name := range link.names {
			if name == "" {
				continue
			}
			upsert := fmt.Sprintf(`INSERT INTO %s (name) VALUES ($1)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id`, rt.entity)
			var entityID int64
			if err := tx.QueryRow(ctx, upsert, name).Scan(&entityID); err != nil {
				return 0, fmt.Errorf("upsert %s %q: %w", rt.entity, name, err)
			}
			join := fmt.Sprintf(`INSERT INTO %s (audiobook_id, %s) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				rt.join, rt.joinColumn)
			if _, err := tx.Exec(ctx, join, audiobookID, entityID); err != nil {
				return 0, fmt.Errorf("link %s %q: %w", rt.entity, name, err)
			}
		}
	}

	if req.Metadata != nil {
		body, err := json.Marshal(req.Metadata)
		if err != nil {
			return 0, fmt.Errorf("marshal metadata: %w", err)
		}
		if _, err := tx.Exec(ctx, insertMetadataSQL, audiobookID, body); err != nil {
			return 0, fmt.Errorf("insert metadata: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit save transaction: %w", err)
	}
	s.logger.Info("audiobook saved",
		zap.Int64("audiobook_id", audiobookID),
		zap.String("title", req.Fields.Title))
	return audiobookID, nil
}

// parseBitrate reads values like "64 kbps"; anything unparseable stores as
// NULL.
func parseBitrate(s string) *int32 {
	v := strings.TrimSpace(strings.ToLower(s))
	v, ok := strings.CutSuffix(v, "kbps")
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 32)
	if err != nil {
		return nil
	}
	out := int32(n)
	return &out
}

// parseFileSize reads "1.2 GB" / "850 MB" into bytes, or a bare byte count.
func parseFileSize(s string) *int64 {
	v := strings.TrimSpace(strings.ToLower(s))
	if gb, ok := strings.CutSuffix(v, "gb"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(gb), 64)
		if err != nil {
			return nil
		}
		out := int64(f * 1_000_000_000)
		return &out
	}
	if mb, ok := strings.CutSuffix(v, "mb"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(mb), 64)
		if err != nil {
			return nil
		}
		out := int64(f * 1_000_000)
		return &out
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// parseUploadDate reads a YYYY-MM-DD upload date, falling back to the given
// time when missing or malformed.
func parseUploadDate(s string, fallback time.Time) time.Time {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return t.UTC()
}
