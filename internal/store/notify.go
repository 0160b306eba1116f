package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/soundleaf/soundleaf/internal/catalog"
	"github.com/soundleaf/soundleaf/internal/metrics"
)

// upsertNotificationSQL folds the new reason into the existing row's reason
// set; re-running a pass never duplicates a reason.
const upsertNotificationSQL = `INSERT INTO user_notification (user_id, audiobook_id, reasons)
VALUES ($1, $2, ARRAY[$3]::notification_reason[])
ON CONFLICT (user_id, audiobook_id)
DO UPDATE SET
reasons = (
	SELECT array_agg(DISTINCT reason)
	FROM unnest(user_notification.reasons || EXCLUDED.reasons) AS t(reason)
)`

// SeriesID returns the series of an audiobook, nil when it belongs to none.
func (s *Store) SeriesID(ctx context.Context, audiobookID int64) (*int64, error) {
	var seriesID *int64
	err := s.db.QueryRow(ctx, "SELECT series_id FROM audiobook WHERE id = $1", audiobookID).Scan(&seriesID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load series id: %w", err)
	}
	return seriesID, nil
}

// RelatedEntityIDs returns the ids of every entity of the given relation
// linked to the audiobook.
func (s *Store) RelatedEntityIDs(ctx context.Context, rel catalog.RelationType, audiobookID int64) ([]int64, error) {
	rt, err := relationFor(rel)
	if err != nil {
		return nil, err
	}
	if rt.join == "" {
		return nil, fmt.Errorf("relation %q has no join table", rel)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE audiobook_id = $1", rt.joinColumn, rt.join)
	return s.queryIDs(ctx, query, audiobookID)
}

// SubscriberIDs returns the users subscribed to one entity of the given
// relation.
func (s *Store) SubscriberIDs(ctx context.Context, rel catalog.RelationType, entityID int64) ([]int64, error) {
	rt, err := relationFor(rel)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT user_id FROM %s WHERE %s = $1", rt.subs, rt.joinColumn)
	return s.queryIDs(ctx, query, entityID)
}

// UpsertNotifications records one notification per user for the audiobook,
// extending the reason set of rows that already exist. All users are written
// in one transaction.
func (s *Store) UpsertNotifications(ctx context.Context, userIDs []int64, audiobookID int64, reason catalog.NotificationReason) error {
	if len(userIDs) == 0 {
		return nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin notification transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	for _, userID := range userIDs {
		if _, err := tx.Exec(ctx, upsertNotificationSQL, userID, audiobookID, string(reason)); err != nil {
			return fmt.Errorf("upsert notification for user %d: %w", userID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit notification transaction: %w", err)
	}
	metrics.ObserveNotification(string(reason), len(userIDs))
	s.logger.Debug("notifications upserted",
		zap.Int64("audiobook_id", audiobookID),
		zap.String("reason", string(reason)),
		zap.Int("users", len(userIDs)))
	return nil
}

func (s *Store) queryIDs(ctx context.Context, query string, arg any) ([]int64, error) {
	rows, err := s.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read ids: %w", err)
	}
	return out, nil
}
