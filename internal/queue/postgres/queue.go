// Package postgres backs the message queues with per-queue Postgres tables.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/soundleaf/soundleaf/internal/queue"
)

// DB is the subset of pgxpool.Pool the queue needs. pgxmock satisfies it
// too.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queue stores messages in queue_<name> tables, one row per message.
type Queue struct {
	db     DB
	logger *zap.Logger
}

// New constructs a Queue on an open connection pool.
func New(db DB, logger *zap.Logger) *Queue {
	return &Queue{db: db, logger: logger}
}

// EnsureQueue creates the backing table for a queue if it does not exist.
func (q *Queue) EnsureQueue(ctx context.Context, queueName string) error {
	table, err := tableName(queueName)
	if err != nil {
		return err
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		msg_id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		enqueued_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		message JSONB NOT NULL
	)`, table)
	if _, err := q.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create queue %s: %w", queueName, err)
	}
	return nil
}

// Send appends a message to the named queue.
func (q *Queue) Send(ctx context.Context, queueName string, payload any) error {
	table, err := tableName(queueName)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message for %s: %w", queueName, err)
	}
	sql := fmt.Sprintf("INSERT INTO %s (message) VALUES ($1)", table)
	if _, err := q.db.Exec(ctx, sql, body); err != nil {
		return fmt.Errorf("send to %s: %w", queueName, err)
	}
	q.logger.Debug("message sent", zap.String("queue", queueName))
	return nil
}

// Pop removes the oldest message from the named queue and decodes it into
// out. It reports ok=false when the queue is empty. The row is gone once
// this returns; there is no redelivery.
func (q *Queue) Pop(ctx context.Context, queueName string, out any) (bool, error) {
	table, err := tableName(queueName)
	if err != nil {
		return false, err
	}
	sql := fmt.Sprintf(`DELETE FROM %[1]s
		WHERE msg_id = (
			SELECT msg_id FROM %[1]s
			ORDER BY msg_id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING message`, table)

	var body []byte
	if err := q.db.QueryRow(ctx, sql).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("pop from %s: %w", queueName, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("decode message from %s: %w", queueName, err)
	}
	return true, nil
}

func tableName(queueName string) (string, error) {
	if err := queue.ValidateName(queueName); err != nil {
		return "", err
	}
	return "queue_" + queueName, nil
}
