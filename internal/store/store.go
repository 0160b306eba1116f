// Package store implements Postgres persistence for the catalog: the
// transactional ingest writer, the read and aggregate queries, the retrieval
// sub-queries and the notification tables.
package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
	"go.uber.org/zap"

	"github.com/soundleaf/soundleaf/internal/catalog"
)

// DB is the subset of pgxpool.Pool the store needs. pgxmock satisfies it
// too.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store wraps a connection pool with the catalog persistence operations.
type Store struct {
	db     DB
	logger *zap.Logger
}

// New constructs a Store on an open pool or mock.
func New(db DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// poolConfig parses the DSN and applies the configured connection limits.
// Zero limits keep the driver defaults. Every connection registers the
// pgvector types so embeddings bind natively.
func poolConfig(dsn string, maxConns, minConns int32) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns > 0 {
		cfg.MinConns = minConns
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}
	return cfg, nil
}

// NewPool opens a pgx connection pool against the given DSN and verifies it
// with a ping.
func NewPool(ctx context.Context, dsn string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := poolConfig(dsn, maxConns, minConns)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// psql builds queries with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// relationTables maps a relation type to the tables that carry it.
type relationTables struct {
	entity     string
	nameColumn string
	join       string
	joinColumn string
	subs       string
}

var relations = map[catalog.RelationType]relationTables{
	catalog.RelationAuthor: {
		entity: "author", nameColumn: "name",
		join: "audiobook_author", joinColumn: "author_id",
		subs: "user_author_notification",
	},
	catalog.RelationReader: {
		entity: "reader", nameColumn: "name",
		join: "audiobook_reader", joinColumn: "reader_id",
		subs: "user_reader_notification",
	},
	catalog.RelationCategory: {
		entity: "category", nameColumn: "name",
		join: "audiobook_category", joinColumn: "category_id",
		subs: "user_category_notification",
	},
	catalog.RelationKeyword: {
		entity: "keyword", nameColumn: "name",
		join: "audiobook_keyword", joinColumn: "keyword_id",
		subs: "user_keyword_notification",
	},
	catalog.RelationSeries: {
		entity: "series", nameColumn: "title",
		joinColumn: "series_id",
		subs:       "user_series_notification",
	},
}

func relationFor(rel catalog.RelationType) (relationTables, error) {
	rt, ok := relations[rel]
	if !ok {
		return relationTables{}, fmt.Errorf("unknown relation type %q", rel)
	}
	return rt, nil
}

