package repository

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // postgres driver
)

var postgresDialect = dialect{
	name:     "postgres",
	numbered: true,
	migration: []string{
		`CREATE TABLE IF NOT EXISTS match_document (
			id INTEGER PRIMARY KEY,
			doc TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			balance BIGINT NOT NULL CHECK (balance >= 0),
			rank BIGINT NOT NULL DEFAULT 0,
			permissions TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS accounts_rank_idx ON accounts (rank DESC, display_name, id)`,
		`CREATE TABLE IF NOT EXISTS wagers (
			account_id TEXT PRIMARY KEY,
			participant TEXT NOT NULL,
			amount BIGINT NOT NULL CHECK (amount >= 1),
			placed_at TIMESTAMPTZ NOT NULL
		)`,
	},
}

// NewPostgresStore connects to dsn and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string, opts ...Option) (Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return newSQLStore(ctx, db, postgresDialect, o)
}
