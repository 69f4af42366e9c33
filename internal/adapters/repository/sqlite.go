package repository

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go sqlite driver
)

var sqliteDialect = dialect{
	name: "sqlite",
	migration: []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`CREATE TABLE IF NOT EXISTS match_document (
			id INTEGER PRIMARY KEY,
			doc TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			balance INTEGER NOT NULL CHECK (balance >= 0),
			rank INTEGER NOT NULL DEFAULT 0,
			permissions TEXT NOT NULL DEFAULT '',
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS accounts_rank_idx ON accounts (rank DESC, display_name, id)`,
		`CREATE TABLE IF NOT EXISTS wagers (
			account_id TEXT PRIMARY KEY,
			participant TEXT NOT NULL,
			amount INTEGER NOT NULL CHECK (amount >= 1),
			placed_at DATETIME NOT NULL
		)`,
	},
}

// NewSQLiteStore opens (creating if needed) the database file at path.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (Store, error) {
	o := defaultOptions()
	// sqlite serializes writers; one connection avoids SQLITE_BUSY churn.
	o.maxOpenConns = 1
	for _, opt := range opts {
		opt(&o)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newSQLStore(ctx, db, sqliteDialect, o)
}
