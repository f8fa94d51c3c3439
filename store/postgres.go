package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"storefront-access-gate/config"
)

// NewPostgresDB opens and pings a PostgreSQL connection pool.
func NewPostgresDB(ctx context.Context, cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS stores (
	id                     TEXT PRIMARY KEY,
	name                   TEXT NOT NULL DEFAULT '',
	owner_email            TEXT NOT NULL DEFAULT '',
	subscription_status    TEXT NOT NULL DEFAULT 'prospect',
	is_subscription_active BOOLEAN NOT NULL DEFAULT FALSE,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	subscription_end_date  TIMESTAMPTZ,
	has_created_category   BOOLEAN NOT NULL DEFAULT FALSE,
	product_uploads        INTEGER NOT NULL DEFAULT 0 CHECK (product_uploads >= 0),
	views                  INTEGER NOT NULL DEFAULT 0 CHECK (views >= 0)
)`

// EnsureSchema creates the stores table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create stores table: %w", err)
	}
	return nil
}
