// Package db provides report persistence backed by PostgreSQL, plus an
// in-memory store for running without a database.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

const createReportsTable = `
CREATE TABLE IF NOT EXISTS reports (
	id SERIAL PRIMARY KEY,
	topic TEXT NOT NULL,
	content TEXT NOT NULL,
	sources JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const createReportsIndex = `
CREATE INDEX IF NOT EXISTS reports_created_at_idx ON reports (created_at DESC)`

// EnsureSchema creates the reports table and its index if they are missing.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{createReportsTable, createReportsIndex} {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}
