// Package store provides conversation-state storage backends.
//
// This file implements a PostgreSQL-backed store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore implements Store on a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Get returns the document stored under key, honoring expiry.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var doc []byte
	var expiresAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT state, expires_at FROM conversation_state WHERE channel_key = $1`, key,
	).Scan(&doc, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("PostgresStore Get failed", "error", err, "key", key)
		return nil, fmt.Errorf("postgres get %s: %w", key, err)
	}
	if expiresAt.Valid && time.Now().After(expiresAt.Time) {
		_ = s.Delete(ctx, key)
		return nil, ErrNotFound
	}
	return doc, nil
}

// Set writes the document under key, replacing any previous value.
func (s *PostgresStore) Set(ctx context.Context, key string, doc []byte, ttl time.Duration) error {
	var expiresAt any
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_state (channel_key, state, expires_at, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (channel_key) DO UPDATE SET
		   state = EXCLUDED.state,
		   expires_at = EXCLUDED.expires_at,
		   updated_at = NOW()`,
		key, doc, expiresAt)
	if err != nil {
		slog.Error("PostgresStore Set failed", "error", err, "key", key)
		return fmt.Errorf("postgres set %s: %w", key, err)
	}
	slog.Debug("PostgresStore Set succeeded", "key", key, "bytes", len(doc))
	return nil
}

// Delete removes the document under key.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_state WHERE channel_key = $1`, key); err != nil {
		slog.Error("PostgresStore Delete failed", "error", err, "key", key)
		return fmt.Errorf("postgres delete %s: %w", key, err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
