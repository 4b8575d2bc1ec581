// Package store provides conversation-state storage backends for
// vimbiso-chatserver.
//
// Each backend persists one opaque JSON document per channel key with
// atomic get/set semantics and optional expiry. Business meaning of the
// document lives entirely in the state package.
package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by Get when no document exists for the key.
var ErrNotFound = errors.New("store: key not found")

// Store is the key-value contract the state manager depends on. A zero TTL
// means the document does not expire.
type Store interface {
	// Get returns the document stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes the document under key, replacing any previous value.
	Set(ctx context.Context, key string, doc []byte, ttl time.Duration) error

	// Delete removes the document under key. Deleting a missing key is not
	// an error.
	Delete(ctx context.Context, key string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string        // backend connection string (redis://, postgres://, or a file path)
	TTL time.Duration // default document expiry; 0 disables expiry
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the backend connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithTTL sets the default document expiry.
func WithTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.TTL = ttl }
}

// DetectDSNType classifies a DSN as "redis", "postgres" or "sqlite3" so
// callers can auto-select a backend from a single configuration value.
func DetectDSNType(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		return "redis"
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"),
		strings.Contains(dsn, "host=") && strings.Contains(dsn, "dbname="):
		return "postgres"
	default:
		return "sqlite3"
	}
}

// New creates a store backend based on the DSN type. An empty DSN yields an
// in-memory store, which is only suitable for tests and local development.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return NewInMemoryStore(), nil
	}
	switch DetectDSNType(cfg.DSN) {
	case "redis":
		return NewRedisStore(opts...)
	case "postgres":
		return NewPostgresStore(opts...)
	default:
		return NewSQLiteStore(opts...)
	}
}
