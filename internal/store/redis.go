// Package store provides conversation-state storage backends.
//
// This file implements the Redis-backed store, the primary backend in
// production deployments.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces conversation documents in Redis.
const DefaultKeyPrefix = "vimbiso:state:"

// RedisStore implements Store on a Redis server. Documents are stored as
// whole JSON blobs under a prefixed key; writes are last-write-wins at the
// document level.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store from a redis:// DSN.
func NewRedisStore(opts ...Option) (*RedisStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewRedisStore invoked", "DSN_set", cfg.DSN != "", "ttl", cfg.TTL)

	ropts, err := redis.ParseURL(cfg.DSN)
	if err != nil {
		slog.Error("RedisStore invalid DSN", "error", err)
		return nil, fmt.Errorf("invalid redis DSN: %w", err)
	}

	client := redis.NewClient(ropts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		slog.Error("RedisStore ping failed", "error", err)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	slog.Debug("RedisStore connected")

	return &RedisStore{client: client, prefix: DefaultKeyPrefix, ttl: cfg.TTL}, nil
}

// NewRedisStoreFromClient wraps an existing client; used by tests.
func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: DefaultKeyPrefix, ttl: ttl}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

// Get returns the document stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("RedisStore Get failed", "error", err, "key", key)
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

// Set writes the document under key. A zero ttl falls back to the store's
// default expiry.
func (s *RedisStore) Set(ctx context.Context, key string, doc []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = s.ttl
	}
	if err := s.client.Set(ctx, s.key(key), doc, ttl).Err(); err != nil {
		slog.Error("RedisStore Set failed", "error", err, "key", key)
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	slog.Debug("RedisStore Set succeeded", "key", key, "bytes", len(doc))
	return nil
}

// Delete removes the document under key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		slog.Error("RedisStore Delete failed", "error", err, "key", key)
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Ping verifies the Redis server is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
