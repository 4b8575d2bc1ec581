package store

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a map-backed Store for tests and local development.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[string]memoryEntry
}

type memoryEntry struct {
	doc       []byte
	expiresAt time.Time // zero means no expiry
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{docs: make(map[string]memoryEntry)}
}

// Get returns the document stored under key.
func (s *InMemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	entry, ok := s.docs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		_ = s.Delete(ctx, key)
		return nil, ErrNotFound
	}
	// Copy so callers cannot mutate stored bytes.
	out := make([]byte, len(entry.doc))
	copy(out, entry.doc)
	return out, nil
}

// Set writes the document under key.
func (s *InMemoryStore) Set(ctx context.Context, key string, doc []byte, ttl time.Duration) error {
	entry := memoryEntry{doc: make([]byte, len(doc))}
	copy(entry.doc, doc)
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.mu.Lock()
	s.docs[key] = entry
	s.mu.Unlock()
	return nil
}

// Delete removes the document under key.
func (s *InMemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.docs, key)
	s.mu.Unlock()
	return nil
}

// Ping always succeeds.
func (s *InMemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (s *InMemoryStore) Close() error {
	return nil
}
