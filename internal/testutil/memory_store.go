package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/acronymlab/acrogen/pkg/cache"
	"github.com/acronymlab/acrogen/pkg/validate"
)

// MemoryStore is an in-memory stand-in for the Redis-backed store. It
// mirrors the store's semantics: immutable results, durable failure
// markers, TTL-bounded cache entries. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	results  map[string]validate.Record
	failures map[string]cache.FailureRecord
	cached   map[string]cache.Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		results:  make(map[string]validate.Record),
		failures: make(map[string]cache.FailureRecord),
		cached:   make(map[string]cache.Entry),
	}
}

func (s *MemoryStore) GetResult(ctx context.Context, acronym string) (*validate.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.results[acronym]
	if !ok {
		return nil, cache.ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) PutResult(ctx context.Context, rec validate.Record) error {
	if rec.Acronym == "" {
		return fmt.Errorf("record has no acronym")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.results[rec.Acronym]; exists {
		return fmt.Errorf("result for %q: %w", rec.Acronym, cache.ErrAlreadyExists)
	}
	s.results[rec.Acronym] = rec
	return nil
}

func (s *MemoryStore) GetFailure(ctx context.Context, acronym string) (*cache.FailureRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.failures[acronym]
	if !ok {
		return nil, cache.ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) PutFailure(ctx context.Context, rec cache.FailureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[rec.Acronym] = rec
	return nil
}

func (s *MemoryStore) GetCached(ctx context.Context, key cache.CacheKey) (*cache.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cached[key.String()]
	if !ok || entry.IsExpired() {
		delete(s.cached, key.String())
		return nil, cache.ErrNotFound
	}
	return &entry, nil
}

func (s *MemoryStore) PutCached(ctx context.Context, key cache.CacheKey, rec validate.Record, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached[key.String()] = cache.Entry{Record: rec, CachedAt: now, Expires: now.Add(ttl)}
	return nil
}

// Results returns a copy of all persisted results.
func (s *MemoryStore) Results() map[string]validate.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]validate.Record, len(s.results))
	for k, v := range s.results {
		out[k] = v
	}
	return out
}

// Failures returns a copy of all persisted failure markers.
func (s *MemoryStore) Failures() map[string]cache.FailureRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]cache.FailureRecord, len(s.failures))
	for k, v := range s.failures {
		out[k] = v
	}
	return out
}
