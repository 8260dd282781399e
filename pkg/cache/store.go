package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/acronymlab/acrogen/pkg/validate"
)

var (
	// ErrNotFound indicates the requested key holds no entry.
	ErrNotFound = errors.New("not found")

	// ErrInvalidEntry indicates a stored entry could not be decoded.
	ErrInvalidEntry = errors.New("invalid stored entry")

	// ErrAlreadyExists indicates a durable result was already written for
	// the key. Callers that lose the write race can treat the stored result
	// as canonical; any other PutResult error means nothing durable exists.
	ErrAlreadyExists = errors.New("result already persisted")
)

// Store handles result persistence and repeat-request caching on Redis.
type Store struct {
	redis *redis.Client
}

// NewStore creates a store on the given Redis client.
func NewStore(redisClient *redis.Client) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Store{redis: redisClient}
}

// GetResult loads the durable result for an acronym. Returns ErrNotFound
// when the item has not been processed.
func (s *Store) GetResult(ctx context.Context, acronym string) (*validate.Record, error) {
	data, err := s.redis.Get(ctx, resultKey(acronym)).Bytes()
	if err != nil {
		if err == redis.Nil {
			StoreMisses.WithLabelValues("result").Inc()
			return nil, ErrNotFound
		}
		StoreErrors.WithLabelValues("get_result").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var rec validate.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		StoreErrors.WithLabelValues("get_result").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	StoreHits.WithLabelValues("result").Inc()
	return &rec, nil
}

// PutResult persists a terminal result, keyed by its acronym, with no
// expiry. Results are immutable once written; a second write for the same
// acronym is rejected so concurrent workers cannot produce duplicate
// terminal results.
func (s *Store) PutResult(ctx context.Context, rec validate.Record) error {
	if rec.Acronym == "" {
		return fmt.Errorf("record has no acronym")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		StoreErrors.WithLabelValues("put_result").Inc()
		return fmt.Errorf("marshal result: %w", err)
	}

	ok, err := s.redis.SetNX(ctx, resultKey(rec.Acronym), data, 0).Result()
	if err != nil {
		StoreErrors.WithLabelValues("put_result").Inc()
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return fmt.Errorf("result for %q: %w", rec.Acronym, ErrAlreadyExists)
	}
	return nil
}

// GetFailure loads the permanent failure marker for an acronym, if any.
func (s *Store) GetFailure(ctx context.Context, acronym string) (*FailureRecord, error) {
	data, err := s.redis.Get(ctx, failureKey(acronym)).Bytes()
	if err != nil {
		if err == redis.Nil {
			StoreMisses.WithLabelValues("failure").Inc()
			return nil, ErrNotFound
		}
		StoreErrors.WithLabelValues("get_failure").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var rec FailureRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		StoreErrors.WithLabelValues("get_failure").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	StoreHits.WithLabelValues("failure").Inc()
	return &rec, nil
}

// PutFailure persists a permanent failure marker so the item is not retried
// on the next run.
func (s *Store) PutFailure(ctx context.Context, rec FailureRecord) error {
	if rec.Acronym == "" {
		return fmt.Errorf("failure record has no acronym")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		StoreErrors.WithLabelValues("put_failure").Inc()
		return fmt.Errorf("marshal failure: %w", err)
	}

	if err := s.redis.Set(ctx, failureKey(rec.Acronym), data, 0).Err(); err != nil {
		StoreErrors.WithLabelValues("put_failure").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// ClearFailure removes a failure marker, allowing the item to be retried on
// the next run. Intended for operator use.
func (s *Store) ClearFailure(ctx context.Context, acronym string) error {
	if err := s.redis.Del(ctx, failureKey(acronym)).Err(); err != nil {
		StoreErrors.WithLabelValues("clear_failure").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// GetCached retrieves a repeat-request cache entry. Returns ErrNotFound on
// miss or expiry; expired entries are deleted on read.
func (s *Store) GetCached(ctx context.Context, key CacheKey) (*Entry, error) {
	cacheKey := key.String()

	data, err := s.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			StoreMisses.WithLabelValues("cache").Inc()
			return nil, ErrNotFound
		}
		StoreErrors.WithLabelValues("get_cached").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		StoreErrors.WithLabelValues("get_cached").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		_ = s.redis.Del(ctx, cacheKey).Err()
		StoreMisses.WithLabelValues("cache").Inc()
		return nil, ErrNotFound
	}

	StoreHits.WithLabelValues("cache").Inc()
	return &entry, nil
}

// PutCached stores a repeat-request entry with the given TTL. A zero or
// negative TTL stores nothing.
func (s *Store) PutCached(ctx context.Context, key CacheKey, rec validate.Record, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	now := time.Now()
	entry := Entry{
		Record:   rec,
		CachedAt: now,
		Expires:  now.Add(ttl),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		StoreErrors.WithLabelValues("put_cached").Inc()
		return fmt.Errorf("marshal entry: %w", err)
	}

	if err := s.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		StoreErrors.WithLabelValues("put_cached").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
