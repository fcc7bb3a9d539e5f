package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingMarker = "pending"

var (
	// ErrIdempotencyConflict indicates the key already completed; the stored value is returned alongside.
	ErrIdempotencyConflict = errors.New("idempotent request already processed")
	// ErrIdempotencyPending indicates another attempt holds the key.
	ErrIdempotencyPending = errors.New("idempotent request in progress")
)

// IdempotencyStore remembers processed request keys in Redis.
type IdempotencyStore struct {
	client *redis.Client
	module string
	ttl    time.Duration
}

// NewIdempotencyStore constructs the store. Keys expire after ttl.
func NewIdempotencyStore(client *redis.Client, module string, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, module: module, ttl: ttl}
}

// IdempotencyKey builds the redis key for a request key within a module.
func IdempotencyKey(module, key string) string {
	return fmt.Sprintf("idempotency:%s:%s", module, key)
}

// Reserve claims key for a new attempt. When the key already completed it
// returns the stored value with ErrIdempotencyConflict.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (string, error) {
	if s == nil {
		return "", errors.New("idempotency store not initialised")
	}
	if key == "" {
		return "", errors.New("idempotency key required")
	}
	rkey := IdempotencyKey(s.module, key)
	ok, err := s.client.SetNX(ctx, rkey, pendingMarker, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("idempotency reserve: %w", err)
	}
	if ok {
		return "", nil
	}
	val, err := s.client.Get(ctx, rkey).Result()
	if errors.Is(err, redis.Nil) || val == pendingMarker {
		return "", ErrIdempotencyPending
	}
	if err != nil {
		return "", fmt.Errorf("idempotency lookup: %w", err)
	}
	return val, ErrIdempotencyConflict
}

// Complete stores the outcome of a reserved key.
func (s *IdempotencyStore) Complete(ctx context.Context, key, value string) error {
	if s == nil {
		return nil
	}
	if err := s.client.Set(ctx, IdempotencyKey(s.module, key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency complete: %w", err)
	}
	return nil
}

// Release removes a key, typically used to roll back failed processing.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if s == nil {
		return nil
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	if err := s.client.Del(ctx, IdempotencyKey(s.module, key)).Err(); err != nil {
		return fmt.Errorf("idempotency release: %w", err)
	}
	return nil
}
