package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arisan-labs/arisankit"
)

// Key prefix for idempotency guard markers
const (
	idempotencyKeyPrefix = "arisankit:idempotency:"
)

// IdempotencyStore provides a Redis-based duplicate-submission guard shared
// across broker instances. It implements the arisankit.IdempotencyStore
// interface.
//
// Guard markers expire automatically via the TTL passed to Acquire, so a
// crashed holder never blocks a key forever.
type IdempotencyStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// IdempotencyStoreOption configures an IdempotencyStore.
type IdempotencyStoreOption func(*IdempotencyStore)

// WithIdempotencyStoreKeyPrefix sets a custom prefix for all Redis keys.
// Useful for multi-tenant deployments sharing the same Redis instance.
func WithIdempotencyStoreKeyPrefix(prefix string) IdempotencyStoreOption {
	return func(s *IdempotencyStore) {
		s.keyPrefix = prefix
	}
}

// NewIdempotencyStore creates a new Redis-based idempotency store.
func NewIdempotencyStore(client redis.UniversalClient, opts ...IdempotencyStoreOption) *IdempotencyStore {
	s := &IdempotencyStore{
		client: client,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *IdempotencyStore) guardKey(key string) string {
	full := idempotencyKeyPrefix + key
	if s.keyPrefix != "" {
		return s.keyPrefix + ":" + full
	}
	return full
}

// Acquire atomically claims the key with SETNX. Returns false when the key is
// already held and not yet expired.
func (s *IdempotencyStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	acquired, err := s.client.SetNX(ctx, s.guardKey(key), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire idempotency key: %w", err)
	}
	return acquired, nil
}

// Release drops the key so a subsequent Acquire succeeds immediately.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.guardKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

// Verify IdempotencyStore implements arisankit.IdempotencyStore
var _ arisankit.IdempotencyStore = (*IdempotencyStore)(nil)
