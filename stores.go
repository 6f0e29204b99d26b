package arisankit

import (
	"context"
	"sync"
	"time"
)

// SubmissionRecord journals one terminal pipeline run so operators can audit
// what a wallet attempted, independently of what the contract recorded.
type SubmissionRecord struct {
	ID        string       `json:"id"`
	Wallet    string       `json:"wallet"`
	Operation Operation    `json:"operation"`
	GroupID   uint32       `json:"arisan_id"`
	Round     uint32       `json:"round"`
	TxHash    string       `json:"tx_hash,omitempty"`
	Stage     Stage        `json:"stage"`
	Status    SubmitStatus `json:"status,omitempty"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// SubmissionStore persists the submission journal. Journal failures are
// logged, never propagated: the journal observes the pipeline, it does not
// gate it.
type SubmissionStore interface {
	Record(ctx context.Context, rec *SubmissionRecord) error
	ListByWallet(ctx context.Context, wallet string, limit int64) ([]*SubmissionRecord, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// IdempotencyStore guards against duplicate in-flight submissions of the same
// logical action. Acquire returns false when the key is already held and not
// yet expired.
type IdempotencyStore interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// inMemoryIdempotencyStore is the default single-process guard. Expired keys
// are reaped lazily on the next Acquire of the same key.
type inMemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewInMemoryIdempotencyStore creates a process-local IdempotencyStore.
func NewInMemoryIdempotencyStore() IdempotencyStore {
	return &inMemoryIdempotencyStore{
		entries: map[string]time.Time{},
		now:     time.Now,
	}
}

func (s *inMemoryIdempotencyStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiry, held := s.entries[key]; held && now.Before(expiry) {
		return false, nil
	}
	s.entries[key] = now.Add(ttl)
	return true, nil
}

func (s *inMemoryIdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
