package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/arisan-labs/arisankit"
)

// Key prefixes for submission journal storage
const (
	submissionKeyPrefix    = "arisankit:submission:"        // record data by id
	submissionWalletKey    = "arisankit:submission:wallet:" // record ids per wallet, scored by creation time
	submissionTimestampSet = "arisankit:submission:created_at"
)

// deleteBatchSize bounds how many records DeleteOlderThan processes per pass.
const deleteBatchSize = 1000

// SubmissionStore provides Redis-based persistence for the submission
// journal. It implements the arisankit.SubmissionStore interface.
//
// Note: Submission records do not automatically expire. Use DeleteOlderThan
// for periodic cleanup of old records.
type SubmissionStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// SubmissionStoreOption configures a SubmissionStore.
type SubmissionStoreOption func(*SubmissionStore)

// WithSubmissionStoreKeyPrefix sets a custom prefix for all Redis keys.
// Useful for multi-tenant deployments sharing the same Redis instance.
func WithSubmissionStoreKeyPrefix(prefix string) SubmissionStoreOption {
	return func(s *SubmissionStore) {
		s.keyPrefix = prefix
	}
}

// NewSubmissionStore creates a new Redis-based submission journal.
func NewSubmissionStore(client redis.UniversalClient, opts ...SubmissionStoreOption) *SubmissionStore {
	s := &SubmissionStore{
		client: client,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// key returns the full Redis key with optional prefix.
func (s *SubmissionStore) key(parts ...string) string {
	key := strings.Join(parts, "")
	if s.keyPrefix != "" {
		return s.keyPrefix + ":" + key
	}
	return key
}

func (s *SubmissionStore) walletKey(wallet string) string {
	return s.key(submissionWalletKey, wallet)
}

// submissionData is the JSON-serializable form of arisankit.SubmissionRecord
type submissionData struct {
	ID        string `json:"id"`
	Wallet    string `json:"wallet"`
	Operation string `json:"operation"`
	GroupID   uint32 `json:"arisan_id"`
	Round     uint32 `json:"round"`
	TxHash    string `json:"tx_hash,omitempty"`
	Stage     string `json:"stage"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
	CreatedAt int64  `json:"created_at"` // Nanoseconds
}

// Record persists one submission record. A missing id is filled in; the
// record is indexed per wallet and globally by creation time.
func (s *SubmissionStore) Record(ctx context.Context, rec *arisankit.SubmissionRecord) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	data, err := s.serializeRecord(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize record: %w", err)
	}

	score := float64(rec.CreatedAt.Unix())
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(submissionKeyPrefix, rec.ID), data, 0)
		pipe.ZAdd(ctx, s.walletKey(rec.Wallet), redis.Z{Score: score, Member: rec.ID})
		pipe.ZAdd(ctx, s.key(submissionTimestampSet), redis.Z{Score: score, Member: rec.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record submission: %w", err)
	}
	return nil
}

// ListByWallet returns the wallet's records, newest first. limit <= 0 returns
// all records.
func (s *SubmissionStore) ListByWallet(ctx context.Context, wallet string, limit int64) ([]*arisankit.SubmissionRecord, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = limit - 1
	}
	ids, err := s.client.ZRevRange(ctx, s.walletKey(wallet), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list submission ids: %w", err)
	}
	return s.getRecordsByIDs(ctx, ids)
}

// DeleteOlderThan removes records created before the cutoff, in batches.
// Returns the number of records removed.
func (s *SubmissionStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var totalDeleted int64

	for {
		ids, err := s.client.ZRangeByScore(ctx, s.key(submissionTimestampSet), &redis.ZRangeBy{
			Min:   "-inf",
			Max:   strconv.FormatInt(cutoff.Unix(), 10),
			Count: deleteBatchSize,
		}).Result()
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to get old submissions: %w", err)
		}
		if len(ids) == 0 {
			return totalDeleted, nil
		}

		// Fetch records to learn which wallet indexes need cleanup
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = s.key(submissionKeyPrefix, id)
		}
		results, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to batch get submissions: %w", err)
		}

		pipe := s.client.TxPipeline()
		for i, result := range results {
			id := ids[i]
			pipe.Del(ctx, s.key(submissionKeyPrefix, id))
			pipe.ZRem(ctx, s.key(submissionTimestampSet), id)

			if data, ok := result.(string); ok {
				if rec, err := s.deserializeRecord([]byte(data)); err == nil {
					pipe.ZRem(ctx, s.walletKey(rec.Wallet), id)
				}
			}
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return totalDeleted, fmt.Errorf("failed to execute batch delete: %w", err)
		}
		totalDeleted += int64(len(ids))

		if int64(len(ids)) < deleteBatchSize {
			return totalDeleted, nil
		}
	}
}

func (s *SubmissionStore) getRecordsByIDs(ctx context.Context, ids []string) ([]*arisankit.SubmissionRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(submissionKeyPrefix, id)
	}

	results, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get submissions: %w", err)
	}

	recs := make([]*arisankit.SubmissionRecord, 0, len(results))
	var deserializeErrors []string

	for i, result := range results {
		if result == nil {
			// record was deleted between the index read and the fetch
			continue
		}
		data, ok := result.(string)
		if !ok {
			deserializeErrors = append(deserializeErrors, fmt.Sprintf("id %s: unexpected type %T", ids[i], result))
			continue
		}
		rec, err := s.deserializeRecord([]byte(data))
		if err != nil {
			deserializeErrors = append(deserializeErrors, fmt.Sprintf("id %s: %v", ids[i], err))
			continue
		}
		recs = append(recs, rec)
	}

	if len(deserializeErrors) > 0 {
		return recs, fmt.Errorf("failed to deserialize %d submissions: %s",
			len(deserializeErrors), strings.Join(deserializeErrors, "; "))
	}
	return recs, nil
}

func (s *SubmissionStore) serializeRecord(rec *arisankit.SubmissionRecord) ([]byte, error) {
	return json.Marshal(submissionData{
		ID:        rec.ID,
		Wallet:    rec.Wallet,
		Operation: string(rec.Operation),
		GroupID:   rec.GroupID,
		Round:     rec.Round,
		TxHash:    rec.TxHash,
		Stage:     string(rec.Stage),
		Status:    string(rec.Status),
		Error:     rec.Error,
		CreatedAt: rec.CreatedAt.UnixNano(),
	})
}

func (s *SubmissionStore) deserializeRecord(data []byte) (*arisankit.SubmissionRecord, error) {
	var d submissionData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal submission record: %w", err)
	}
	return &arisankit.SubmissionRecord{
		ID:        d.ID,
		Wallet:    d.Wallet,
		Operation: arisankit.Operation(d.Operation),
		GroupID:   d.GroupID,
		Round:     d.Round,
		TxHash:    d.TxHash,
		Stage:     arisankit.Stage(d.Stage),
		Status:    arisankit.SubmitStatus(d.Status),
		Error:     d.Error,
		CreatedAt: time.Unix(0, d.CreatedAt),
	}, nil
}

// Verify SubmissionStore implements arisankit.SubmissionStore
var _ arisankit.SubmissionStore = (*SubmissionStore)(nil)
