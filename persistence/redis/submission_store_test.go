package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arisan-labs/arisankit"
)

func testRecord(wallet string, createdAt time.Time) *arisankit.SubmissionRecord {
	return &arisankit.SubmissionRecord{
		Wallet:    wallet,
		Operation: arisankit.OpPayDue,
		GroupID:   1,
		Round:     2,
		TxHash:    "0xabc",
		Stage:     arisankit.StageSucceeded,
		Status:    arisankit.SubmitStatusSuccess,
		CreatedAt: createdAt,
	}
}

func TestSubmissionStoreRecordAndList(t *testing.T) {
	client := testRedisClient(t)
	defer client.Close()
	store := NewSubmissionStore(client)
	ctx := context.Background()

	wallet := "0x1111111111111111111111111111111111111111"
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		rec := testRecord(wallet, base.Add(time.Duration(i)*time.Minute))
		rec.Round = uint32(i + 1)
		require.NoError(t, store.Record(ctx, rec))
		assert.NotEmpty(t, rec.ID, "Record should assign an id")
	}

	recs, err := store.ListByWallet(ctx, wallet, 0)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	// newest first
	assert.Equal(t, uint32(3), recs[0].Round)
	assert.Equal(t, uint32(1), recs[2].Round)
	assert.Equal(t, arisankit.OpPayDue, recs[0].Operation)
	assert.Equal(t, arisankit.StageSucceeded, recs[0].Stage)
	assert.Equal(t, arisankit.SubmitStatusSuccess, recs[0].Status)
}

func TestSubmissionStoreListLimit(t *testing.T) {
	client := testRedisClient(t)
	defer client.Close()
	store := NewSubmissionStore(client)
	ctx := context.Background()

	wallet := "0x2222222222222222222222222222222222222222"
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		rec := testRecord(wallet, base.Add(time.Duration(i)*time.Minute))
		rec.Round = uint32(i + 1)
		require.NoError(t, store.Record(ctx, rec))
	}

	recs, err := store.ListByWallet(ctx, wallet, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, uint32(5), recs[0].Round)
	assert.Equal(t, uint32(4), recs[1].Round)
}

func TestSubmissionStoreWalletIsolation(t *testing.T) {
	client := testRedisClient(t)
	defer client.Close()
	store := NewSubmissionStore(client)
	ctx := context.Background()

	walletA := "0x3333333333333333333333333333333333333333"
	walletB := "0x4444444444444444444444444444444444444444"
	require.NoError(t, store.Record(ctx, testRecord(walletA, time.Now())))
	require.NoError(t, store.Record(ctx, testRecord(walletB, time.Now())))

	recs, err := store.ListByWallet(ctx, walletA, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, walletA, recs[0].Wallet)
}

func TestSubmissionStoreListEmpty(t *testing.T) {
	client := testRedisClient(t)
	defer client.Close()
	store := NewSubmissionStore(client)

	recs, err := store.ListByWallet(context.Background(), "0x5555555555555555555555555555555555555555", 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSubmissionStoreRecordNil(t *testing.T) {
	client := testRedisClient(t)
	defer client.Close()
	store := NewSubmissionStore(client)

	err := store.Record(context.Background(), nil)
	assert.Error(t, err)
}

func TestSubmissionStoreDeleteOlderThan(t *testing.T) {
	client := testRedisClient(t)
	defer client.Close()
	store := NewSubmissionStore(client)
	ctx := context.Background()

	wallet := "0x6666666666666666666666666666666666666666"
	old := testRecord(wallet, time.Now().Add(-48*time.Hour))
	recent := testRecord(wallet, time.Now())
	require.NoError(t, store.Record(ctx, old))
	require.NoError(t, store.Record(ctx, recent))

	deleted, err := store.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	recs, err := store.ListByWallet(ctx, wallet, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, recent.ID, recs[0].ID)
}

func TestSubmissionStoreKeyPrefixIsolation(t *testing.T) {
	client := testRedisClient(t)
	defer client.Close()
	ctx := context.Background()

	storeA := NewSubmissionStore(client, WithSubmissionStoreKeyPrefix("tenant-a"))
	storeB := NewSubmissionStore(client, WithSubmissionStoreKeyPrefix("tenant-b"))

	wallet := "0x7777777777777777777777777777777777777777"
	require.NoError(t, storeA.Record(ctx, testRecord(wallet, time.Now())))

	recsA, err := storeA.ListByWallet(ctx, wallet, 0)
	require.NoError(t, err)
	assert.Len(t, recsA, 1)

	recsB, err := storeB.ListByWallet(ctx, wallet, 0)
	require.NoError(t, err)
	assert.Empty(t, recsB)
}

func TestSubmissionStoreRoundTripError(t *testing.T) {
	client := testRedisClient(t)
	defer client.Close()
	store := NewSubmissionStore(client)
	ctx := context.Background()

	wallet := "0x8888888888888888888888888888888888888888"
	rec := testRecord(wallet, time.Now())
	rec.Stage = arisankit.StageFailed
	rec.Status = arisankit.SubmitStatusError
	rec.Error = fmt.Sprintf("%v: round already paid", arisankit.ErrContractError)
	require.NoError(t, store.Record(ctx, rec))

	recs, err := store.ListByWallet(ctx, wallet, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, arisankit.StageFailed, recs[0].Stage)
	assert.Contains(t, recs[0].Error, "round already paid")
}
