package arisankit

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Mock Implementations
// ============================================================

// mockChainReader implements ChainReader for testing
type mockChainReader struct {
	mu sync.Mutex

	// Function hooks - set these to customize behavior
	PendingNonceFn         func(addr string) (uint64, error)
	EstimateGasFn          func(from, to string, value *big.Int, data []byte) (uint64, error)
	SuggestedGasSettingsFn func() (float64, float64, error)
	CallFn                 func(from, to string, data []byte) ([]byte, error)

	// Call tracking for assertions
	PendingNonceCalls []string
	EstimateGasCalls  []struct {
		From, To string
		Data     []byte
	}
	CallCalls []struct {
		From, To string
		Data     []byte
	}
}

func (m *mockChainReader) PendingNonce(ctx context.Context, addr string) (uint64, error) {
	m.mu.Lock()
	m.PendingNonceCalls = append(m.PendingNonceCalls, addr)
	m.mu.Unlock()
	if m.PendingNonceFn != nil {
		return m.PendingNonceFn(addr)
	}
	return 7, nil
}

func (m *mockChainReader) EstimateGas(ctx context.Context, from, to string, value *big.Int, data []byte) (uint64, error) {
	m.mu.Lock()
	m.EstimateGasCalls = append(m.EstimateGasCalls, struct {
		From, To string
		Data     []byte
	}{from, to, data})
	m.mu.Unlock()
	if m.EstimateGasFn != nil {
		return m.EstimateGasFn(from, to, value, data)
	}
	return 210000, nil
}

func (m *mockChainReader) SuggestedGasSettings(ctx context.Context) (float64, float64, error) {
	if m.SuggestedGasSettingsFn != nil {
		return m.SuggestedGasSettingsFn()
	}
	return 20.0, 2.0, nil
}

func (m *mockChainReader) Call(ctx context.Context, from, to string, data []byte) ([]byte, error) {
	m.mu.Lock()
	m.CallCalls = append(m.CallCalls, struct {
		From, To string
		Data     []byte
	}{from, to, data})
	m.mu.Unlock()
	if m.CallFn != nil {
		return m.CallFn(from, to, data)
	}
	return nil, nil
}

// mockChainSubmitter implements ChainSubmitter for testing
type mockChainSubmitter struct {
	mu sync.Mutex

	SubmitFn func(rawTx []byte) (SubmitResult, error)

	SubmitCalls [][]byte
}

func (m *mockChainSubmitter) Submit(ctx context.Context, rawTx []byte) (SubmitResult, error) {
	m.mu.Lock()
	m.SubmitCalls = append(m.SubmitCalls, rawTx)
	m.mu.Unlock()
	if m.SubmitFn != nil {
		return m.SubmitFn(rawTx)
	}
	return SubmitResult{Hash: "0xmockhash", Status: SubmitStatusSuccess}, nil
}

func (m *mockChainSubmitter) submitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SubmitCalls)
}

// mockWallet implements WalletAPI for testing. Unless hooks override it, the
// wallet is available, connected and signs with a real throwaway key so
// signed envelopes decode and carry a correct chain id.
type mockWallet struct {
	mu sync.Mutex

	key       *ecdsa.PrivateKey
	addr      common.Address
	available bool
	connected bool

	IsConnectedFn     func() (bool, error)
	GetAddressFn      func() (string, error)
	RequestAccessFn   func() error
	SignTransactionFn func(rawHex string, chainID uint64) (string, error)

	GetAddressCalls    int
	RequestAccessCalls int
	SignCalls          int
}

func newMockWallet(t *testing.T) *mockWallet {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &mockWallet{
		key:       key,
		addr:      crypto.PubkeyToAddress(key.PublicKey),
		available: true,
		connected: true,
	}
}

func (m *mockWallet) IsAvailable(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

func (m *mockWallet) IsConnected(ctx context.Context) (bool, error) {
	if m.IsConnectedFn != nil {
		return m.IsConnectedFn()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected, nil
}

func (m *mockWallet) GetAddress(ctx context.Context) (string, error) {
	m.mu.Lock()
	m.GetAddressCalls++
	m.mu.Unlock()
	if m.GetAddressFn != nil {
		return m.GetAddressFn()
	}
	return m.addr.Hex(), nil
}

func (m *mockWallet) RequestAccess(ctx context.Context) error {
	m.mu.Lock()
	m.RequestAccessCalls++
	m.mu.Unlock()
	if m.RequestAccessFn != nil {
		return m.RequestAccessFn()
	}
	return nil
}

func (m *mockWallet) SignTransaction(ctx context.Context, rawHex string, chainID uint64) (string, error) {
	m.mu.Lock()
	m.SignCalls++
	m.mu.Unlock()
	if m.SignTransactionFn != nil {
		return m.SignTransactionFn(rawHex, chainID)
	}

	tx, err := decodeEnvelopeHex(rawHex)
	if err != nil {
		return "", err
	}
	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(chainID))
	signedTx, err := types.SignTx(tx, signer, m.key)
	if err != nil {
		return "", err
	}
	return encodeEnvelopeHex(signedTx)
}

func (m *mockWallet) SetAllowed(ctx context.Context, allowed bool) error {
	return nil
}

func (m *mockWallet) NetworkDetails(ctx context.Context) (NetworkDetails, error) {
	return NetworkDetails{Name: "testnet", ChainID: DefaultChainID}, nil
}

// mockSubmissionStore implements SubmissionStore in memory for testing
type mockSubmissionStore struct {
	mu sync.Mutex

	RecordFn func(rec *SubmissionRecord) error

	Records []*SubmissionRecord
}

func (m *mockSubmissionStore) Record(ctx context.Context, rec *SubmissionRecord) error {
	if m.RecordFn != nil {
		return m.RecordFn(rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = append(m.Records, rec)
	return nil
}

func (m *mockSubmissionStore) ListByWallet(ctx context.Context, wallet string, limit int64) ([]*SubmissionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*SubmissionRecord
	for _, rec := range m.Records {
		if rec.Wallet == wallet {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *mockSubmissionStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (m *mockSubmissionStore) recorded() []*SubmissionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*SubmissionRecord, len(m.Records))
	copy(out, m.Records)
	return out
}

// ============================================================
// Test helpers
// ============================================================

var testContract = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func newTestBuilder(t *testing.T, reader ChainReader) *CallBuilder {
	builder, err := NewCallBuilder(testContract, DefaultChainID, reader)
	require.NoError(t, err)
	return builder
}

// packOutputs ABI-encodes a view method's return values, for wiring mock
// chain reads.
func packOutputs(t *testing.T, b *CallBuilder, method string, values ...interface{}) []byte {
	out, err := b.abi.Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	return out
}

// methodOf reports which contract method a calldata payload targets.
func methodOf(b *CallBuilder, data []byte) string {
	for name, method := range b.abi.Methods {
		if bytes.HasPrefix(data, method.ID) {
			return name
		}
	}
	return ""
}

func testGroupTuple(owner common.Address, members []common.Address, roundCount uint32, due int64, active bool) rawGroup {
	return rawGroup{
		Owner:      owner,
		Members:    members,
		RoundCount: roundCount,
		DueAmount:  big.NewInt(due),
		TotalPool:  big.NewInt(0),
		IsActive:   active,
	}
}
