// adapters.go provides the default adapter implementations that wrap jarvis
// and go-ethereum types behind the interfaces defined in deps.go.
package arisankit

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/tranvictor/jarvis/accounts"
	"github.com/tranvictor/jarvis/networks"
	"github.com/tranvictor/jarvis/util"
	"github.com/tranvictor/jarvis/util/account"
	"github.com/tranvictor/jarvis/util/broadcaster"
	"github.com/tranvictor/jarvis/util/reader"
)

// readerAdapter wraps a jarvis EthReader to implement ChainReader.
type readerAdapter struct {
	reader *reader.EthReader
}

func (r *readerAdapter) PendingNonce(ctx context.Context, addr string) (uint64, error) {
	return r.reader.GetPendingNonce(addr)
}

func (r *readerAdapter) EstimateGas(ctx context.Context, from, to string, value *big.Int, data []byte) (uint64, error) {
	return r.reader.EstimateExactGas(from, to, 0, value, data)
}

func (r *readerAdapter) SuggestedGasSettings(ctx context.Context) (float64, float64, error) {
	return r.reader.SuggestedGasSettings()
}

func (r *readerAdapter) Call(ctx context.Context, from, to string, data []byte) ([]byte, error) {
	return r.reader.EthCall(from, to, data, nil)
}

// NewReaderAdapter creates a ChainReader from a jarvis reader.
func NewReaderAdapter(r *reader.EthReader) ChainReader {
	return &readerAdapter{reader: r}
}

// submitterAdapter wraps a jarvis broadcaster to implement ChainSubmitter.
type submitterAdapter struct {
	broadcaster *broadcaster.Broadcaster
}

func (s *submitterAdapter) Submit(ctx context.Context, rawTx []byte) (SubmitResult, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(rawTx); err != nil {
		return SubmitResult{}, fmt.Errorf("couldn't decode signed envelope: %w", err)
	}

	hash, broadcasted, err := s.broadcaster.BroadcastTx(tx)
	if !broadcasted {
		res := SubmitResult{Hash: hash, Status: SubmitStatusError}
		if err != nil {
			res.ErrorResult = err.Error()
		}
		return res, nil
	}

	res := SubmitResult{Hash: hash, Status: SubmitStatusSuccess}
	if err != nil {
		// broadcast reached some nodes but others reported an error;
		// surface it as an error result so callers can apply precedence
		res.ErrorResult = err.Error()
	}
	return res, nil
}

// NewSubmitterAdapter creates a ChainSubmitter from a jarvis broadcaster.
func NewSubmitterAdapter(b *broadcaster.Broadcaster) ChainSubmitter {
	return &submitterAdapter{broadcaster: b}
}

// DefaultReaderFactory creates jarvis-backed readers for standard networks.
func DefaultReaderFactory(chainID uint64) (ChainReader, error) {
	network, err := networks.GetNetworkByID(chainID)
	if err != nil {
		return nil, fmt.Errorf("unsupported chain id %d: %w", chainID, err)
	}
	r, err := util.EthReader(network)
	if err != nil {
		return nil, err
	}
	return NewReaderAdapter(r), nil
}

// DefaultSubmitterFactory creates jarvis-backed broadcasters for standard networks.
func DefaultSubmitterFactory(chainID uint64) (ChainSubmitter, error) {
	network, err := networks.GetNetworkByID(chainID)
	if err != nil {
		return nil, fmt.Errorf("unsupported chain id %d: %w", chainID, err)
	}
	b, err := util.EthBroadcaster(network)
	if err != nil {
		return nil, err
	}
	return NewSubmitterAdapter(b), nil
}

// keystoreWallet implements WalletAPI over a locally unlocked jarvis account.
// It stands in for the browser extension when the broker runs server-side:
// availability means the keystore is reachable, connectedness means an account
// is unlocked, and signing never prompts.
type keystoreWallet struct {
	acc     *account.Account
	allowed bool
}

// NewKeystoreWallet creates a WalletAPI backed by an already unlocked account.
func NewKeystoreWallet(acc *account.Account) WalletAPI {
	return &keystoreWallet{acc: acc, allowed: true}
}

// UnlockKeystoreWallet unlocks the address from the jarvis account store and
// wraps it as a WalletAPI.
func UnlockKeystoreWallet(addr string) (WalletAPI, error) {
	accDesc, err := accounts.GetAccount(addr)
	if err != nil {
		return nil, fmt.Errorf("wallet %s doesn't exist in the account store", addr)
	}
	acc, err := accounts.UnlockAccount(accDesc)
	if err != nil {
		return nil, fmt.Errorf("unlocking wallet failed: %w", err)
	}
	return NewKeystoreWallet(acc), nil
}

func (w *keystoreWallet) IsAvailable(ctx context.Context) bool {
	return w.acc != nil
}

func (w *keystoreWallet) IsConnected(ctx context.Context) (bool, error) {
	return w.acc != nil && w.allowed, nil
}

func (w *keystoreWallet) GetAddress(ctx context.Context) (string, error) {
	if w.acc == nil {
		return "", nil
	}
	return w.acc.Address().Hex(), nil
}

func (w *keystoreWallet) RequestAccess(ctx context.Context) error {
	if w.acc == nil {
		return ErrNoActiveAccount
	}
	w.allowed = true
	return nil
}

func (w *keystoreWallet) SignTransaction(ctx context.Context, rawHex string, chainID uint64) (string, error) {
	if w.acc == nil {
		return "", ErrNoActiveAccount
	}
	tx, err := decodeEnvelopeHex(rawHex)
	if err != nil {
		return "", fmt.Errorf("couldn't decode envelope for signing: %w", err)
	}
	signedAddr, signedTx, err := w.acc.SignTx(tx, new(big.Int).SetUint64(chainID))
	if err != nil {
		return "", err
	}
	if signedAddr != w.acc.Address() {
		return "", fmt.Errorf("signed from wrong address: expected %s, got %s",
			w.acc.Address().Hex(), signedAddr.Hex())
	}
	return encodeEnvelopeHex(signedTx)
}

func (w *keystoreWallet) SetAllowed(ctx context.Context, allowed bool) error {
	w.allowed = allowed
	return nil
}

func (w *keystoreWallet) NetworkDetails(ctx context.Context) (NetworkDetails, error) {
	return NetworkDetails{}, nil
}
