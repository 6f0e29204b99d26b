// deps.go defines minimal interfaces for external collaborators: the chain
// node and the wallet signer. Each has exactly one concrete adapter per SDK
// (see adapters.go); nothing probes the SDK surface per call.
package arisankit

import (
	"context"
	"math/big"
)

// ChainReader is the minimal read surface of a chain node: simulation,
// resource estimation and account sequence queries. Implementations must be
// safe for concurrent use.
type ChainReader interface {
	// PendingNonce returns the next sequence number for the address.
	PendingNonce(ctx context.Context, addr string) (uint64, error)

	// EstimateGas computes the resource footprint of a call. The pipeline
	// merges the result into the envelope before signing.
	EstimateGas(ctx context.Context, from, to string, value *big.Int, data []byte) (uint64, error)

	// SuggestedGasSettings returns suggested fee and tip in gwei.
	SuggestedGasSettings(ctx context.Context) (gasPrice float64, tipCapGwei float64, err error)

	// Call dry-runs a contract invocation and returns its result without
	// committing anything. A non-nil error means the simulation failed or
	// the call would revert.
	Call(ctx context.Context, from, to string, data []byte) ([]byte, error)
}

// SubmitStatus is the status field of a submission result.
type SubmitStatus string

const (
	SubmitStatusSuccess SubmitStatus = "SUCCESS"
	SubmitStatusPending SubmitStatus = "PENDING"
	SubmitStatusError   SubmitStatus = "ERROR"
)

// SubmitResult is what the node reports for a submitted envelope. A populated
// ErrorResult takes precedence over Status when interpreting the outcome.
type SubmitResult struct {
	Hash        string
	Status      SubmitStatus
	ErrorResult string
}

// ChainSubmitter broadcasts signed transactions.
type ChainSubmitter interface {
	Submit(ctx context.Context, rawTx []byte) (SubmitResult, error)
}

// NetworkDetails describes the network the wallet is currently pointed at.
type NetworkDetails struct {
	Name    string
	ChainID uint64
}

// WalletAPI is the browser-extension-shaped signer boundary. One adapter per
// supported signer implementation; version skew is handled by picking the
// adapter at startup, not by probing method locations at call time.
type WalletAPI interface {
	// IsAvailable probes whether the wallet can be reached at all.
	IsAvailable(ctx context.Context) bool

	// IsConnected reports whether the wallet has an unlocked session.
	IsConnected(ctx context.Context) (bool, error)

	// GetAddress resolves the active account identifier. An empty string
	// with a nil error means the wallet is connected but no account is
	// active.
	GetAddress(ctx context.Context) (string, error)

	// RequestAccess asks the user to grant this client access. Returns
	// ErrSigningRejected (wrapped) when the user declines.
	RequestAccess(ctx context.Context) error

	// SignTransaction signs a hex-encoded envelope for the given chain and
	// returns the hex-encoded signed envelope.
	SignTransaction(ctx context.Context, rawHex string, chainID uint64) (string, error)

	// SetAllowed toggles the standing allowance for this client.
	SetAllowed(ctx context.Context, allowed bool) error

	// NetworkDetails returns the wallet's current network.
	NetworkDetails(ctx context.Context) (NetworkDetails, error)
}

// ReaderFactory creates a ChainReader for a chain. Injectable for testing.
type ReaderFactory func(chainID uint64) (ChainReader, error)

// SubmitterFactory creates a ChainSubmitter for a chain. Injectable for testing.
type SubmitterFactory func(chainID uint64) (ChainSubmitter, error)
