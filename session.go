package arisankit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/KyberNetwork/logger"
	"golang.org/x/sync/singleflight"
)

// Session owns the wallet connection lifecycle: probe, connect, poll for
// account changes, disconnect. It is the sole writer of its WalletState and
// notifies observers synchronously, in registration order, after every
// mutation. Construct one per running client and pass it by handle; there is
// no package-level instance.
type Session struct {
	mu        sync.RWMutex
	state     WalletState
	observers []sessionObserver
	nextObsID int

	wallet       WalletAPI
	chainID      uint64
	pollInterval time.Duration

	// resolve deduplicates concurrent account resolutions: the poller and a
	// user-initiated connect share one in-flight result instead of clobbering
	// each other.
	resolve singleflight.Group

	pollMu     sync.Mutex
	pollCancel context.CancelFunc
}

type sessionObserver struct {
	id int
	fn func(WalletState)
}

// NewSession creates a session over the given wallet adapter.
func NewSession(wallet WalletAPI, opts ...SessionOption) *Session {
	s := &Session{
		wallet:       wallet,
		chainID:      DefaultChainID,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a snapshot of the session state. Never blocks on I/O.
func (s *Session) State() WalletState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers an observer invoked synchronously on every state
// mutation, in registration order. The returned function removes it.
func (s *Session) Subscribe(fn func(WalletState)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextObsID
	s.nextObsID++
	s.observers = append(s.observers, sessionObserver{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, obs := range s.observers {
			if obs.id == id {
				s.observers = append(s.observers[:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// setState mutates then notifies while holding no lock during observer calls.
func (s *Session) setState(state WalletState) {
	s.mu.Lock()
	s.state = state
	observers := make([]sessionObserver, len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	for _, obs := range observers {
		s.safeNotify(obs, state)
	}
}

// safeNotify delivers one notification; a panicking observer must not take
// down the notify pass or the session.
func (s *Session) safeNotify(obs sessionObserver, state WalletState) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logger.Fields{
				"observer": obs.id,
				"panic":    r,
			}).Error("Wallet state observer panicked")
		}
	}()
	obs.fn(state)
}

func (s *Session) clearState() {
	s.setState(WalletState{})
}

// beginLoading flags the session as resolving so UIs can render a spinner
// without losing the current account.
func (s *Session) beginLoading() {
	state := s.State()
	state.IsLoading = true
	s.setState(state)
}

func (s *Session) endLoading() {
	state := s.State()
	if state.IsLoading {
		state.IsLoading = false
		s.setState(state)
	}
}

// ValidAddress reports whether a resolved wallet value counts as a usable
// account identifier: non-empty and carrying the platform address prefix.
func ValidAddress(addr string) bool {
	return len(addr) > len(AddressPrefix) && strings.HasPrefix(addr, AddressPrefix)
}

// resolveAddress queries the active account once, deduplicated across
// concurrent callers.
func (s *Session) resolveAddress(ctx context.Context) (string, error) {
	v, err, _ := s.resolve.Do("address", func() (interface{}, error) {
		return s.wallet.GetAddress(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// CheckConnection probes the wallet and restores an existing session if one
// is active. If the wallet reports connected but no account resolves, it
// retries once after requesting access, then gives up. On success the
// background poller is started.
func (s *Session) CheckConnection(ctx context.Context) bool {
	s.beginLoading()
	defer s.endLoading()

	if !s.wallet.IsAvailable(ctx) {
		logger.WithFields(logger.Fields{
			"available": false,
		}).Debug("Wallet unavailable during connection check")
		s.clearState()
		return false
	}

	connected, err := s.wallet.IsConnected(ctx)
	if err != nil || !connected {
		s.clearState()
		return false
	}

	addr, err := s.resolveAddress(ctx)
	if err != nil || !ValidAddress(addr) {
		// one access-request retry, then give up
		if accessErr := s.wallet.RequestAccess(ctx); accessErr == nil {
			addr, err = s.resolveAddress(ctx)
		}
		if err != nil || !ValidAddress(addr) {
			s.clearState()
			return false
		}
	}

	s.establish(ctx, addr)
	return true
}

// Connect resolves a session like CheckConnection, but issues an explicit
// permission request when the wallet has no session yet and returns a typed
// result carrying the specific failure reason.
func (s *Session) Connect(ctx context.Context) ConnectResult {
	s.beginLoading()
	defer s.endLoading()

	if !s.wallet.IsAvailable(ctx) {
		return ConnectResult{Err: ErrWalletUnavailable}
	}

	connected, err := s.wallet.IsConnected(ctx)
	if err != nil {
		return ConnectResult{Err: errors.Join(ErrWalletUnavailable, err)}
	}

	if connected {
		addr, err := s.resolveAddress(ctx)
		if err != nil {
			return ConnectResult{Err: errors.Join(ErrNoActiveAccount, err)}
		}
		if !ValidAddress(addr) {
			return ConnectResult{Err: ErrNoActiveAccount}
		}
		s.establish(ctx, addr)
		return ConnectResult{Success: true, PublicKey: addr}
	}

	if err := s.wallet.RequestAccess(ctx); err != nil {
		return ConnectResult{Err: err}
	}
	addr, err := s.resolveAddress(ctx)
	if err != nil {
		return ConnectResult{Err: errors.Join(ErrNoActiveAccount, err)}
	}
	if !ValidAddress(addr) {
		return ConnectResult{Err: ErrNoActiveAccount}
	}
	s.establish(ctx, addr)
	return ConnectResult{Success: true, PublicKey: addr}
}

// establish records a connected session and starts the account poller. The
// wallet's reported network is checked against the configured one; a mismatch
// is logged, not fatal, since signing re-stamps the chain id anyway and the
// pipeline rejects mismatched signatures.
func (s *Session) establish(ctx context.Context, addr string) {
	logger.WithFields(logger.Fields{
		"address": addr,
	}).Info("Wallet session established")

	if details, err := s.wallet.NetworkDetails(ctx); err == nil {
		if details.ChainID != 0 && details.ChainID != s.chainID {
			logger.WithFields(logger.Fields{
				"wallet_chain_id":  details.ChainID,
				"session_chain_id": s.chainID,
				"network":          details.Name,
			}).Warn("Wallet is pointed at a different network")
		}
	}

	s.setState(WalletState{IsConnected: true, PublicKey: addr})
	s.startPoller()
}

// Disconnect stops the poller, revokes the standing allowance and clears the
// session. Idempotent.
func (s *Session) Disconnect(ctx context.Context) {
	s.stopPoller()
	if err := s.wallet.SetAllowed(ctx, false); err != nil {
		logger.WithFields(logger.Fields{
			"error": err,
		}).Debug("Couldn't revoke wallet allowance")
	}
	s.clearState()
}

// SignEnvelope delegates signing of a hex-encoded envelope to the wallet.
// chainID zero defaults to the session's configured network.
func (s *Session) SignEnvelope(ctx context.Context, rawHex string, chainID uint64) (string, error) {
	state := s.State()
	if !state.IsConnected || state.PublicKey == "" {
		return "", ErrNotConnected
	}
	if chainID == 0 {
		chainID = s.chainID
	}

	signed, err := s.wallet.SignTransaction(ctx, rawHex, chainID)
	if err != nil {
		if errors.Is(err, ErrSigningRejected) {
			return "", err
		}
		return "", errors.Join(ErrSigningFailed, err)
	}
	if signed == "" {
		return "", ErrSigningFailed
	}
	return signed, nil
}

// startPoller launches the fixed-interval account watcher. A poller that is
// already running is restarted so the interval is measured from now.
func (s *Session) startPoller() {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()

	if s.pollCancel != nil {
		s.pollCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.pollCancel = cancel

	go s.pollLoop(ctx)
}

func (s *Session) stopPoller() {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	if s.pollCancel != nil {
		s.pollCancel()
		s.pollCancel = nil
	}
}

// pollLoop re-queries the active account every poll interval and updates the
// session when the wallet switched accounts underneath us.
func (s *Session) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			addr, err := s.resolveAddress(ctx)
			if err != nil || !ValidAddress(addr) {
				continue
			}
			current := s.State()
			if current.IsConnected && addr != current.PublicKey {
				logger.WithFields(logger.Fields{
					"old": current.PublicKey,
					"new": addr,
				}).Info("Wallet account change detected")
				s.setState(WalletState{IsConnected: true, PublicKey: addr})
			}
		}
	}
}
