package arisankit

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Client is the full broker: one wallet session, one contract, one network.
// It gates state-changing calls on membership/ownership before any envelope
// is built, runs each accepted call through the pipeline exactly once, and
// journals the terminal outcome.
type Client struct {
	session     *Session
	builder     *CallBuilder
	reader      ChainReader
	submitter   ChainSubmitter
	pipeline    *Pipeline
	facade      *ContractReader
	submissions SubmissionStore
	idempotency IdempotencyStore

	idempotencyTTL time.Duration
	chainID        uint64
}

// NewClient wires a broker over the given wallet and contract. Without
// options it reaches the default network through jarvis-backed adapters and
// guards duplicates with a process-local store.
func NewClient(wallet WalletAPI, contract common.Address, opts ...ClientOption) (*Client, error) {
	cfg := &clientConfig{
		chainID:          DefaultChainID,
		pollInterval:     DefaultPollInterval,
		readerFactory:    DefaultReaderFactory,
		submitterFactory: DefaultSubmitterFactory,
		idempotencyTTL:   DefaultIdempotencyTTL,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	reader := cfg.reader
	if reader == nil {
		var err error
		reader, err = cfg.readerFactory(cfg.chainID)
		if err != nil {
			return nil, fmt.Errorf("couldn't create chain reader: %w", err)
		}
	}
	submitter := cfg.submitter
	if submitter == nil {
		var err error
		submitter, err = cfg.submitterFactory(cfg.chainID)
		if err != nil {
			return nil, fmt.Errorf("couldn't create chain submitter: %w", err)
		}
	}

	builder, err := NewCallBuilder(contract, cfg.chainID, reader)
	if err != nil {
		return nil, err
	}
	session := NewSession(wallet,
		WithSessionChainID(cfg.chainID),
		WithPollInterval(cfg.pollInterval),
	)
	idempotency := cfg.idempotency
	if idempotency == nil {
		idempotency = NewInMemoryIdempotencyStore()
	}

	return &Client{
		session:        session,
		builder:        builder,
		reader:         reader,
		submitter:      submitter,
		pipeline:       NewPipeline(session, builder, reader, submitter),
		facade:         NewContractReader(builder, reader),
		submissions:    cfg.submissions,
		idempotency:    idempotency,
		idempotencyTTL: cfg.idempotencyTTL,
		chainID:        cfg.chainID,
	}, nil
}

// Session exposes the wallet session for direct lifecycle control.
func (c *Client) Session() *Session {
	return c.session
}

// Reads exposes the contract read facade.
func (c *Client) Reads() *ContractReader {
	return c.facade
}

// Connect establishes a wallet session.
func (c *Client) Connect(ctx context.Context) ConnectResult {
	return c.session.Connect(ctx)
}

// CheckConnection restores an existing wallet session if one is active.
func (c *Client) CheckConnection(ctx context.Context) bool {
	return c.session.CheckConnection(ctx)
}

// Disconnect tears down the wallet session. Idempotent.
func (c *Client) Disconnect(ctx context.Context) {
	c.session.Disconnect(ctx)
}

// State returns a snapshot of the wallet session state.
func (c *Client) State() WalletState {
	return c.session.State()
}

// Subscribe registers a wallet state observer; the returned function removes it.
func (c *Client) Subscribe(fn func(WalletState)) func() {
	return c.session.Subscribe(fn)
}

// caller returns the connected wallet address, or ErrNotConnected.
func (c *Client) caller() (common.Address, error) {
	state := c.session.State()
	if !state.IsConnected || !ValidAddress(state.PublicKey) {
		return common.Address{}, ErrNotConnected
	}
	return common.HexToAddress(state.PublicKey), nil
}

// CreateGroup creates a rotating-savings group owned by the connected wallet.
func (c *Client) CreateGroup(ctx context.Context, members []common.Address, roundCount uint32, dueAmount *big.Int) (*PipelineResult, error) {
	owner, err := c.caller()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("a group needs at least one member")
	}
	if roundCount < 2 {
		return nil, fmt.Errorf("a group needs at least 2 rounds, got %d", roundCount)
	}
	if dueAmount == nil || dueAmount.Sign() <= 0 {
		return nil, fmt.Errorf("due amount must be positive")
	}

	env, err := c.builder.BuildInitGroup(ctx, owner, members, roundCount, dueAmount, owner)
	if err != nil {
		return nil, err
	}
	return c.execute(ctx, env, 0, 0)
}

// PayDue pays the connected wallet's due for one round. The wallet must be a
// member of the group; non-members are rejected before any envelope is built.
// A second PayDue for the same (group, round, wallet) while the first is in
// flight fails with ErrDuplicateSubmission.
func (c *Client) PayDue(ctx context.Context, groupID, round uint32, amount *big.Int) (*PipelineResult, error) {
	payer, err := c.caller()
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("payment amount must be positive")
	}
	if !c.facade.IsMember(ctx, groupID, payer) {
		return nil, errors.Join(ErrNotMember, fmt.Errorf("wallet %s, group %d", payer.Hex(), groupID))
	}

	key := fmt.Sprintf("pay:%d:%d:%s", groupID, round, payer.Hex())
	acquired, err := c.idempotency.Acquire(ctx, key, c.idempotencyTTL)
	if err != nil {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !acquired {
		return nil, errors.Join(ErrDuplicateSubmission, fmt.Errorf("key %s", key))
	}

	env, err := c.builder.BuildPayDue(ctx, groupID, round, amount, payer)
	if err != nil {
		c.release(ctx, key)
		return nil, err
	}
	res, err := c.execute(ctx, env, groupID, round)
	if err != nil {
		// failed attempts release the guard so the user can retry
		c.release(ctx, key)
	}
	return res, err
}

// DrawWinner draws the winner of one round. Owner-only; a fresh random seed
// is generated per call so reruns of a failed draw cannot replay the same
// outcome.
func (c *Client) DrawWinner(ctx context.Context, groupID, round uint32) (*PipelineResult, error) {
	owner, err := c.caller()
	if err != nil {
		return nil, err
	}
	if !c.facade.IsOwner(ctx, groupID, owner) {
		return nil, errors.Join(ErrNotOwner, fmt.Errorf("wallet %s, group %d", owner.Hex(), groupID))
	}

	seed, err := randomSeed()
	if err != nil {
		return nil, err
	}
	env, err := c.builder.BuildDrawWinner(ctx, groupID, round, seed, owner)
	if err != nil {
		return nil, err
	}
	return c.execute(ctx, env, groupID, round)
}

// ReleaseToWinner transfers the round's pool to its drawn winner. Owner-only.
func (c *Client) ReleaseToWinner(ctx context.Context, groupID, round uint32) (*PipelineResult, error) {
	owner, err := c.caller()
	if err != nil {
		return nil, err
	}
	if !c.facade.IsOwner(ctx, groupID, owner) {
		return nil, errors.Join(ErrNotOwner, fmt.Errorf("wallet %s, group %d", owner.Hex(), groupID))
	}

	env, err := c.builder.BuildReleaseToWinner(ctx, groupID, round, owner)
	if err != nil {
		return nil, err
	}
	return c.execute(ctx, env, groupID, round)
}

// History lists the connected wallet's journaled submissions, newest first.
// Returns empty when no journal is configured.
func (c *Client) History(ctx context.Context, limit int64) ([]*SubmissionRecord, error) {
	if c.submissions == nil {
		return nil, nil
	}
	wallet, err := c.caller()
	if err != nil {
		return nil, err
	}
	return c.submissions.ListByWallet(ctx, wallet.Hex(), limit)
}

// execute runs one envelope through the pipeline, journals the terminal
// outcome and folds the pipeline error into the return.
func (c *Client) execute(ctx context.Context, env *Envelope, groupID, round uint32) (*PipelineResult, error) {
	res := c.pipeline.Execute(ctx, env)
	c.journal(ctx, env, groupID, round, res)
	if res.Err != nil {
		return res, res.Err
	}
	return res, nil
}

// journal records one terminal outcome; failures are logged, never propagated.
func (c *Client) journal(ctx context.Context, env *Envelope, groupID, round uint32, res *PipelineResult) {
	if c.submissions == nil {
		return
	}
	rec := &SubmissionRecord{
		ID:        uuid.NewString(),
		Wallet:    env.From.Hex(),
		Operation: env.Operation,
		GroupID:   groupID,
		Round:     round,
		TxHash:    res.TxHash,
		Stage:     res.Stage,
		Status:    res.Status,
		CreatedAt: time.Now(),
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	if err := c.submissions.Record(ctx, rec); err != nil {
		logger.WithFields(logger.Fields{
			"operation": env.Operation,
			"tx_hash":   res.TxHash,
			"error":     err,
		}).Error("Couldn't journal submission")
	}
}

func (c *Client) release(ctx context.Context, key string) {
	if err := c.idempotency.Release(ctx, key); err != nil {
		logger.WithFields(logger.Fields{
			"key":   key,
			"error": err,
		}).Error("Couldn't release idempotency key")
	}
}

// randomSeed draws 8 bytes of OS entropy for the on-chain winner draw.
func randomSeed() (uint64, error) {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("couldn't generate draw seed: %w", err)
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}
