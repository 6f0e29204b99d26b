package arisankit

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	jarviscommon "github.com/tranvictor/jarvis/common"
)

// contractABIJSON is the interface of the arisan contract: four
// state-changing entry points plus the read entry points the facade drives.
const contractABIJSON = `[
  {"type":"function","name":"init","stateMutability":"nonpayable","inputs":[
    {"name":"owner","type":"address"},
    {"name":"members","type":"address[]"},
    {"name":"round_count","type":"uint32"},
    {"name":"due_amount","type":"int256"}],"outputs":[{"name":"arisan_id","type":"uint32"}]},
  {"type":"function","name":"pay_due","stateMutability":"nonpayable","inputs":[
    {"name":"arisan_id","type":"uint32"},
    {"name":"round","type":"uint32"},
    {"name":"amount","type":"int256"}],"outputs":[]},
  {"type":"function","name":"draw_winner","stateMutability":"nonpayable","inputs":[
    {"name":"arisan_id","type":"uint32"},
    {"name":"round","type":"uint32"},
    {"name":"seed","type":"uint64"}],"outputs":[]},
  {"type":"function","name":"release_to_winner","stateMutability":"nonpayable","inputs":[
    {"name":"arisan_id","type":"uint32"},
    {"name":"round","type":"uint32"}],"outputs":[]},
  {"type":"function","name":"get_arisan","stateMutability":"view","inputs":[
    {"name":"arisan_id","type":"uint32"}],"outputs":[
    {"name":"arisan","type":"tuple","components":[
      {"name":"owner","type":"address"},
      {"name":"members","type":"address[]"},
      {"name":"round_count","type":"uint32"},
      {"name":"due_amount","type":"int256"},
      {"name":"total_pool","type":"int256"},
      {"name":"is_active","type":"bool"}]}]},
  {"type":"function","name":"get_arisan_count","stateMutability":"view","inputs":[],"outputs":[
    {"name":"count","type":"uint32"}]},
  {"type":"function","name":"get_payment","stateMutability":"view","inputs":[
    {"name":"arisan_id","type":"uint32"},
    {"name":"round","type":"uint32"}],"outputs":[
    {"name":"paid","type":"bool"}]},
  {"type":"function","name":"get_winner","stateMutability":"view","inputs":[
    {"name":"arisan_id","type":"uint32"},
    {"name":"round","type":"uint32"}],"outputs":[
    {"name":"winner","type":"tuple","components":[
      {"name":"winner","type":"address"},
      {"name":"timestamp","type":"uint64"},
      {"name":"is_released","type":"bool"},
      {"name":"exists","type":"bool"}]}]},
  {"type":"function","name":"get_user_arisans","stateMutability":"view","inputs":[
    {"name":"user","type":"address"}],"outputs":[
    {"name":"arisan_ids","type":"uint32[]"}]},
  {"type":"function","name":"get_activities","stateMutability":"view","inputs":[
    {"name":"user","type":"address"}],"outputs":[
    {"name":"activities","type":"tuple[]","components":[
      {"name":"arisan_id","type":"uint32"},
      {"name":"round","type":"uint32"},
      {"name":"kind","type":"string"},
      {"name":"description","type":"string"},
      {"name":"amount","type":"int256"},
      {"name":"timestamp","type":"uint64"},
      {"name":"status","type":"string"}]}]},
  {"type":"function","name":"get_payments","stateMutability":"view","inputs":[
    {"name":"user","type":"address"}],"outputs":[
    {"name":"payments","type":"tuple[]","components":[
      {"name":"arisan_id","type":"uint32"},
      {"name":"round","type":"uint32"},
      {"name":"amount","type":"int256"},
      {"name":"timestamp","type":"uint64"},
      {"name":"status","type":"string"}]}]},
  {"type":"function","name":"get_winnings","stateMutability":"view","inputs":[
    {"name":"user","type":"address"}],"outputs":[
    {"name":"winnings","type":"tuple[]","components":[
      {"name":"arisan_id","type":"uint32"},
      {"name":"round","type":"uint32"},
      {"name":"amount","type":"int256"},
      {"name":"timestamp","type":"uint64"},
      {"name":"status","type":"string"}]}]}
]`

// opSpec fixes the argument arity of every supported operation. Build calls
// with a different count fail before touching the network.
var opSpec = map[Operation]struct {
	arity    int
	readOnly bool
}{
	OpInit:            {arity: 4},
	OpPayDue:          {arity: 3},
	OpDrawWinner:      {arity: 3},
	OpReleaseToWinner: {arity: 2},
	OpGetGroup:        {arity: 1, readOnly: true},
	OpGetGroupCount:   {arity: 0, readOnly: true},
}

// CallBuilder constructs envelopes addressed to one fixed contract on one
// fixed network. Pure construction: the only I/O is the sequence-number
// lookup for the source account.
type CallBuilder struct {
	contract common.Address
	chainID  uint64
	txType   uint8
	reader   ChainReader
	abi      abi.ABI
}

// NewCallBuilder creates a builder for the given contract and network.
func NewCallBuilder(contract common.Address, chainID uint64, reader ChainReader) (*CallBuilder, error) {
	parsed, err := abi.JSON(strings.NewReader(contractABIJSON))
	if err != nil {
		return nil, fmt.Errorf("couldn't parse contract interface: %w", err)
	}
	return &CallBuilder{
		contract: contract,
		chainID:  chainID,
		txType:   types.DynamicFeeTxType,
		reader:   reader,
		abi:      parsed,
	}, nil
}

// ABI exposes the parsed contract interface for result decoding.
func (b *CallBuilder) ABI() abi.ABI {
	return b.abi
}

// Contract returns the fixed contract identifier all calls target.
func (b *CallBuilder) Contract() common.Address {
	return b.contract
}

// ChainID returns the fixed network identifier all calls target.
func (b *CallBuilder) ChainID() uint64 {
	return b.chainID
}

// Build constructs an unsigned envelope for the operation. State-changing
// operations stamp a sequence number from the source account and materialize
// the raw transaction; read operations carry calldata only and are never
// signed or submitted.
func (b *CallBuilder) Build(ctx context.Context, op Operation, args []interface{}, source common.Address) (*Envelope, error) {
	spec, ok := opSpec[op]
	if !ok {
		return nil, errors.Join(ErrUnknownOperation, fmt.Errorf("operation %q", op))
	}
	if len(args) != spec.arity {
		return nil, errors.Join(ErrBadArity, fmt.Errorf("operation %q wants %d args, got %d", op, spec.arity, len(args)))
	}

	data, err := b.abi.Pack(string(op), args...)
	if err != nil {
		return nil, fmt.Errorf("couldn't encode %q call: %w", op, err)
	}

	now := time.Now()
	env := &Envelope{
		Operation:  op,
		ChainID:    b.chainID,
		ReadOnly:   spec.readOnly,
		From:       source,
		To:         b.contract,
		Data:       data,
		BuiltAt:    now,
		ValidUntil: now.Add(EnvelopeValidity),
	}
	if spec.readOnly {
		return env, nil
	}

	nonce, err := b.reader.PendingNonce(ctx, source.Hex())
	if err != nil {
		return nil, fmt.Errorf("couldn't get sequence number for %s: %w", source.Hex(), err)
	}
	gasPrice, tipCap, err := b.reader.SuggestedGasSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("couldn't get fee settings: %w", err)
	}

	// gas limit stays zero until the pipeline merges the simulated footprint
	tx := jarviscommon.BuildExactTx(b.txType, nonce, b.contract.Hex(), big.NewInt(0), 0, gasPrice, tipCap, data, b.chainID)
	raw, err := encodeEnvelopeHex(tx)
	if err != nil {
		return nil, err
	}
	env.Raw = raw
	return env, nil
}

// BuildInitGroup builds the group-creation call.
func (b *CallBuilder) BuildInitGroup(ctx context.Context, owner common.Address, members []common.Address, roundCount uint32, dueAmount *big.Int, source common.Address) (*Envelope, error) {
	return b.Build(ctx, OpInit, []interface{}{owner, members, roundCount, dueAmount}, source)
}

// BuildPayDue builds the round-payment call.
func (b *CallBuilder) BuildPayDue(ctx context.Context, groupID, round uint32, amount *big.Int, source common.Address) (*Envelope, error) {
	return b.Build(ctx, OpPayDue, []interface{}{groupID, round, amount}, source)
}

// BuildDrawWinner builds the draw call.
func (b *CallBuilder) BuildDrawWinner(ctx context.Context, groupID, round uint32, seed uint64, source common.Address) (*Envelope, error) {
	return b.Build(ctx, OpDrawWinner, []interface{}{groupID, round, seed}, source)
}

// BuildReleaseToWinner builds the payout-release call.
func (b *CallBuilder) BuildReleaseToWinner(ctx context.Context, groupID, round uint32, source common.Address) (*Envelope, error) {
	return b.Build(ctx, OpReleaseToWinner, []interface{}{groupID, round}, source)
}

// packRead encodes calldata for an arbitrary view method of the contract
// interface, for facade reads outside the fixed operation table.
func (b *CallBuilder) packRead(method string, args ...interface{}) ([]byte, error) {
	return b.abi.Pack(method, args...)
}

// rebuildWithGas re-materializes the raw transaction of a state-changing
// envelope with the simulated gas footprint merged in. Sequence number and
// fee settings are resolved again so the envelope reflects current state.
func (b *CallBuilder) rebuildWithGas(ctx context.Context, env *Envelope, gasLimit uint64) error {
	nonce, err := b.reader.PendingNonce(ctx, env.From.Hex())
	if err != nil {
		return fmt.Errorf("couldn't get sequence number for %s: %w", env.From.Hex(), err)
	}
	gasPrice, tipCap, err := b.reader.SuggestedGasSettings(ctx)
	if err != nil {
		return fmt.Errorf("couldn't get fee settings: %w", err)
	}
	tx := jarviscommon.BuildExactTx(b.txType, nonce, env.To.Hex(), big.NewInt(0), gasLimit, gasPrice, tipCap, env.Data, env.ChainID)
	raw, err := encodeEnvelopeHex(tx)
	if err != nil {
		return err
	}
	env.Raw = raw
	return nil
}

// encodeEnvelopeHex encodes a transaction to the hex form exchanged between
// pipeline stages and the wallet.
func encodeEnvelopeHex(tx *types.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("couldn't encode envelope: %w", err)
	}
	return hexutil.Encode(raw), nil
}

// decodeEnvelopeHex decodes the hex envelope form back into a transaction.
func decodeEnvelopeHex(rawHex string) (*types.Transaction, error) {
	raw, err := hexutil.Decode(rawHex)
	if err != nil {
		return nil, fmt.Errorf("couldn't decode envelope hex: %w", err)
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("couldn't decode envelope bytes: %w", err)
	}
	return tx, nil
}
