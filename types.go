package arisankit

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Constants for session and pipeline behavior
const (
	// DefaultPollInterval is how often the session re-queries the wallet for
	// the active account.
	DefaultPollInterval = 2 * time.Second

	// EnvelopeValidity is the window during which a built envelope may be
	// submitted. It is stamped at build time; submission of an expired
	// envelope is rejected locally.
	EnvelopeValidity = 30 * time.Second

	// DefaultChainID is the network all calls target unless overridden. There
	// is exactly one contract deployment per environment, on the Sepolia test
	// network.
	DefaultChainID uint64 = 11155111
)

// AddressPrefix is the prefix a resolved wallet value must carry to count as
// a usable account identifier. Anything else is treated as "no active account".
const AddressPrefix = "0x"

// WalletState is a snapshot of the wallet session. IsConnected==true implies
// PublicKey is a non-empty prefixed address; IsConnected==false implies
// PublicKey is empty.
type WalletState struct {
	IsConnected bool
	PublicKey   string
	IsLoading   bool
}

// ConnectResult is the typed outcome of an explicit Connect call, so the
// caller can render the specific failure reason.
type ConnectResult struct {
	Success   bool
	PublicKey string
	Err       error
}

// GroupRecord is one rotating-savings group as held by the contract. It is
// sourced read-only; any change requires a fresh read after a state-changing
// transaction commits.
type GroupRecord struct {
	ID         uint32
	Owner      common.Address
	Members    []common.Address // membership order, not payout order
	RoundCount uint32           // >= 2
	DueAmount  *big.Int         // positive
	TotalPool  *big.Int         // non-negative
	IsActive   bool
}

// WinnerRecord exists once a draw happened for (GroupID, Round).
// IsReleased transitions false -> true exactly once.
type WinnerRecord struct {
	GroupID    uint32
	Round      uint32
	Winner     common.Address
	Timestamp  uint64 // unix seconds
	IsReleased bool
}

// ActivityRecord is a per-user dashboard projection. Ordered descending by
// Timestamp; no other invariant.
type ActivityRecord struct {
	GroupID     uint32
	Round       uint32
	Kind        string
	Description string
	Amount      *big.Int
	Timestamp   uint64
	Status      string
}

// PaymentRecord is a per-user payment history entry.
type PaymentRecord struct {
	GroupID   uint32
	Round     uint32
	Amount    *big.Int
	Timestamp uint64
	Status    string
}

// WinningRecord is a per-user winning history entry.
type WinningRecord struct {
	GroupID   uint32
	Round     uint32
	Amount    *big.Int
	Timestamp uint64
	Status    string
}

// Operation names the contract entry points this library drives.
type Operation string

const (
	OpInit            Operation = "init"
	OpPayDue          Operation = "pay_due"
	OpDrawWinner      Operation = "draw_winner"
	OpReleaseToWinner Operation = "release_to_winner"
	OpGetGroup        Operation = "get_arisan"
	OpGetGroupCount   Operation = "get_arisan_count"
)

// Envelope is the encoded representation of a transaction exchanged between
// pipeline stages. Raw holds hex-encoded canonical transaction bytes once the
// envelope has been materialized; it is owned by one pipeline run and never
// persisted.
type Envelope struct {
	Operation Operation
	ChainID   uint64
	ReadOnly  bool

	From common.Address
	To   common.Address
	Data []byte

	Raw        string // hex tx bytes, unsigned until the signing stage
	BuiltAt    time.Time
	ValidUntil time.Time
}

// Expired reports whether the envelope's validity window has passed.
func (e *Envelope) Expired(now time.Time) bool {
	return now.After(e.ValidUntil)
}

// Stage is a position in the pipeline state machine.
type Stage string

const (
	StageBuilt     Stage = "built"
	StageSimulated Stage = "simulated"
	StageAssembled Stage = "assembled"
	StageSigned    Stage = "signed"
	StageSubmitted Stage = "submitted"
	StageSucceeded Stage = "succeeded"
	StageFailed    Stage = "failed"
)

// PipelineResult is the terminal outcome of one pipeline run.
type PipelineResult struct {
	Stage      Stage
	TxHash     string
	ReturnData []byte // populated for read-only calls, terminal at SIMULATED
	Status     SubmitStatus
	Err        error
}

// Succeeded reports whether the run reached a terminal success state.
func (r *PipelineResult) Succeeded() bool {
	return r.Err == nil && (r.Stage == StageSucceeded || (r.Stage == StageSimulated && r.ReturnData != nil))
}
