package arisankit

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Broker is the full surface a UI or CLI drives: wallet session lifecycle,
// the four state-changing contract calls, reads and the submission journal.
type Broker interface {
	// Session lifecycle.
	Connect(ctx context.Context) ConnectResult
	CheckConnection(ctx context.Context) bool
	Disconnect(ctx context.Context)
	State() WalletState
	Subscribe(fn func(WalletState)) func()

	// State-changing contract calls.
	CreateGroup(ctx context.Context, members []common.Address, roundCount uint32, dueAmount *big.Int) (*PipelineResult, error)
	PayDue(ctx context.Context, groupID, round uint32, amount *big.Int) (*PipelineResult, error)
	DrawWinner(ctx context.Context, groupID, round uint32) (*PipelineResult, error)
	ReleaseToWinner(ctx context.Context, groupID, round uint32) (*PipelineResult, error)

	// Reads and history.
	Reads() *ContractReader
	History(ctx context.Context, limit int64) ([]*SubmissionRecord, error)
}

var _ Broker = (*Client)(nil)
