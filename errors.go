package arisankit

import "fmt"

// Error taxonomy for the session, pipeline and client. Callers discriminate
// with errors.Is; detail is attached with errors.Join at the failure site.
var (
	ErrWalletUnavailable = fmt.Errorf("wallet extension unavailable")
	ErrNoActiveAccount   = fmt.Errorf("no active account in wallet")
	ErrNotConnected      = fmt.Errorf("wallet not connected")
	ErrSigningRejected   = fmt.Errorf("signing rejected by user")
	ErrSigningFailed     = fmt.Errorf("signing failed")
	ErrSimulationFailed  = fmt.Errorf("simulation failed")
	ErrContractError     = fmt.Errorf("contract returned error result")
	ErrSubmissionFailed  = fmt.Errorf("submission failed")
	ErrEnvelopeExpired   = fmt.Errorf("envelope validity window expired")
	ErrChainIDMismatch   = fmt.Errorf("signed envelope chain id mismatch")

	ErrNotMember = fmt.Errorf("caller is not a member of the group")
	ErrNotOwner  = fmt.Errorf("caller is not the owner of the group")

	ErrDuplicateSubmission = fmt.Errorf("duplicate submission in flight")

	ErrUnknownOperation = fmt.Errorf("unknown contract operation")
	ErrBadArity         = fmt.Errorf("wrong argument count for operation")
)
