package arisankit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KyberNetwork/logger"
)

// Pipeline runs one envelope through the staged machine
//
//	BUILT -> SIMULATED -> ASSEMBLED -> SIGNED -> SUBMITTED -> {SUCCEEDED|FAILED}
//
// strictly sequentially, with no automatic retries: every failure is terminal
// and surfaces to the caller as a typed error. Read-only envelopes terminate
// at SIMULATED with the simulation return value; they are never signed or
// submitted. On success the caller is expected to re-run the relevant reads;
// the pipeline pushes nothing.
type Pipeline struct {
	session   *Session
	builder   *CallBuilder
	reader    ChainReader
	submitter ChainSubmitter
	now       func() time.Time
}

// NewPipeline creates a pipeline over the given session and chain access.
func NewPipeline(session *Session, builder *CallBuilder, reader ChainReader, submitter ChainSubmitter) *Pipeline {
	return &Pipeline{
		session:   session,
		builder:   builder,
		reader:    reader,
		submitter: submitter,
		now:       time.Now,
	}
}

// Execute drives the envelope to a terminal stage. The returned result always
// carries the stage reached; Err is nil only on success.
func (p *Pipeline) Execute(ctx context.Context, env *Envelope) *PipelineResult {
	// BUILT -> SIMULATED
	retval, err := p.reader.Call(ctx, env.From.Hex(), env.To.Hex(), env.Data)
	if err != nil {
		logger.WithFields(logger.Fields{
			"operation": env.Operation,
			"error":     err,
		}).Debug("Simulation failed")
		return &PipelineResult{
			Stage: StageFailed,
			Err:   errors.Join(ErrSimulationFailed, err),
		}
	}

	if env.ReadOnly {
		// terminal for reads: extract the return value, nothing to sign
		if retval == nil {
			retval = []byte{}
		}
		return &PipelineResult{Stage: StageSimulated, ReturnData: retval}
	}

	// SIMULATED -> ASSEMBLED: merge the simulated resource footprint
	gasLimit, err := p.reader.EstimateGas(ctx, env.From.Hex(), env.To.Hex(), nil, env.Data)
	if err != nil {
		return &PipelineResult{
			Stage: StageFailed,
			Err:   errors.Join(ErrSimulationFailed, fmt.Errorf("couldn't assemble resource footprint: %w", err)),
		}
	}
	if err := p.builder.rebuildWithGas(ctx, env, gasLimit); err != nil {
		return &PipelineResult{
			Stage: StageFailed,
			Err:   errors.Join(ErrSimulationFailed, err),
		}
	}

	// ASSEMBLED -> SIGNED
	signedHex, err := p.session.SignEnvelope(ctx, env.Raw, env.ChainID)
	if err != nil {
		return &PipelineResult{Stage: StageFailed, Err: err}
	}

	// reconstruct with the signing network identifier; a mismatch here is
	// rejected rather than silently submitted to the wrong network
	signedTx, err := decodeEnvelopeHex(signedHex)
	if err != nil {
		return &PipelineResult{
			Stage: StageFailed,
			Err:   errors.Join(ErrSigningFailed, err),
		}
	}
	if signedTx.ChainId().Uint64() != env.ChainID {
		return &PipelineResult{
			Stage: StageFailed,
			Err: errors.Join(ErrChainIDMismatch, fmt.Errorf(
				"envelope signed for chain %d, expected %d", signedTx.ChainId().Uint64(), env.ChainID)),
		}
	}

	if env.Expired(p.now()) {
		return &PipelineResult{Stage: StageFailed, Err: ErrEnvelopeExpired}
	}

	// SIGNED -> SUBMITTED
	rawSigned, err := signedTx.MarshalBinary()
	if err != nil {
		return &PipelineResult{
			Stage: StageFailed,
			Err:   errors.Join(ErrSubmissionFailed, err),
		}
	}
	res, err := p.submitter.Submit(ctx, rawSigned)
	if err != nil {
		return &PipelineResult{
			Stage: StageFailed,
			Err:   errors.Join(ErrSubmissionFailed, err),
		}
	}

	return p.interpret(env, res)
}

// interpret maps a submission result to the terminal stage. A populated
// error result takes precedence over any status, SUCCESS and PENDING are
// both terminal success (no settlement polling), anything else fails with
// the status attached.
func (p *Pipeline) interpret(env *Envelope, res SubmitResult) *PipelineResult {
	if res.ErrorResult != "" {
		logger.WithFields(logger.Fields{
			"operation":    env.Operation,
			"tx_hash":      res.Hash,
			"status":       res.Status,
			"error_result": res.ErrorResult,
		}).Debug("Submission carried an error result")
		return &PipelineResult{
			Stage:  StageFailed,
			TxHash: res.Hash,
			Status: res.Status,
			Err:    errors.Join(ErrContractError, fmt.Errorf("%s", res.ErrorResult)),
		}
	}

	switch res.Status {
	case SubmitStatusSuccess, SubmitStatusPending:
		logger.WithFields(logger.Fields{
			"operation": env.Operation,
			"tx_hash":   res.Hash,
			"status":    res.Status,
		}).Info("Envelope submitted")
		return &PipelineResult{Stage: StageSucceeded, TxHash: res.Hash, Status: res.Status}
	default:
		return &PipelineResult{
			Stage:  StageFailed,
			TxHash: res.Hash,
			Status: res.Status,
			Err:    errors.Join(ErrSubmissionFailed, fmt.Errorf("status %q", res.Status)),
		}
	}
}
