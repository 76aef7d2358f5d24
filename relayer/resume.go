package relayer

import (
	"context"
	"errors"
	"strconv"
	"time"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

// ResumableStatuses are the states a later Resume can still advance.
var ResumableStatuses = []types.Status{
	types.StatusPendingAttestation,
	types.StatusAttestationReceived,
	types.StatusProcessingDeposit,
	types.StatusProcessingWithdraw,
	types.StatusDepositConfirmed,
	types.StatusInitiatingWithdraw,
	types.StatusWithdrawInitiated,
}

// Resume advances a transfer as far as it can go right now. It is safe to
// call repeatedly and concurrently: every transition is conditional on the
// status it was decided from, so only one caller performs each on-chain step.
//
// Retryable errors leave the record where it is and are returned. Any other
// error marks the record failed and is returned with the failed record.
func (o *Orchestrator) Resume(ctx context.Context, id string) (*types.TransferRecord, error) {
	release, ok := o.acquire(id)
	if !ok {
		// already being driven by this process
		return o.store.Get(ctx, id)
	}
	defer release()

	rec, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	logger := o.logger.With("transfer", rec.ID, "direction", rec.Direction)

	for !rec.Status.Terminal() {
		next, blocked, err := o.step(ctx, logger, rec)
		switch {
		case errors.Is(err, types.ErrStatusConflict):
			// someone else moved the record on; continue from its current state
			current, getErr := o.store.Get(ctx, id)
			if getErr != nil {
				return rec, getErr
			}
			logger.Debug("Transfer changed concurrently", "from", rec.Status, "now", current.Status)
			rec = current
			continue
		case err != nil:
			return o.handleStepError(ctx, logger, rec, err)
		case blocked:
			return next, nil
		}
		rec = next
	}
	return rec, nil
}

// step performs the action for rec's current status. blocked is true when
// the record is waiting on someone else and nothing was done.
func (o *Orchestrator) step(ctx context.Context, logger log.Logger, rec *types.TransferRecord) (next *types.TransferRecord, blocked bool, err error) {
	switch rec.Status {
	case types.StatusPendingAttestation:
		next, err = o.awaitAttestation(ctx, logger, rec)

	case types.StatusAttestationReceived:
		var claimed *types.TransferRecord
		claimed, err = o.transition(ctx, rec.ID, types.Patch{
			Expected: types.StatusAttestationReceived,
			Status:   types.ProcessingStatus(rec.Direction),
		})
		if err != nil {
			break
		}
		next, err = o.submitDestination(ctx, logger, claimed)

	case types.StatusProcessingDeposit, types.StatusProcessingWithdraw:
		if !o.stale(rec) {
			return rec, true, nil
		}
		// take the claim over first so only one stale reader resubmits
		var claimed *types.TransferRecord
		claimed, err = o.transition(ctx, rec.ID, types.Patch{
			Expected:          rec.Status,
			ExpectedUpdatedAt: rec.UpdatedAt,
		})
		if err != nil {
			break
		}
		logger.Info("Destination submission is stale, resubmitting", "updated_at", rec.UpdatedAt)
		next, err = o.submitDestination(ctx, logger, claimed)

	case types.StatusDepositConfirmed:
		next, err = o.transition(ctx, rec.ID, types.Patch{
			Expected: types.StatusDepositConfirmed,
			Status:   types.StatusCompleted,
		})

	case types.StatusWithdrawInitiated:
		next, err = o.transition(ctx, rec.ID, types.Patch{
			Expected: types.StatusWithdrawInitiated,
			Status:   types.StatusPendingAttestation,
		})

	case types.StatusInitiatingWithdraw:
		if rec.SourceTxHash != "" {
			next, err = o.confirmWithdrawInitiated(ctx, rec)
			break
		}
		fallthrough

	case types.StatusCheckingPosition, types.StatusPositionFound:
		if !o.stale(rec) {
			return rec, true, nil
		}
		err = types.NewTerminalError(nil, "withdraw interrupted in %s before a burn tx hash was recorded", rec.Status)

	default:
		err = types.NewValidationError("unknown status %q", rec.Status)
	}
	return next, false, err
}

func (o *Orchestrator) handleStepError(ctx context.Context, logger log.Logger, rec *types.TransferRecord, err error) (*types.TransferRecord, error) {
	if types.IsRetryable(err) {
		logger.Info("Transfer will be retried", "status", rec.Status, "err", err)
		// the step may have advanced the record before failing
		if current, getErr := o.store.Get(ctx, rec.ID); getErr == nil {
			return current, err
		}
		return rec, err
	}
	logger.Error("Transfer failed", "status", rec.Status, "err", err)
	return o.fail(ctx, rec, err, nil)
}

// awaitAttestation polls Circle a bounded number of times. Running out of
// attempts is transient so the scheduler picks the record up again.
func (o *Orchestrator) awaitAttestation(ctx context.Context, logger log.Logger, rec *types.TransferRecord) (*types.TransferRecord, error) {
	domain, err := o.registry.Domain(rec.SourceChain)
	if err != nil {
		return nil, err
	}
	domainLabel := strconv.FormatUint(uint64(domain), 10)

	var lastErr error
	for attempt := 1; ; attempt++ {
		att, err := o.attestor.Poll(ctx, domain, rec.SourceTxHash)
		switch {
		case err != nil:
			o.metrics.IncAttestationPoll(domainLabel, "error")
			if !types.IsRetryable(err) {
				return nil, err
			}
			logger.Debug("Attestation poll failed", "attempt", attempt, "err", err)
			lastErr = err
		case att.Ready:
			o.metrics.IncAttestationPoll(domainLabel, "ready")
			logger.Info("Attestation received", "source", rec.SourceChain, "tx", rec.SourceTxHash)
			return o.transition(ctx, rec.ID, types.Patch{
				Expected:           types.StatusPendingAttestation,
				Status:             types.StatusAttestationReceived,
				AttestationMessage: att.Message,
				AttestationProof:   att.Proof,
			})
		default:
			o.metrics.IncAttestationPoll(domainLabel, "pending")
			logger.Debug("Attestation pending", "attempt", attempt, "tx", rec.SourceTxHash)
		}

		if attempt >= o.cfg.AttestationRetries {
			return nil, types.NewTransientError(lastErr, "attestation not ready after %d attempts", attempt)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(o.cfg.AttestationRetryInterval):
		}
	}
}

// submitDestination submits the attested message on the destination vault
// manager and records the outcome. rec must be claimed in processing_*.
func (o *Orchestrator) submitDestination(ctx context.Context, logger log.Logger, rec *types.TransferRecord) (*types.TransferRecord, error) {
	dest, err := o.registry.Vault(rec.DestChain)
	if err != nil {
		return nil, err
	}
	message, err := decodeHex("attestation message", rec.AttestationMessage)
	if err != nil {
		return nil, err
	}
	proof, err := decodeHex("attestation proof", rec.AttestationProof)
	if err != nil {
		return nil, err
	}

	chainLogger := logger.With("chain", dest.Name())
	var txHash string
	if rec.Direction == types.Deposit {
		txHash, err = dest.ProcessDeposit(ctx, chainLogger, message, proof)
	} else {
		txHash, err = dest.ProcessWithdraw(ctx, chainLogger, message, proof)
	}
	if errors.Is(err, types.ErrAlreadyProcessed) {
		chainLogger.Info("Message already processed on destination")
		return o.completeDestination(ctx, rec, "")
	}
	if err != nil {
		return nil, err
	}
	chainLogger.Info("Destination transaction submitted", "tx", txHash)

	if err := dest.WaitForConfirmation(ctx, txHash); err != nil {
		return nil, err
	}
	return o.completeDestination(ctx, rec, txHash)
}

func (o *Orchestrator) completeDestination(ctx context.Context, rec *types.TransferRecord, destTxHash string) (*types.TransferRecord, error) {
	if rec.Direction == types.Withdraw {
		return o.transition(ctx, rec.ID, types.Patch{
			Expected:   types.StatusProcessingWithdraw,
			Status:     types.StatusCompleted,
			DestTxHash: destTxHash,
		})
	}
	confirmed, err := o.transition(ctx, rec.ID, types.Patch{
		Expected:   types.StatusProcessingDeposit,
		Status:     types.StatusDepositConfirmed,
		DestTxHash: destTxHash,
	})
	if err != nil {
		return nil, err
	}
	return o.transition(ctx, confirmed.ID, types.Patch{
		Expected: types.StatusDepositConfirmed,
		Status:   types.StatusCompleted,
	})
}
