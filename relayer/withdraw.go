package relayer

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

type WithdrawRequest struct {
	UserAddress string `json:"userAddress" validate:"required,eth_addr"`
}

// InitiateWithdraw locates the user's position, submits initiateWithdraw on
// the chain holding it and dispatches the rest of the workflow. A user has at
// most one active withdraw; a repeated request returns it.
//
// When no position exists the record is failed and returned together with a
// NotFound error.
func (o *Orchestrator) InitiateWithdraw(ctx context.Context, req WithdrawRequest) (*types.TransferRecord, error) {
	if err := o.validate.Struct(&req); err != nil {
		return nil, validationError(err)
	}
	user := common.HexToAddress(req.UserAddress).Hex()

	existing, err := o.store.GetByNaturalKey(ctx, types.Withdraw, user)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		o.logger.Debug("Withdraw already in progress", "transfer", existing.ID, "user", user)
		return existing, nil
	}

	settlement := o.registry.Settlement()
	rec, created, err := o.store.Create(ctx, types.NewWithdrawRecord(o.newID(), user, settlement.Name(), o.now().UTC()))
	if err != nil {
		return nil, err
	}
	if !created {
		return rec, nil
	}
	o.metrics.IncTransition(string(rec.Direction), string(rec.Status))
	o.publish(ctx, rec)

	release, ok := o.acquire(rec.ID)
	if !ok {
		return rec, nil
	}
	rec, err = o.startWithdraw(ctx, rec)
	release()

	if err != nil {
		return rec, err
	}
	if !rec.Status.Terminal() {
		o.Dispatch(rec.ID)
	}
	return rec, nil
}

// startWithdraw runs the synchronous part of a withdraw up to the persisted
// burn transaction. Failures before the tx hash is stored fail the record.
func (o *Orchestrator) startWithdraw(ctx context.Context, rec *types.TransferRecord) (*types.TransferRecord, error) {
	logger := o.logger.With("transfer", rec.ID, "user", rec.UserAddress)

	pos, chain, err := o.locator.FindPosition(ctx, rec.UserAddress)
	if err != nil {
		var snapshot *types.Position
		if !types.IsRetryable(err) {
			snapshot = types.ZeroPosition()
		}
		logger.Info("Withdraw has no position to release", "err", err)
		return o.fail(ctx, rec, err, snapshot)
	}
	if chain.Name() == rec.DestChain {
		return o.fail(ctx, rec, types.NewValidationError("position is already on settlement chain %s", chain.Name()), pos)
	}

	// once a burn may be broadcast its hash must be recorded even if the caller goes away
	ctx = context.WithoutCancel(ctx)

	rec, err = o.transition(ctx, rec.ID, types.Patch{
		Expected:    types.StatusCheckingPosition,
		Status:      types.StatusPositionFound,
		Position:    pos,
		SourceChain: chain.Name(),
	})
	if err != nil {
		return nil, err
	}
	if rec, err = o.transition(ctx, rec.ID, types.Patch{
		Expected: types.StatusPositionFound,
		Status:   types.StatusInitiatingWithdraw,
	}); err != nil {
		return nil, err
	}

	txHash, err := chain.InitiateWithdraw(ctx, logger, rec.UserAddress)
	if err != nil {
		return o.fail(ctx, rec, err, nil)
	}
	logger.Info("Withdraw initiated", "chain", chain.Name(), "tx", txHash)

	withHash, err := o.transition(ctx, rec.ID, types.Patch{SourceTxHash: txHash})
	if err != nil {
		logger.Error("Unable to record withdraw tx hash", "chain", chain.Name(), "tx", txHash, "err", err)
		return rec, err
	}

	// from here on Resume can finish the workflow, so errors are recorded on the record only
	next, err := o.confirmWithdrawInitiated(ctx, withHash)
	if err != nil {
		if types.IsRetryable(err) {
			logger.Info("Withdraw not confirmed yet, resuming later", "tx", txHash, "err", err)
			return withHash, nil
		}
		failed, _ := o.fail(ctx, withHash, err, nil)
		return failed, nil
	}
	return next, nil
}

// confirmWithdrawInitiated waits for the burn on the position's chain and advances to pending_attestation.
func (o *Orchestrator) confirmWithdrawInitiated(ctx context.Context, rec *types.TransferRecord) (*types.TransferRecord, error) {
	chain, err := o.registry.Vault(rec.SourceChain)
	if err != nil {
		return nil, err
	}
	if err := chain.WaitForConfirmation(ctx, rec.SourceTxHash); err != nil {
		return nil, err
	}
	rec, err = o.transition(ctx, rec.ID, types.Patch{
		Expected: types.StatusInitiatingWithdraw,
		Status:   types.StatusWithdrawInitiated,
	})
	if err != nil {
		return nil, err
	}
	return o.transition(ctx, rec.ID, types.Patch{
		Expected: types.StatusWithdrawInitiated,
		Status:   types.StatusPendingAttestation,
	})
}
