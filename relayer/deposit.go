package relayer

import (
	"context"
	"errors"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

// DepositRequest starts a deposit for a burn the user already submitted on the source chain.
type DepositRequest struct {
	UserAddress  string `json:"userAddress" validate:"required,eth_addr"`
	SourceChain  string `json:"sourceChain" validate:"required"`
	DestChain    string `json:"destChain" validate:"required"`
	Amount       string `json:"amount" validate:"required,numeric"`
	SourceTxHash string `json:"sourceTxHash" validate:"required,hexadecimal"`
	PoolID       uint64 `json:"poolId" validate:"gt=0"`
}

// InitiateDeposit records a deposit and dispatches it. It is idempotent on
// the source tx hash: a repeated request returns the existing record.
func (o *Orchestrator) InitiateDeposit(ctx context.Context, req DepositRequest) (*types.TransferRecord, error) {
	if err := o.validateDeposit(&req); err != nil {
		return nil, err
	}

	existing, err := o.store.GetByNaturalKey(ctx, types.Deposit, req.SourceTxHash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		o.logger.Debug("Deposit already recorded", "transfer", existing.ID, "tx", req.SourceTxHash)
		return existing, nil
	}

	source, err := o.registry.Lookup(req.SourceChain)
	if err != nil {
		return nil, err
	}
	if err := source.VerifySourceTx(ctx, req.SourceTxHash); err != nil {
		if errors.Is(err, types.ErrValidation) {
			return nil, err
		}
		// the burn may simply not be visible yet; the attestation decides
		o.logger.Error("Unable to verify source transaction", "chain", req.SourceChain, "tx", req.SourceTxHash, "err", err)
	}

	draft := types.NewDepositRecord(
		o.newID(),
		req.UserAddress,
		req.SourceChain,
		req.DestChain,
		req.Amount,
		req.PoolID,
		req.SourceTxHash,
		o.now().UTC(),
	)
	rec, created, err := o.store.Create(ctx, draft)
	if err != nil {
		return nil, err
	}
	if created {
		o.logger.Info("Deposit recorded", "transfer", rec.ID, "source", rec.SourceChain, "dest", rec.DestChain, "tx", rec.SourceTxHash)
		o.metrics.IncTransition(string(rec.Direction), string(rec.Status))
		o.publish(ctx, rec)
	}
	if !rec.Status.Terminal() {
		o.Dispatch(rec.ID)
	}
	return rec, nil
}

// validateDeposit checks the request and normalizes the address and tx hash in place.
func (o *Orchestrator) validateDeposit(req *DepositRequest) error {
	if err := o.validate.Struct(req); err != nil {
		return validationError(err)
	}

	amount, ok := sdkmath.NewIntFromString(req.Amount)
	if !ok || !amount.IsPositive() {
		return types.NewValidationError("amount must be a positive integer in base units, got %q", req.Amount)
	}
	req.Amount = amount.String()

	req.SourceTxHash = normalizeTxHash(req.SourceTxHash)
	if len(req.SourceTxHash) != 66 {
		return types.NewValidationError("source tx hash must be 32 bytes, got %q", req.SourceTxHash)
	}
	req.UserAddress = common.HexToAddress(req.UserAddress).Hex()

	if req.SourceChain == req.DestChain {
		return types.NewValidationError("source and destination chain must differ")
	}
	if _, err := o.registry.Domain(req.SourceChain); err != nil {
		return err
	}
	if _, err := o.registry.Vault(req.DestChain); err != nil {
		return err
	}
	return nil
}
