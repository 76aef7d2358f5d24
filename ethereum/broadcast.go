package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"cosmossdk.io/log"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/relayer"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

const (
	methodInitiateWithdraw = "initiateWithdraw"
	methodProcessDeposit   = "processDeposit"
	methodProcessWithdraw  = "processWithdraw"
)

// InitializeBroadcaster seeds the signer nonce for this chain.
func (e *Ethereum) InitializeBroadcaster(
	ctx context.Context,
	logger log.Logger,
	sequenceMap *types.SequenceMap,
	m *relayer.PromMetrics,
) error {
	e.sequenceMap = sequenceMap
	e.metrics = m

	nextNonce, err := e.rpcClient.PendingNonceAt(ctx, common.HexToAddress(e.signerAddress))
	if err != nil {
		return fmt.Errorf("unable to retrieve evm account nonce: %w", err)
	}
	// a node that has not seen our latest broadcasts must not move the nonce backwards
	if reserved, ok := sequenceMap.Peek(e.name); ok && reserved > nextNonce {
		logger.Info("Keeping reserved nonce ahead of node", "chain", e.name, "node_nonce", nextNonce, "reserved", reserved)
		nextNonce = reserved
	}
	sequenceMap.Put(e.name, nextNonce)

	logger.Info("Initialized broadcaster", "chain", e.name, "signer", e.signerAddress, "nonce", nextNonce)
	return nil
}

func (e *Ethereum) InitiateWithdraw(ctx context.Context, logger log.Logger, user string) (string, error) {
	if !common.IsHexAddress(user) {
		return "", types.NewValidationError("invalid user address %q", user)
	}
	return e.transact(ctx, logger, methodInitiateWithdraw, common.HexToAddress(user))
}

func (e *Ethereum) ProcessDeposit(ctx context.Context, logger log.Logger, message, attestation []byte) (string, error) {
	return e.transact(ctx, logger, methodProcessDeposit, message, attestation)
}

func (e *Ethereum) ProcessWithdraw(ctx context.Context, logger log.Logger, message, attestation []byte) (string, error) {
	return e.transact(ctx, logger, methodProcessWithdraw, message, attestation)
}

// transact submits a vault manager call, retrying transient failures up to
// the configured broadcast retries. It returns once the node accepted the
// transaction; confirmation is a separate step.
func (e *Ethereum) transact(ctx context.Context, logger log.Logger, method string, args ...interface{}) (string, error) {
	logger = logger.With("chain", e.name, "chain_id", e.chainID, "domain", e.domain, "method", method)

	auth, err := bind.NewKeyedTransactorWithChainID(e.privateKey, big.NewInt(e.chainID))
	if err != nil {
		return "", types.NewTerminalError(err, "unable to create auth")
	}
	auth.Context = ctx

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		txHash, err := e.attemptBroadcast(logger, auth, method, args...)
		if err == nil {
			return txHash, nil
		}
		lastErr = err
		if !types.IsRetryable(err) {
			if !errors.Is(err, types.ErrAlreadyProcessed) && e.metrics != nil {
				e.metrics.IncBroadcastErrors(e.name, fmt.Sprint(e.domain))
			}
			return "", err
		}

		// if it's not the last attempt, retry
		if attempt != e.maxRetries {
			logger.Info(fmt.Sprintf("Retrying in %d seconds", e.retryIntervalSeconds))
			select {
			case <-ctx.Done():
				return "", types.NewTransientError(ctx.Err(), "broadcast to %s interrupted", e.name)
			case <-time.After(time.Duration(e.retryIntervalSeconds) * time.Second):
			}
		}
	}

	// retried max times with failure
	if e.metrics != nil {
		e.metrics.IncBroadcastErrors(e.name, fmt.Sprint(e.domain))
	}
	return "", types.NewTransientError(lastErr, "reached max number of broadcast attempts on %s", e.name)
}

// attemptBroadcast holds the chain mutex only while a nonce is reserved and
// the transaction is sent.
func (e *Ethereum) attemptBroadcast(
	logger log.Logger,
	auth *bind.TransactOpts,
	method string,
	args ...interface{},
) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nonce := e.sequenceMap.Next(e.name)
	auth.Nonce = new(big.Int).SetUint64(nonce)

	logger.Info("Broadcasting vault manager call", "nonce", nonce)

	tx, err := e.vaultManager.Transact(auth, method, args...)
	if err == nil {
		logger.Info(fmt.Sprintf("Successfully broadcast %s to %s. Tx hash: %s", method, e.name, tx.Hash().Hex()))
		return tx.Hash().Hex(), nil
	}

	logger.Error(fmt.Sprintf("error during broadcast: %s", err.Error()))

	// the node rejected the tx so the reserved nonce is still free
	e.sequenceMap.Put(e.name, nonce)
	if next, ok := parseNextNonce(err); ok {
		e.sequenceMap.Put(e.name, next)
	}

	classified := classifyBroadcastError(e.name, err)
	if errors.Is(classified, types.ErrAlreadyProcessed) {
		logger.Info("Message was already processed on destination")
	}
	return "", classified
}

// WaitForConfirmation polls for the receipt until it is mined or the chain's
// confirmation timeout expires. A timeout is transient; a revert is terminal.
func (e *Ethereum) WaitForConfirmation(ctx context.Context, txHash string) error {
	ctx, cancel := context.WithTimeout(ctx, e.confirmationTimeout)
	defer cancel()

	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(e.receiptPollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		receipt, err := e.rpcClient.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status == ethtypes.ReceiptStatusSuccessful {
				return nil
			}
			return types.NewTerminalError(nil, "transaction %s reverted on %s", txHash, e.name)
		case !errors.Is(err, ethereum.NotFound):
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if lastErr == nil {
				lastErr = ctx.Err()
			}
			return types.NewTransientError(lastErr, "transaction %s not confirmed on %s", txHash, e.name)
		case <-ticker.C:
		}
	}
}

// VerifySourceTx rejects a burn whose receipt shows it failed. A transaction
// that is not yet mined passes.
func (e *Ethereum) VerifySourceTx(ctx context.Context, txHash string) error {
	receipt, err := e.rpcClient.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil
		}
		return types.NewTransientError(err, "unable to fetch receipt for %s on %s", txHash, e.name)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return types.NewValidationError("source transaction %s failed on %s", txHash, e.name)
	}
	return nil
}
