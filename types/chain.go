package types

import (
	"context"

	"cosmossdk.io/log"
)

// Domain is Circle's CCTP numbering of a network. It is a separate namespace
// from the network's native chain id.
type Domain uint32

// SourceChain is any chain a CCTP burn can originate from.
type SourceChain interface {
	// Name returns the registry name of the chain.
	Name() string

	// Domain returns the CCTP domain ID of the chain.
	Domain() Domain

	// VerifySourceTx checks that a burn transaction did not fail on chain.
	// It returns a validation error for a failed transaction and nil when the
	// transaction is confirmed or not yet visible.
	VerifySourceTx(ctx context.Context, txHash string) error
}

// VaultChain is a chain hosting a vault manager contract the orchestrator reads and writes.
type VaultChain interface {
	SourceChain

	// ChainID returns the native network id.
	ChainID() int64

	// VaultManager returns the vault manager contract address.
	VaultManager() string

	// GetPosition reads the user's open position. An empty position has pool id 0.
	GetPosition(ctx context.Context, user string) (*Position, error)

	// InitiateWithdraw submits the burn that starts a withdraw and returns its tx hash without waiting for confirmation.
	InitiateWithdraw(ctx context.Context, logger log.Logger, user string) (string, error)

	// ProcessDeposit submits an attested deposit message and returns the tx hash.
	ProcessDeposit(ctx context.Context, logger log.Logger, message, attestation []byte) (string, error)

	// ProcessWithdraw submits an attested withdraw message and returns the tx hash.
	ProcessWithdraw(ctx context.Context, logger log.Logger, message, attestation []byte) (string, error)

	// WaitForConfirmation blocks until the transaction is mined successfully,
	// reverts, or the chain's confirmation timeout expires.
	WaitForConfirmation(ctx context.Context, txHash string) error
}
