package ethereum

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

const methodGetUserPosition = "getUserPosition"

// GetPosition reads the user's position from the vault manager at the latest block.
func (e *Ethereum) GetPosition(ctx context.Context, user string) (*types.Position, error) {
	if !common.IsHexAddress(user) {
		return nil, types.NewValidationError("invalid user address %q", user)
	}
	data, err := e.vaultManagerABI.Pack(methodGetUserPosition, common.HexToAddress(user))
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", methodGetUserPosition, err)
	}

	to := common.HexToAddress(e.vaultManagerAddress)
	result, err := e.rpcClient.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, types.NewTransientError(err, "failed to read position on %s", e.name)
	}

	out, err := e.vaultManagerABI.Unpack(methodGetUserPosition, result)
	if err != nil {
		return nil, types.NewTerminalError(err, "failed to unpack position on %s", e.name)
	}
	return decodePosition(out)
}

// decodePosition maps getUserPosition outputs
// (poolId, positionId, owner, principal, shares, vault) onto a Position.
func decodePosition(out []interface{}) (*types.Position, error) {
	if len(out) != 6 {
		return nil, fmt.Errorf("expected 6 position fields, got %d", len(out))
	}

	var (
		poolID, positionID, principal, shares *big.Int
		owner, vault                          common.Address
		ok                                    bool
	)
	if poolID, ok = out[0].(*big.Int); !ok {
		return nil, fmt.Errorf("unexpected pool id type %T", out[0])
	}
	if positionID, ok = out[1].(*big.Int); !ok {
		return nil, fmt.Errorf("unexpected position id type %T", out[1])
	}
	if owner, ok = out[2].(common.Address); !ok {
		return nil, fmt.Errorf("unexpected owner type %T", out[2])
	}
	if principal, ok = out[3].(*big.Int); !ok {
		return nil, fmt.Errorf("unexpected principal type %T", out[3])
	}
	if shares, ok = out[4].(*big.Int); !ok {
		return nil, fmt.Errorf("unexpected shares type %T", out[4])
	}
	if vault, ok = out[5].(common.Address); !ok {
		return nil, fmt.Errorf("unexpected vault type %T", out[5])
	}
	if !poolID.IsUint64() || !positionID.IsUint64() {
		return nil, fmt.Errorf("pool id %s or position id %s out of range", poolID, positionID)
	}

	return &types.Position{
		PoolID:     poolID.Uint64(),
		PositionID: positionID.Uint64(),
		Owner:      owner.Hex(),
		Principal:  principal.String(),
		Shares:     shares.String(),
		Vault:      vault.Hex(),
	}, nil
}
