package cosmos

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	coretypes "github.com/cometbft/cometbft/rpc/core/types"
)

// QueryTx looks up a committed transaction by its hex hash. The hash may carry a 0x prefix.
func (cc *CosmosProvider) QueryTx(ctx context.Context, txHash string) (*coretypes.ResultTx, error) {
	hash, err := DecodeTxHash(txHash)
	if err != nil {
		return nil, err
	}
	return cc.RPCClient.Tx(ctx, hash, false)
}

// QueryLatestHeight queries the latest height from the RPC client
func (cc *CosmosProvider) QueryLatestHeight(ctx context.Context) (int64, error) {
	status, err := cc.RPCClient.Status(ctx)
	if err != nil {
		return 0, err
	}
	return status.SyncInfo.LatestBlockHeight, nil
}

// DecodeTxHash converts a CometBFT tx hash into bytes.
func DecodeTxHash(txHash string) ([]byte, error) {
	hash, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(txHash, "0x"), "0X"))
	if err != nil {
		return nil, fmt.Errorf("invalid tx hash %q: %w", txHash, err)
	}
	if len(hash) != 32 {
		return nil, fmt.Errorf("invalid tx hash %q: expected 32 bytes, got %d", txHash, len(hash))
	}
	return hash, nil
}
