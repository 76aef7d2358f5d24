package noble

import (
	"context"
	"fmt"
	"strings"

	coretypes "github.com/cometbft/cometbft/rpc/core/types"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/cosmos"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

const nobleDomain types.Domain = 4

var _ types.SourceChain = (*Noble)(nil)

type txQuerier interface {
	QueryTx(ctx context.Context, txHash string) (*coretypes.ResultTx, error)
	QueryLatestHeight(ctx context.Context) (int64, error)
}

// Noble is a burn-only source chain. The orchestrator never writes to it;
// it only checks that a deposit's burn transaction succeeded.
type Noble struct {
	name    string
	chainID string
	cc      txQuerier
}

func NewChain(name, rpcURL, chainID string) (*Noble, error) {
	cc, err := cosmos.NewProvider(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("unable to build cosmos provider for noble: %w", err)
	}
	return &Noble{
		name:    name,
		chainID: chainID,
		cc:      cc,
	}, nil
}

func (n *Noble) Name() string {
	return n.name
}

func (n *Noble) Domain() types.Domain {
	return nobleDomain
}

func (n *Noble) ChainID() string {
	return n.chainID
}

// LatestHeight reports the chain tip, used at startup to check the RPC is reachable.
func (n *Noble) LatestHeight(ctx context.Context) (int64, error) {
	height, err := n.cc.QueryLatestHeight(ctx)
	if err != nil {
		return 0, types.NewTransientError(err, "unable to query latest height on %s", n.name)
	}
	return height, nil
}

// VerifySourceTx rejects a burn whose DeliverTx result code is non zero.
// A transaction that is not yet indexed passes.
func (n *Noble) VerifySourceTx(ctx context.Context, txHash string) error {
	if _, err := cosmos.DecodeTxHash(txHash); err != nil {
		return types.NewValidationError("%s", err.Error())
	}
	res, err := n.cc.QueryTx(ctx, txHash)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil
		}
		return types.NewTransientError(err, "unable to query tx %s on %s", txHash, n.name)
	}
	if res.TxResult.Code != 0 {
		return types.NewValidationError("source transaction %s failed on %s with code %d: %s",
			txHash, n.name, res.TxResult.Code, res.TxResult.Log)
	}
	return nil
}
