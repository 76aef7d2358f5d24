package ethereum

import (
	"context"
	"math/big"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/relayer"
)

const walletBalanceInterval = 30 * time.Second

// WalletBalanceMetric reports the signer's native balance until ctx is done.
func (e *Ethereum) WalletBalanceMetric(ctx context.Context, logger log.Logger, m *relayer.PromMetrics) {
	logger = logger.With("chain", e.name, "address", e.signerAddress)
	for {
		if balance, err := e.walletBalance(ctx); err != nil {
			logger.Error("Error querying wallet balance", "err", err)
		} else {
			m.SetWalletBalance(e.name, e.signerAddress, balance)
		}

		timer := time.NewTimer(walletBalanceInterval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// walletBalance returns the signer balance in ether.
func (e *Ethereum) walletBalance(ctx context.Context) (float64, error) {
	wei, err := e.rpcClient.BalanceAt(ctx, common.HexToAddress(e.signerAddress), nil)
	if err != nil {
		return 0, err
	}
	ether, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether)).Float64()
	return ether, nil
}
