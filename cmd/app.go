package cmd

import (
	"context"
	"fmt"
	"time"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/circle"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/ethereum"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/events"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/noble"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/relayer"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/store"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

// services holds the wired components shared by start and resume.
type services struct {
	registry     *types.Registry
	store        store.Store
	publisher    events.Publisher
	orchestrator *relayer.Orchestrator
	evmChains    []*ethereum.Ethereum
}

// buildApp connects every configured chain, the store, the event publisher
// and the attestation client, and wires them into an orchestrator.
func buildApp(ctx context.Context, cfg *types.Config, logger log.Logger, metrics *relayer.PromMetrics) (*services, error) {
	a := &services{}
	sequenceMap := types.NewSequenceMap()

	var (
		chains     []types.SourceChain
		maxConfirm time.Duration
	)
	for _, entry := range cfg.Chains {
		c, err := entry.Config.Chain(entry.Name)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("error creating chain %s: %w", entry.Name, err)
		}

		if evm, ok := c.(*ethereum.Ethereum); ok {
			chainLogger := logger.With("chain", entry.Name)
			if err := evm.InitializeClients(ctx, chainLogger); err != nil {
				a.Close()
				return nil, fmt.Errorf("error initializing client for %s: %w", entry.Name, err)
			}
			a.evmChains = append(a.evmChains, evm)

			if err := evm.InitializeBroadcaster(ctx, chainLogger, sequenceMap, metrics); err != nil {
				a.Close()
				return nil, fmt.Errorf("error initializing broadcaster for %s: %w", entry.Name, err)
			}
			if evm.ConfirmationTimeout() > maxConfirm {
				maxConfirm = evm.ConfirmationTimeout()
			}
		}
		if n, ok := c.(*noble.Noble); ok {
			// burn verification tolerates an unreachable rpc, so this only logs
			if height, err := n.LatestHeight(ctx); err != nil {
				logger.Error("Noble rpc unreachable at startup", "chain", entry.Name, "err", err)
			} else {
				logger.Info("Connected to noble", "chain", entry.Name, "height", height)
			}
		}
		chains = append(chains, c)
	}

	registry, err := types.NewRegistry(chains, cfg.SettlementChain)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.registry = registry

	a.store = store.Open(ctx, cfg.Database, logger)
	metrics.SetStoreDegraded(a.store.Backend().Degraded)

	a.publisher = events.New(cfg.Events, logger)

	attestor := circle.NewClient(
		cfg.Circle.AttestationBaseURL,
		time.Duration(cfg.Circle.RequestTimeout)*time.Second,
		logger,
	)

	a.orchestrator = relayer.NewOrchestrator(
		relayer.Config{
			WorkerCount:              cfg.ProcessorWorkerCount,
			QueueSize:                cfg.ProcessorQueueSize,
			AttestationRetries:       cfg.Circle.FetchRetries,
			AttestationRetryInterval: time.Duration(cfg.Circle.FetchRetryInterval) * time.Second,
			PositionReadTimeout:      time.Duration(cfg.PositionReadTimeout) * time.Second,
			ProcessingStaleAfter:     2 * maxConfirm,
		},
		registry,
		a.store,
		attestor,
		a.publisher,
		metrics,
		logger,
	)
	return a, nil
}

func (a *services) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	for _, c := range a.evmChains {
		_ = c.CloseClients()
	}
}
