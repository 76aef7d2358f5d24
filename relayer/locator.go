package relayer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

// PositionLocator finds the vault chain holding a user's position.
type PositionLocator struct {
	registry    *types.Registry
	readTimeout time.Duration
	logger      log.Logger
}

func NewPositionLocator(registry *types.Registry, readTimeout time.Duration, logger log.Logger) *PositionLocator {
	return &PositionLocator{
		registry:    registry,
		readTimeout: readTimeout,
		logger:      logger,
	}
}

// FindPosition scans vault chains in registry order and returns the first
// non-empty position. It returns a NotFound error only when every chain was
// read; if any read failed the scan is reported as incomplete and transient.
func (l *PositionLocator) FindPosition(ctx context.Context, user string) (*types.Position, types.VaultChain, error) {
	var scanErr error
	for _, chain := range l.registry.VaultChains() {
		pos, err := l.read(ctx, chain, user)
		if err != nil {
			l.logger.Error("Failed to read position", "chain", chain.Name(), "user", user, "err", err)
			scanErr = errors.Join(scanErr, fmt.Errorf("%s: %w", chain.Name(), err))
			continue
		}
		if !pos.Empty() {
			l.logger.Debug("Found position", "chain", chain.Name(), "user", user, "pool_id", pos.PoolID)
			return pos, chain, nil
		}
	}

	if scanErr != nil {
		return nil, nil, types.NewTransientError(scanErr, "position scan incomplete")
	}
	return nil, nil, types.NewNotFoundError(types.NoPositionMessage)
}

func (l *PositionLocator) read(ctx context.Context, chain types.VaultChain, user string) (*types.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, l.readTimeout)
	defer cancel()
	return chain.GetPosition(ctx, user)
}
