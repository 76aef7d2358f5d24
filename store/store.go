package store

import (
	"context"
	"fmt"
	"time"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

// Store persists transfer records. Every variant enforces the record
// invariants through types.ApplyPatch and serializes transitions per record.
type Store interface {
	// Create inserts rec unless a record with the same natural key exists, in
	// which case the existing record is returned and created is false.
	Create(ctx context.Context, rec *types.TransferRecord) (record *types.TransferRecord, created bool, err error)

	// Get returns a NotFound error when no record has the id.
	Get(ctx context.Context, id string) (*types.TransferRecord, error)

	// GetByNaturalKey returns the deposit for a source tx hash, or the active
	// withdraw for a user address. It returns nil, nil when none exists.
	GetByNaturalKey(ctx context.Context, direction types.Direction, key string) (*types.TransferRecord, error)

	// Transition atomically applies p against the latest persisted state.
	Transition(ctx context.Context, id string, p types.Patch) (*types.TransferRecord, error)

	// ListResumable returns records matching f, oldest first.
	ListResumable(ctx context.Context, f Filter) ([]*types.TransferRecord, error)

	Backend() Backend
	Close()
}

// Filter selects records for the resumption sweep.
type Filter struct {
	Statuses   []types.Status
	Directions []types.Direction
	// RequireSourceTx skips records without a source tx hash.
	RequireSourceTx bool
	Limit           int
}

func (f Filter) match(rec *types.TransferRecord) bool {
	if f.RequireSourceTx && rec.SourceTxHash == "" {
		return false
	}
	return containsStatus(f.Statuses, rec.Status) && containsDirection(f.Directions, rec.Direction)
}

func containsStatus(list []types.Status, s types.Status) bool {
	if len(list) == 0 {
		return true
	}
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsDirection(list []types.Direction, d types.Direction) bool {
	if len(list) == 0 {
		return true
	}
	for _, v := range list {
		if v == d {
			return true
		}
	}
	return false
}

// Backend describes the variant selected at startup.
type Backend struct {
	Name     string `json:"name"`
	Degraded bool   `json:"degraded"`
	Reason   string `json:"reason,omitempty"`
}

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Open selects the store variant once. Without a database url, or when the
// database stays unreachable through the retry policy, it returns a degraded
// in-memory store. Records in a degraded store do not survive a restart.
func Open(ctx context.Context, cfg types.DatabaseSettings, logger log.Logger) Store {
	if cfg.URL == "" {
		reason := "no database url configured"
		logger.Error("Transfer store running in memory, records will be lost on restart", "reason", reason)
		return NewDegradedMemoryStore(reason)
	}

	retries := cfg.ConnectRetries
	if retries < 1 {
		retries = 1
	}
	interval := time.Duration(cfg.ConnectRetryInterval) * time.Second

	var lastErr error
	for i := 0; i < retries; i++ {
		pg, err := NewPostgresStore(ctx, cfg)
		if err == nil {
			logger.Info("Connected to transfer store", "backend", BackendPostgres)
			return pg
		}
		lastErr = err
		logger.Error("Failed to connect to transfer store", "attempt", i+1, "retries", retries, "err", err)

		if i+1 < retries {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				i = retries
			case <-time.After(interval):
			}
		}
	}

	reason := fmt.Sprintf("postgres unavailable: %v", lastErr)
	logger.Error("Transfer store running in memory, records will be lost on restart", "reason", reason)
	return NewDegradedMemoryStore(reason)
}
