package relayer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/relayer"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/store"
	testutil "github.com/strangelove-ventures/cctp-vault-orchestrator/test_util"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

const burnTx = "0x912f22a13e9ccb979b621500f6952b2afd6e75be7eadaed93fc2625fe11c52a2"

type harness struct {
	orchestrator *relayer.Orchestrator
	store        *store.MemoryStore
	attestor     *testutil.MockAttestor
	registry     *types.Registry
	chains       map[string]*testutil.MockVaultChain
}

func testConfig() relayer.Config {
	return relayer.Config{
		AttestationRetries:       2,
		AttestationRetryInterval: time.Millisecond,
		PositionReadTimeout:      time.Second,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithConfig(t, testConfig())
}

func newHarnessWithConfig(t *testing.T, cfg relayer.Config) *harness {
	t.Helper()
	registry, chains := testutil.RegistrySetup(t)
	st := store.NewMemoryStore()
	attestor := &testutil.MockAttestor{}
	return &harness{
		orchestrator: relayer.NewOrchestrator(cfg, registry, st, attestor, nil, nil, testutil.Logger),
		store:        st,
		attestor:     attestor,
		registry:     registry,
		chains:       chains,
	}
}

// ctxStore fails transitions once the caller's context is done, as the postgres store does.
type ctxStore struct {
	*store.MemoryStore
}

func (s ctxStore) Transition(ctx context.Context, id string, p types.Patch) (*types.TransferRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.NewPersistenceError(err, "failed to update transfer %s", id)
	}
	return s.MemoryStore.Transition(ctx, id, p)
}

// peer returns a second orchestrator sharing the store and chains, like another replica.
func (h *harness) peer(cfg relayer.Config) *relayer.Orchestrator {
	return relayer.NewOrchestrator(cfg, h.registry, h.store, h.attestor, nil, nil, testutil.Logger)
}

func depositRequest() relayer.DepositRequest {
	return relayer.DepositRequest{
		UserAddress:  testutil.UserA,
		SourceChain:  "ethereum",
		DestChain:    "base",
		Amount:       "1000000",
		SourceTxHash: burnTx,
		PoolID:       2,
	}
}

func (h *harness) deposit(t *testing.T) *types.TransferRecord {
	t.Helper()
	rec, err := h.orchestrator.InitiateDeposit(context.Background(), depositRequest())
	require.NoError(t, err)
	return rec
}
