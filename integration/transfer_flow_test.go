package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/circle"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/events"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/relayer"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/store"
	testutil "github.com/strangelove-ventures/cctp-vault-orchestrator/test_util"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

const burnTx = "0x8d5b3a0bd5fbb7c1bd1c8a5e4ef7ff3ef4ad7e3ba4a5f6be7a2ad3bd6d1fe1aa"

// TestTransferFlow drives a deposit and a withdraw through postgres,
// rabbitmq and a stubbed attestation api with the worker pool running.
func TestTransferFlow(t *testing.T) {
	requireIntegration(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbURL := startPostgres(t, ctx)
	amqpURL := startRabbitMQ(t, ctx)
	eventLog := consumeEvents(t, amqpURL)

	st := store.Open(ctx, types.DatabaseSettings{URL: dbURL, ConnectRetries: 5, ConnectRetryInterval: 1}, testutil.Logger)
	defer st.Close()
	require.Equal(t, store.BackendPostgres, st.Backend().Name)
	require.False(t, st.Backend().Degraded)

	publisher := events.New(types.EventsSettings{AMQPURL: amqpURL}, testutil.Logger)
	defer publisher.Close()
	require.IsType(t, &events.AMQPPublisher{}, publisher)

	registry, chains := testutil.RegistrySetup(t)
	attestor := circle.NewClient(circleStub(t).URL, time.Second, testutil.Logger)

	orchestrator := relayer.NewOrchestrator(relayer.Config{
		WorkerCount:              4,
		AttestationRetries:       3,
		AttestationRetryInterval: 100 * time.Millisecond,
		PositionReadTimeout:      time.Second,
	}, registry, st, attestor, publisher, nil, testutil.Logger)
	orchestrator.Start(ctx)

	t.Run("deposit", func(t *testing.T) {
		rec, err := orchestrator.InitiateDeposit(ctx, relayer.DepositRequest{
			UserAddress:  testutil.UserA,
			SourceChain:  "noble",
			DestChain:    "base",
			Amount:       "2500000",
			SourceTxHash: burnTx,
			PoolID:       1,
		})
		require.NoError(t, err)

		done := waitForStatus(t, st, rec.ID, types.StatusCompleted)
		require.NotEmpty(t, done.DestTxHash)
		require.Equal(t, 1, chains["base"].DepositCount())

		require.Eventually(t, func() bool {
			keys := eventLog.keysFor(rec.ID)
			return len(keys) > 0 && keys[len(keys)-1] == "transfer.deposit.completed"
		}, 10*time.Second, 50*time.Millisecond)
	})

	t.Run("withdraw", func(t *testing.T) {
		chains["arbitrum"].SetPosition(testutil.UserB, &types.Position{PoolID: 1, PositionID: 3, Principal: "2500000", Shares: "2400000"})

		rec, err := orchestrator.InitiateWithdraw(ctx, relayer.WithdrawRequest{UserAddress: testutil.UserB})
		require.NoError(t, err)
		require.Equal(t, common.HexToAddress(testutil.UserB).Hex(), rec.UserAddress)

		done := waitForStatus(t, st, rec.ID, types.StatusCompleted)
		require.Equal(t, "arbitrum", done.SourceChain)
		require.Equal(t, uint64(3), done.Position.PositionID)
		require.Equal(t, 1, chains["base"].WithdrawalCount())

		require.Eventually(t, func() bool {
			keys := eventLog.keysFor(rec.ID)
			return len(keys) > 0 && keys[0] == "transfer.withdraw.checking_position" &&
				keys[len(keys)-1] == "transfer.withdraw.completed"
		}, 10*time.Second, 50*time.Millisecond)
	})

	t.Run("nothing left to resume", func(t *testing.T) {
		s, err := relayer.NewScheduler(types.SchedulerSettings{}, st, orchestrator, nil, testutil.Logger)
		require.NoError(t, err)

		result, ok := s.RunPass(ctx)
		require.True(t, ok)
		require.Zero(t, result.Scanned)
	})
}

func waitForStatus(t *testing.T, st store.Store, id string, status types.Status) *types.TransferRecord {
	t.Helper()
	var rec *types.TransferRecord
	require.Eventually(t, func() bool {
		got, err := st.Get(context.Background(), id)
		if err != nil {
			return false
		}
		rec = got
		return got.Status == status
	}, 30*time.Second, 100*time.Millisecond, "transfer %s never reached %s", id, status)
	return rec
}
