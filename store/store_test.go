package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/store"
	testutil "github.com/strangelove-ventures/cctp-vault-orchestrator/test_util"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

// testStoreContract runs the behaviour every store variant must share.
func testStoreContract(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("CreateIsIdempotentOnSourceTx", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		hash := "0x" + uuid.NewString()

		first, created, err := s.Create(ctx, depositRecord(hash, time.Now()))
		require.NoError(t, err)
		require.True(t, created)

		second, created, err := s.Create(ctx, depositRecord(hash, time.Now()))
		require.NoError(t, err)
		require.False(t, created)
		require.Equal(t, first.ID, second.ID)

		byKey, err := s.GetByNaturalKey(ctx, types.Deposit, hash)
		require.NoError(t, err)
		require.Equal(t, first.ID, byKey.ID)
	})

	t.Run("OneActiveWithdrawPerUser", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		user := fmt.Sprintf("0x%040x", time.Now().UnixNano())

		first, created, err := s.Create(ctx, types.NewWithdrawRecord(uuid.NewString(), user, "base", time.Now()))
		require.NoError(t, err)
		require.True(t, created)

		again, created, err := s.Create(ctx, types.NewWithdrawRecord(uuid.NewString(), user, "base", time.Now()))
		require.NoError(t, err)
		require.False(t, created)
		require.Equal(t, first.ID, again.ID)

		_, err = s.Transition(ctx, first.ID, types.Patch{
			Status:       types.StatusFailed,
			Position:     types.ZeroPosition(),
			ErrorMessage: types.NoPositionMessage,
		})
		require.NoError(t, err)

		active, err := s.GetByNaturalKey(ctx, types.Withdraw, user)
		require.NoError(t, err)
		require.Nil(t, active)

		// a finished withdraw does not block a new one
		next, created, err := s.Create(ctx, types.NewWithdrawRecord(uuid.NewString(), user, "base", time.Now()))
		require.NoError(t, err)
		require.True(t, created)
		require.NotEqual(t, first.ID, next.ID)

		failed, err := s.Get(ctx, first.ID)
		require.NoError(t, err)
		require.Equal(t, types.NoPositionMessage, failed.ErrorMessage)
		require.Equal(t, "0", failed.Position.Principal)
	})

	t.Run("GetUnknownIsNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), uuid.NewString())
		require.ErrorIs(t, err, types.ErrNotFound)

		_, err = s.Transition(context.Background(), uuid.NewString(), types.Patch{Status: types.StatusFailed})
		require.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("ConcurrentClaimHasOneWinner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		rec, _, err := s.Create(ctx, depositRecord("0x"+uuid.NewString(), time.Now()))
		require.NoError(t, err)
		_, err = s.Transition(ctx, rec.ID, types.Patch{
			Expected:           types.StatusPendingAttestation,
			Status:             types.StatusAttestationReceived,
			AttestationMessage: "0x01",
			AttestationProof:   "0x02",
		})
		require.NoError(t, err)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Transition(ctx, rec.ID, types.Patch{
					Expected: types.StatusAttestationReceived,
					Status:   types.StatusProcessingDeposit,
				})
				if err == nil {
					mu.Lock()
					winners++
					mu.Unlock()
					return
				}
				assert.ErrorIs(t, err, types.ErrStatusConflict)
			}()
		}
		wg.Wait()
		require.Equal(t, 1, winners)

		got, err := s.Get(ctx, rec.ID)
		require.NoError(t, err)
		require.Equal(t, types.StatusProcessingDeposit, got.Status)
		require.Equal(t, "0x01", got.AttestationMessage)
	})

	t.Run("ListResumableOldestFirst", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		base := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)

		var ids []string
		for i := 3; i > 0; i-- {
			rec, _, err := s.Create(ctx, depositRecord("0x"+uuid.NewString(), base.Add(time.Duration(i)*time.Minute)))
			require.NoError(t, err)
			ids = append([]string{rec.ID}, ids...)
		}
		// withdraws without a source tx are not resumable
		_, _, err := s.Create(ctx, types.NewWithdrawRecord(uuid.NewString(), fmt.Sprintf("0x%040x", time.Now().UnixNano()), "base", base))
		require.NoError(t, err)

		list, err := s.ListResumable(ctx, store.Filter{
			Statuses:        []types.Status{types.StatusPendingAttestation, types.StatusCheckingPosition},
			RequireSourceTx: true,
			Limit:           2,
		})
		require.NoError(t, err)
		require.Len(t, list, 2)
		require.Equal(t, ids[0], list[0].ID)
		require.Equal(t, ids[1], list[1].ID)

		list, err = s.ListResumable(ctx, store.Filter{
			Statuses:   []types.Status{types.StatusPendingAttestation},
			Directions: []types.Direction{types.Withdraw},
		})
		require.NoError(t, err)
		require.Empty(t, list)
	})

	t.Run("RejectedPatchLeavesRecordUntouched", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		rec, _, err := s.Create(ctx, depositRecord("0x"+uuid.NewString(), time.Now()))
		require.NoError(t, err)

		_, err = s.Transition(ctx, rec.ID, types.Patch{Status: types.StatusCompleted, DestTxHash: "0xbeef"})
		require.ErrorIs(t, err, types.ErrValidation)

		got, err := s.Get(ctx, rec.ID)
		require.NoError(t, err)
		require.Equal(t, types.StatusPendingAttestation, got.Status)
		require.Empty(t, got.DestTxHash)
	})
}

func now() time.Time { return time.Now().UTC() }

func depositRecord(hash string, createdAt time.Time) *types.TransferRecord {
	return types.NewDepositRecord(uuid.NewString(), testutil.UserA, "ethereum", "base", "1000000", 2, hash, createdAt.UTC())
}
