package relayer_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/relayer"
	testutil "github.com/strangelove-ventures/cctp-vault-orchestrator/test_util"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

func TestInitiateDepositIsIdempotentOnSourceTx(t *testing.T) {
	h := newHarness(t)

	first := h.deposit(t)
	require.Equal(t, types.StatusPendingAttestation, first.Status)
	require.Equal(t, burnTx, first.SourceTxHash)

	// same burn submitted again without prefix and in upper case
	req := depositRequest()
	req.SourceTxHash = strings.ToUpper(strings.TrimPrefix(burnTx, "0x"))
	second, err := h.orchestrator.InitiateDeposit(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestDepositResumeTwiceSubmitsOnce(t *testing.T) {
	h := newHarness(t)
	h.attestor.Queue(testutil.Ready("0x01", "0x02"))
	rec := h.deposit(t)

	done, err := h.orchestrator.Resume(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusCompleted, done.Status)
	require.NotEmpty(t, done.DestTxHash)
	require.Equal(t, "0x01", done.AttestationMessage)
	require.Equal(t, "0x02", done.AttestationProof)

	base := h.chains["base"]
	require.Equal(t, 1, base.DepositCount())
	require.Equal(t, []byte{0x01}, base.Deposits[0][0])
	require.Equal(t, []byte{0x02}, base.Deposits[0][1])
	require.Equal(t, []string{done.DestTxHash}, base.Confirmed)

	again, err := h.orchestrator.Resume(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, done, again)
	require.Equal(t, 1, base.DepositCount())

	// ethereum domain is 0 and must be passed through as such
	require.Equal(t, []types.Domain{0}, h.attestor.Domains)
}

func TestDepositFromNobleUsesNobleDomain(t *testing.T) {
	h := newHarness(t)
	h.attestor.Queue(testutil.Ready("0x0a0b", "0x0c"))

	req := depositRequest()
	req.SourceChain = "noble"
	rec, err := h.orchestrator.InitiateDeposit(context.Background(), req)
	require.NoError(t, err)

	done, err := h.orchestrator.Resume(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusCompleted, done.Status)
	require.Equal(t, []types.Domain{4}, h.attestor.Domains)
}

func TestInitiateDepositValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*relayer.DepositRequest)
	}{
		{"malformed address", func(r *relayer.DepositRequest) { r.UserAddress = "0xabc" }},
		{"missing address", func(r *relayer.DepositRequest) { r.UserAddress = "" }},
		{"zero amount", func(r *relayer.DepositRequest) { r.Amount = "0" }},
		{"negative amount", func(r *relayer.DepositRequest) { r.Amount = "-5" }},
		{"fractional amount", func(r *relayer.DepositRequest) { r.Amount = "1.5" }},
		{"short tx hash", func(r *relayer.DepositRequest) { r.SourceTxHash = "0x1234" }},
		{"non hex tx hash", func(r *relayer.DepositRequest) { r.SourceTxHash = "not-a-hash" }},
		{"same chain", func(r *relayer.DepositRequest) { r.SourceChain = "base" }},
		{"unknown source chain", func(r *relayer.DepositRequest) { r.SourceChain = "solana" }},
		{"destination without vault", func(r *relayer.DepositRequest) { r.DestChain = "noble" }},
		{"missing pool", func(r *relayer.DepositRequest) { r.PoolID = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			req := depositRequest()
			tc.modify(&req)

			rec, err := h.orchestrator.InitiateDeposit(context.Background(), req)
			require.ErrorIs(t, err, types.ErrValidation)
			require.Nil(t, rec)

			existing, err := h.store.GetByNaturalKey(context.Background(), types.Deposit, burnTx)
			require.NoError(t, err)
			require.Nil(t, existing)
		})
	}
}

func TestInitiateDepositRejectsFailedBurn(t *testing.T) {
	h := newHarness(t)
	h.chains["ethereum"].VerifyErr = types.NewValidationError("source tx %s failed on ethereum", burnTx)

	_, err := h.orchestrator.InitiateDeposit(context.Background(), depositRequest())
	require.ErrorIs(t, err, types.ErrValidation)

	existing, err := h.store.GetByNaturalKey(context.Background(), types.Deposit, burnTx)
	require.NoError(t, err)
	require.Nil(t, existing)
}

func TestInitiateDepositToleratesUnreachableSourceRPC(t *testing.T) {
	h := newHarness(t)
	h.chains["ethereum"].VerifyErr = types.NewTransientError(errors.New("connection refused"), "fetching receipt")

	rec, err := h.orchestrator.InitiateDeposit(context.Background(), depositRequest())
	require.NoError(t, err)
	require.Equal(t, types.StatusPendingAttestation, rec.Status)
}

func TestDepositAttestationNotFoundFails(t *testing.T) {
	h := newHarness(t)
	h.attestor.Queue(testutil.AttestationResult{Err: types.NewTerminalError(types.ErrNotFound, "attestation for %s", burnTx)})
	rec := h.deposit(t)

	failed, err := h.orchestrator.Resume(context.Background(), rec.ID)
	require.ErrorIs(t, err, types.ErrTerminal)
	require.Equal(t, types.StatusFailed, failed.Status)
	require.Contains(t, failed.ErrorMessage, "attestation for")
	require.Equal(t, 0, h.chains["base"].DepositCount())
}
