package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

// Logger only prints errors so test output stays readable.
var Logger = log.NewLogger(os.Stdout, log.LevelOption(zerolog.ErrorLevel))

// Users used across tests.
const (
	UserA = "0x00000000000000000000000000000000000000aB"
	UserB = "0x00000000000000000000000000000000000000bC"
)

var _ types.VaultChain = (*MockVaultChain)(nil)
var _ types.SourceChain = (*MockSourceChain)(nil)

// MockSourceChain is a burn-only chain such as Noble.
type MockSourceChain struct {
	ChainName string
	DomainID  types.Domain
	VerifyErr error
}

func (m *MockSourceChain) Name() string         { return m.ChainName }
func (m *MockSourceChain) Domain() types.Domain { return m.DomainID }

func (m *MockSourceChain) VerifySourceTx(_ context.Context, _ string) error {
	return m.VerifyErr
}

// MockVaultChain records every write so tests can count on-chain submissions.
type MockVaultChain struct {
	ChainName string
	DomainID  types.Domain

	mu sync.Mutex

	Positions   map[string]*types.Position
	PositionErr error

	InitiateErr  error
	ProcessErr   error
	ConfirmErr   error
	VerifyErr    error
	PositionHook func()
	// InitiateHook runs after a withdraw is submitted, ProcessHook before a destination submission.
	InitiateHook func()
	ProcessHook  func()

	txCounter   int
	Initiated   []string
	Deposits    [][2][]byte
	Withdrawals [][2][]byte
	Confirmed   []string
}

func NewMockVaultChain(name string, domain types.Domain) *MockVaultChain {
	return &MockVaultChain{
		ChainName: name,
		DomainID:  domain,
		Positions: map[string]*types.Position{},
	}
}

func (m *MockVaultChain) Name() string         { return m.ChainName }
func (m *MockVaultChain) Domain() types.Domain { return m.DomainID }
func (m *MockVaultChain) ChainID() int64       { return int64(m.DomainID) + 1000 }
func (m *MockVaultChain) VaultManager() string { return "0x000000000000000000000000000000000000dEaD" }

func (m *MockVaultChain) VerifySourceTx(_ context.Context, _ string) error {
	return m.VerifyErr
}

func (m *MockVaultChain) SetPosition(user string, pos *types.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Positions[strings.ToLower(user)] = pos
}

func (m *MockVaultChain) GetPosition(_ context.Context, user string) (*types.Position, error) {
	if m.PositionHook != nil {
		m.PositionHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PositionErr != nil {
		return nil, m.PositionErr
	}
	if pos, ok := m.Positions[strings.ToLower(user)]; ok {
		p := *pos
		return &p, nil
	}
	return &types.Position{Principal: "0", Shares: "0"}, nil
}

func (m *MockVaultChain) nextHash() string {
	m.txCounter++
	return fmt.Sprintf("0x%s%063x", strings.ToLower(m.ChainName[:1]), m.txCounter)
}

func (m *MockVaultChain) InitiateWithdraw(_ context.Context, _ log.Logger, user string) (string, error) {
	m.mu.Lock()
	if m.InitiateErr != nil {
		m.mu.Unlock()
		return "", m.InitiateErr
	}
	m.Initiated = append(m.Initiated, user)
	hash := m.nextHash()
	m.mu.Unlock()

	if m.InitiateHook != nil {
		m.InitiateHook()
	}
	return hash, nil
}

func (m *MockVaultChain) ProcessDeposit(_ context.Context, _ log.Logger, message, attestation []byte) (string, error) {
	if m.ProcessHook != nil {
		m.ProcessHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ProcessErr != nil {
		return "", m.ProcessErr
	}
	m.Deposits = append(m.Deposits, [2][]byte{message, attestation})
	return m.nextHash(), nil
}

func (m *MockVaultChain) ProcessWithdraw(_ context.Context, _ log.Logger, message, attestation []byte) (string, error) {
	if m.ProcessHook != nil {
		m.ProcessHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ProcessErr != nil {
		return "", m.ProcessErr
	}
	m.Withdrawals = append(m.Withdrawals, [2][]byte{message, attestation})
	return m.nextHash(), nil
}

func (m *MockVaultChain) WaitForConfirmation(_ context.Context, txHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConfirmErr != nil {
		return m.ConfirmErr
	}
	m.Confirmed = append(m.Confirmed, txHash)
	return nil
}

// DepositCount returns the number of processDeposit submissions.
func (m *MockVaultChain) DepositCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Deposits)
}

// WithdrawalCount returns the number of processWithdraw submissions.
func (m *MockVaultChain) WithdrawalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Withdrawals)
}

// MockAttestor serves queued attestation poll results and counts calls.
type MockAttestor struct {
	mu      sync.Mutex
	results []AttestationResult
	Calls   int
	Domains []types.Domain
}

type AttestationResult struct {
	Attestation *types.Attestation
	Err         error
}

// Ready is a complete attestation result.
func Ready(message, proof string) AttestationResult {
	return AttestationResult{Attestation: &types.Attestation{Ready: true, Message: message, Proof: proof}}
}

// Pending is a not yet ready attestation result.
func Pending() AttestationResult {
	return AttestationResult{Attestation: &types.Attestation{}}
}

// Queue appends results. The last result repeats once the queue is drained.
func (m *MockAttestor) Queue(results ...AttestationResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, results...)
}

func (m *MockAttestor) Poll(_ context.Context, domain types.Domain, _ string) (*types.Attestation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.Domains = append(m.Domains, domain)
	if len(m.results) == 0 {
		return &types.Attestation{}, nil
	}
	r := m.results[0]
	if len(m.results) > 1 {
		m.results = m.results[1:]
	}
	return r.Attestation, r.Err
}

// RegistrySetup builds a registry of ethereum (domain 0), arbitrum (3), base (6, settlement) and noble (4, source only).
func RegistrySetup(t *testing.T) (*types.Registry, map[string]*MockVaultChain) {
	t.Helper()

	chains := map[string]*MockVaultChain{
		"ethereum": NewMockVaultChain("ethereum", 0),
		"arbitrum": NewMockVaultChain("arbitrum", 3),
		"base":     NewMockVaultChain("base", 6),
	}
	registry, err := types.NewRegistry([]types.SourceChain{
		chains["ethereum"],
		chains["arbitrum"],
		chains["base"],
		&MockSourceChain{ChainName: "noble", DomainID: 4},
	}, "base")
	require.NoError(t, err, "Error creating registry")

	return registry, chains
}
