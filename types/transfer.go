package types

import (
	"fmt"
	"time"
)

type Direction string

const (
	Deposit  Direction = "deposit"
	Withdraw Direction = "withdraw"
)

type Status string

const (
	// shared
	StatusPendingAttestation  Status = "pending_attestation"
	StatusAttestationReceived Status = "attestation_received"
	StatusCompleted           Status = "completed"
	StatusFailed              Status = "failed"

	// deposit
	StatusProcessingDeposit Status = "processing_deposit"
	StatusDepositConfirmed  Status = "deposit_confirmed"

	// withdraw
	StatusCheckingPosition   Status = "checking_position"
	StatusPositionFound      Status = "position_found"
	StatusInitiatingWithdraw Status = "initiating_withdraw"
	StatusWithdrawInitiated  Status = "withdraw_initiated"
	StatusProcessingWithdraw Status = "processing_withdraw"
)

// NoPositionMessage is recorded on withdraws for users without an open position.
const NoPositionMessage = "No position found for this user"

// transitions is the forward graph per direction. StatusFailed is reachable
// from every non-terminal state and is not listed here.
var transitions = map[Direction]map[Status]Status{
	Deposit: {
		StatusPendingAttestation:  StatusAttestationReceived,
		StatusAttestationReceived: StatusProcessingDeposit,
		StatusProcessingDeposit:   StatusDepositConfirmed,
		StatusDepositConfirmed:    StatusCompleted,
	},
	Withdraw: {
		StatusCheckingPosition:    StatusPositionFound,
		StatusPositionFound:       StatusInitiatingWithdraw,
		StatusInitiatingWithdraw:  StatusWithdrawInitiated,
		StatusWithdrawInitiated:   StatusPendingAttestation,
		StatusPendingAttestation:  StatusAttestationReceived,
		StatusAttestationReceived: StatusProcessingWithdraw,
		StatusProcessingWithdraw:  StatusCompleted,
	},
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether a record of the given direction may move from one status to another.
func CanTransition(direction Direction, from, to Status) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	graph, ok := transitions[direction]
	if !ok {
		return false
	}
	next, ok := graph[from]
	return ok && next == to
}

// ProcessingStatus returns the status that marks a destination submission as claimed.
func ProcessingStatus(direction Direction) Status {
	if direction == Deposit {
		return StatusProcessingDeposit
	}
	return StatusProcessingWithdraw
}

// Position is a snapshot of a user's vault position read from chain state.
// Principal and Shares are base-unit decimal strings.
type Position struct {
	PoolID     uint64 `json:"poolId" yaml:"pool-id"`
	PositionID uint64 `json:"positionId" yaml:"position-id"`
	Owner      string `json:"owner" yaml:"owner"`
	Principal  string `json:"principal" yaml:"principal"`
	Shares     string `json:"shares" yaml:"shares"`
	Vault      string `json:"vault" yaml:"vault"`
}

// Empty reports whether the position is unset on chain.
func (p *Position) Empty() bool {
	return p == nil || p.PoolID == 0
}

// ZeroPosition is the snapshot recorded when no position exists.
func ZeroPosition() *Position {
	return &Position{Principal: "0", Shares: "0"}
}

// TransferRecord is the persisted orchestration state of one deposit or withdraw.
type TransferRecord struct {
	ID          string    `json:"id"`
	Direction   Direction `json:"direction"`
	UserAddress string    `json:"userAddress"`
	SourceChain string    `json:"sourceChain"`
	DestChain   string    `json:"destChain"`

	// deposit
	Amount string `json:"amount,omitempty"`
	PoolID uint64 `json:"poolId,omitempty"`

	// withdraw
	Position *Position `json:"position,omitempty"`

	Status             Status `json:"status"`
	SourceTxHash       string `json:"sourceTxHash,omitempty"`
	AttestationMessage string `json:"attestationMessage,omitempty"`
	AttestationProof   string `json:"attestationProof,omitempty"`
	DestTxHash         string `json:"destTxHash,omitempty"`
	ErrorMessage       string `json:"errorMessage,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NaturalKey is the idempotency key: source tx hash for deposits, user address for withdraws.
func (r *TransferRecord) NaturalKey() string {
	if r.Direction == Deposit {
		return r.SourceTxHash
	}
	return r.UserAddress
}

// Clone returns a deep copy so callers never share a stored record.
func (r *TransferRecord) Clone() *TransferRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Position != nil {
		p := *r.Position
		c.Position = &p
	}
	return &c
}

func NewDepositRecord(id, user, sourceChain, destChain, amount string, poolID uint64, sourceTxHash string, now time.Time) *TransferRecord {
	return &TransferRecord{
		ID:           id,
		Direction:    Deposit,
		UserAddress:  user,
		SourceChain:  sourceChain,
		DestChain:    destChain,
		Amount:       amount,
		PoolID:       poolID,
		Status:       StatusPendingAttestation,
		SourceTxHash: sourceTxHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func NewWithdrawRecord(id, user, settlementChain string, now time.Time) *TransferRecord {
	return &TransferRecord{
		ID:          id,
		Direction:   Withdraw,
		UserAddress: user,
		DestChain:   settlementChain,
		Status:      StatusCheckingPosition,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Patch describes one transition. Empty fields are left untouched; an empty
// Status keeps the current status and only records evidence.
type Patch struct {
	// Expected makes the transition conditional on the current status.
	Expected Status
	// ExpectedUpdatedAt makes it conditional on the record not having changed
	// since it was read. A patch with no other field only refreshes UpdatedAt.
	ExpectedUpdatedAt time.Time

	Status             Status
	SourceChain        string
	Position           *Position
	SourceTxHash       string
	AttestationMessage string
	AttestationProof   string
	DestTxHash         string
	ErrorMessage       string
}

// ApplyPatch validates p against rec and applies it in place. Every store
// variant funnels transitions through here so the invariants live in one place.
func ApplyPatch(rec *TransferRecord, p Patch, now time.Time) error {
	if p.Expected != "" && rec.Status != p.Expected {
		return fmt.Errorf("%w: %s is %s, expected %s", ErrStatusConflict, rec.ID, rec.Status, p.Expected)
	}
	if !p.ExpectedUpdatedAt.IsZero() && !rec.UpdatedAt.Equal(p.ExpectedUpdatedAt) {
		return fmt.Errorf("%w: %s changed at %s", ErrStatusConflict, rec.ID, rec.UpdatedAt.Format(time.RFC3339Nano))
	}
	if rec.Status.Terminal() {
		return fmt.Errorf("%w: %s is already %s", ErrStatusConflict, rec.ID, rec.Status)
	}
	if p.Status != "" && p.Status != rec.Status && !CanTransition(rec.Direction, rec.Status, p.Status) {
		return NewValidationError("illegal %s transition %s -> %s", rec.Direction, rec.Status, p.Status)
	}
	if p.ErrorMessage != "" && p.Status != StatusFailed {
		return NewValidationError("error message may only be set when failing a transfer")
	}

	if err := writeOnce(&rec.SourceChain, p.SourceChain, "source chain"); err != nil {
		return err
	}
	if err := writeOnce(&rec.SourceTxHash, p.SourceTxHash, "source tx hash"); err != nil {
		return err
	}
	if err := writeOnce(&rec.AttestationMessage, p.AttestationMessage, "attestation message"); err != nil {
		return err
	}
	if err := writeOnce(&rec.AttestationProof, p.AttestationProof, "attestation proof"); err != nil {
		return err
	}
	if err := writeOnce(&rec.DestTxHash, p.DestTxHash, "destination tx hash"); err != nil {
		return err
	}
	if p.Position != nil {
		if rec.Position != nil && *rec.Position != *p.Position {
			return NewValidationError("position snapshot is immutable once captured")
		}
		pos := *p.Position
		rec.Position = &pos
	}

	if p.Status != "" {
		if err := checkEvidence(rec, p.Status); err != nil {
			return err
		}
		rec.Status = p.Status
	}
	if p.ErrorMessage != "" {
		rec.ErrorMessage = p.ErrorMessage
	}
	rec.UpdatedAt = now
	return nil
}

func writeOnce(field *string, value, name string) error {
	if value == "" || *field == value {
		return nil
	}
	if *field != "" {
		return NewValidationError("%s already set to %s", name, *field)
	}
	*field = value
	return nil
}

// checkEvidence enforces the evidence each status requires.
func checkEvidence(rec *TransferRecord, to Status) error {
	switch to {
	case StatusFailed, StatusCheckingPosition:
		return nil
	case StatusPositionFound, StatusInitiatingWithdraw:
		if rec.Position.Empty() || rec.SourceChain == "" {
			return NewValidationError("%s requires a position snapshot and source chain", to)
		}
	case StatusWithdrawInitiated, StatusPendingAttestation:
		if rec.SourceTxHash == "" {
			return NewValidationError("%s requires a source tx hash", to)
		}
	default:
		if rec.AttestationMessage == "" || rec.AttestationProof == "" {
			return NewValidationError("%s requires an attestation message and proof", to)
		}
	}
	return nil
}
