package relayer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/events"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/store"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

// Attestor looks up Circle attestations. *circle.Client implements it.
type Attestor interface {
	Poll(ctx context.Context, domain types.Domain, txHash string) (*types.Attestation, error)
}

type Config struct {
	WorkerCount uint32
	QueueSize   uint32

	// bounded attestation wait within one Resume call
	AttestationRetries       int
	AttestationRetryInterval time.Duration

	PositionReadTimeout time.Duration

	// ProcessingStaleAfter is how long a claimed destination submission, or a
	// withdraw interrupted before submission, is left alone before Resume takes over.
	ProcessingStaleAfter time.Duration
}

func (c Config) withDefaults() Config {
	if c.WorkerCount == 0 {
		c.WorkerCount = 1
	}
	if c.QueueSize == 0 {
		c.QueueSize = 10000
	}
	if c.AttestationRetries <= 0 {
		c.AttestationRetries = 10
	}
	if c.AttestationRetryInterval <= 0 {
		c.AttestationRetryInterval = 10 * time.Second
	}
	if c.PositionReadTimeout <= 0 {
		c.PositionReadTimeout = 10 * time.Second
	}
	if c.ProcessingStaleAfter <= 0 {
		c.ProcessingStaleAfter = 2 * time.Minute
	}
	return c
}

// Orchestrator drives deposits and withdraws through burn, attestation and
// destination processing. It is the only component that marks a transfer failed.
type Orchestrator struct {
	cfg       Config
	registry  *types.Registry
	store     store.Store
	attestor  Attestor
	locator   *PositionLocator
	publisher events.Publisher
	metrics   *PromMetrics
	logger    log.Logger
	validate  *validator.Validate

	// transfer ids enqueued for Resume
	processingQueue chan string

	// transfer ids currently driven by this process
	inflight sync.Map

	now   func() time.Time
	newID func() string
}

func NewOrchestrator(
	cfg Config,
	registry *types.Registry,
	st store.Store,
	attestor Attestor,
	publisher events.Publisher,
	metrics *PromMetrics,
	logger log.Logger,
) *Orchestrator {
	cfg = cfg.withDefaults()
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	logger = logger.With("component", "orchestrator")

	return &Orchestrator{
		cfg:             cfg,
		registry:        registry,
		store:           st,
		attestor:        attestor,
		locator:         NewPositionLocator(registry, cfg.PositionReadTimeout, logger),
		publisher:       publisher,
		metrics:         metrics,
		logger:          logger,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
		processingQueue: make(chan string, cfg.QueueSize),
		now:             time.Now,
		newID:           uuid.NewString,
	}
}

// Start spins up the worker pool. Workers exit when ctx is cancelled.
func (o *Orchestrator) Start(ctx context.Context) {
	for i := 0; i < int(o.cfg.WorkerCount); i++ {
		go o.worker(ctx)
	}
}

func (o *Orchestrator) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-o.processingQueue:
			if _, err := o.Resume(ctx, id); err != nil {
				if types.IsRetryable(err) {
					o.logger.Info("Transfer not finished, leaving it for the scheduler", "transfer", id, "err", err)
				} else {
					o.logger.Error("Transfer failed", "transfer", id, "err", err)
				}
			}
		}
	}
}

// Dispatch enqueues a transfer for background Resume. A full queue is
// logged and left for the scheduler.
func (o *Orchestrator) Dispatch(id string) bool {
	select {
	case o.processingQueue <- id:
		return true
	default:
		o.logger.Error("Processing queue full, transfer left for the scheduler", "transfer", id, "queue_size", o.cfg.QueueSize)
		return false
	}
}

func (o *Orchestrator) Get(ctx context.Context, id string) (*types.TransferRecord, error) {
	return o.store.Get(ctx, id)
}

// GetDepositBySourceTx returns the deposit recorded for a burn transaction.
func (o *Orchestrator) GetDepositBySourceTx(ctx context.Context, txHash string) (*types.TransferRecord, error) {
	rec, err := o.store.GetByNaturalKey(ctx, types.Deposit, normalizeTxHash(txHash))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, types.NewNotFoundError("no deposit for source tx %s", txHash)
	}
	return rec, nil
}

// acquire claims a transfer for this process. The returned release must be called when done.
func (o *Orchestrator) acquire(id string) (release func(), ok bool) {
	if _, loaded := o.inflight.LoadOrStore(id, struct{}{}); loaded {
		return nil, false
	}
	return func() { o.inflight.Delete(id) }, true
}

// transition persists a patch, then records metrics and publishes the new state.
func (o *Orchestrator) transition(ctx context.Context, id string, p types.Patch) (*types.TransferRecord, error) {
	rec, err := o.store.Transition(ctx, id, p)
	if err != nil {
		return nil, err
	}
	if p.Status != "" {
		o.logger.Info("Transfer transitioned", "transfer", id, "direction", rec.Direction, "status", rec.Status)
		o.metrics.IncTransition(string(rec.Direction), string(rec.Status))
		o.publish(ctx, rec)
	}
	return rec, nil
}

func (o *Orchestrator) publish(ctx context.Context, rec *types.TransferRecord) {
	if err := o.publisher.PublishTransfer(ctx, rec); err != nil {
		o.logger.Error("Failed to publish transfer event", "transfer", rec.ID, "status", rec.Status, "err", err)
	}
}

// fail marks rec failed with cause as the error message and returns cause.
func (o *Orchestrator) fail(ctx context.Context, rec *types.TransferRecord, cause error, position *types.Position) (*types.TransferRecord, error) {
	failed, err := o.transition(ctx, rec.ID, types.Patch{
		Status:       types.StatusFailed,
		Position:     position,
		ErrorMessage: cause.Error(),
	})
	if err != nil {
		o.logger.Error("Unable to mark transfer failed", "transfer", rec.ID, "cause", cause, "err", err)
		if current, getErr := o.store.Get(ctx, rec.ID); getErr == nil {
			return current, cause
		}
		return rec, cause
	}
	return failed, cause
}

func (o *Orchestrator) stale(rec *types.TransferRecord) bool {
	return o.now().Sub(rec.UpdatedAt) > o.cfg.ProcessingStaleAfter
}

// normalizeTxHash lower cases a hex tx hash and adds the 0x prefix.
func normalizeTxHash(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	if !strings.HasPrefix(h, "0x") {
		h = "0x" + h
	}
	return h
}

func decodeHex(field, s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	bz, err := hexutil.Decode(s)
	if err != nil {
		return nil, types.NewTerminalError(err, "invalid %s", field)
	}
	return bz, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return types.NewValidationError("invalid request: %s", strings.Join(fields, ", "))
	}
	return types.NewValidationError("invalid request: %v", err)
}
