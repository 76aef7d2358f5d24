package relayer

import (
	"context"
	"fmt"
	"sync/atomic"

	"cosmossdk.io/log"
	"github.com/robfig/cron/v3"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/store"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

const (
	DefaultSchedulerInterval  = "@every 2m"
	DefaultSchedulerBatchSize = 100
)

// Resumer is the orchestrator entry point the scheduler drives.
type Resumer interface {
	Resume(ctx context.Context, id string) (*types.TransferRecord, error)
}

// PassResult counts the outcome of one scheduler pass.
type PassResult struct {
	Scanned   int
	Completed int
	Deferred  int
	Failed    int
}

// Scheduler periodically resumes transfers left waiting, which recovers work
// lost to restarts and completes transfers after their request returned.
type Scheduler struct {
	interval   string
	batchSize  int
	directions []types.Direction

	store   store.Store
	resumer Resumer
	metrics *PromMetrics
	logger  log.Logger

	cron    *cron.Cron
	running atomic.Bool
}

func NewScheduler(cfg types.SchedulerSettings, st store.Store, resumer Resumer, metrics *PromMetrics, logger log.Logger) (*Scheduler, error) {
	interval := cfg.Interval
	if interval == "" {
		interval = DefaultSchedulerInterval
	}
	if _, err := cron.ParseStandard(interval); err != nil {
		return nil, fmt.Errorf("invalid scheduler interval %q: %w", interval, err)
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultSchedulerBatchSize
	}
	directions := cfg.Directions
	if len(directions) == 0 {
		directions = []types.Direction{types.Withdraw, types.Deposit}
	}
	for _, d := range directions {
		if d != types.Withdraw && d != types.Deposit {
			return nil, fmt.Errorf("invalid scheduler direction %q", d)
		}
	}

	logger = logger.With("component", "scheduler")
	cl := cronLogger{logger}
	return &Scheduler{
		interval:   interval,
		batchSize:  batchSize,
		directions: directions,
		store:      st,
		resumer:    resumer,
		metrics:    metrics,
		logger:     logger,
		cron:       cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
	}, nil
}

// Start schedules the pass, runs one immediately and stops the cron when ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.interval, func() { s.RunPass(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule resumption pass: %w", err)
	}
	s.cron.Start()
	s.logger.Info("Scheduled resumption pass", "interval", s.interval, "batch_size", s.batchSize)

	go func() {
		s.RunPass(ctx)
		<-ctx.Done()
		<-s.cron.Stop().Done()
		s.logger.Info("Scheduler stopped")
	}()
	return nil
}

// RunPass resumes one batch of waiting transfers sequentially. ok is false
// when another pass was already running and this one was skipped.
func (s *Scheduler) RunPass(ctx context.Context) (result PassResult, ok bool) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug("Resumption pass already running, skipping")
		s.metrics.IncSchedulerPass("skipped")
		return result, false
	}
	defer s.running.Store(false)

	records, err := s.store.ListResumable(ctx, store.Filter{
		Statuses:        ResumableStatuses,
		Directions:      s.directions,
		RequireSourceTx: true,
		Limit:           s.batchSize,
	})
	if err != nil {
		s.logger.Error("Failed to list resumable transfers", "err", err)
		s.metrics.IncSchedulerPass("error")
		return result, true
	}

	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		result.Scanned++

		resumed, err := s.resumer.Resume(ctx, rec.ID)
		switch {
		case err == nil && resumed.Status == types.StatusCompleted:
			result.Completed++
		case err == nil, types.IsRetryable(err):
			result.Deferred++
			if err != nil {
				s.logger.Info("Transfer deferred to next pass", "transfer", rec.ID, "status", rec.Status, "err", err)
			}
		default:
			result.Failed++
			s.logger.Error("Transfer failed during resumption", "transfer", rec.ID, "err", err)
		}
	}

	if result.Scanned > 0 {
		s.logger.Info("Resumption pass finished",
			"scanned", result.Scanned,
			"completed", result.Completed,
			"deferred", result.Deferred,
			"failed", result.Failed,
		)
	}
	s.metrics.IncSchedulerPass("ok")
	return result, true
}

// cronLogger routes cron's own logging through the app logger.
type cronLogger struct {
	logger log.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "err", err)...)
}
