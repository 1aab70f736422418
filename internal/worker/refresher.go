// Package worker runs background jobs: the scheduled re-fetch of every
// module from the configured backend.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"notimo/internal/log"
)

const DefaultSchedule = "@every 5m"

// ErrRefreshInProgress is returned by RunOnce while another refresh runs.
var ErrRefreshInProgress = errors.New("refresh already in progress")

// Refreshable re-reads its data source.
type Refreshable interface {
	RefreshAll(ctx context.Context) error
}

// RefresherConfig holds configuration for the refresher
type RefresherConfig struct {
	// Schedule is a standard cron expression or descriptor (default: @every 5m)
	Schedule string

	// Timeout bounds a single refresh (default: 30s)
	Timeout time.Duration

	// RunOnStart triggers one refresh as soon as Start is called
	RunOnStart bool
}

func DefaultRefresherConfig() RefresherConfig {
	return RefresherConfig{
		Schedule: DefaultSchedule,
		Timeout:  30 * time.Second,
	}
}

// Refresher periodically calls RefreshAll on its target.
type Refresher struct {
	target Refreshable
	config RefresherConfig
	logger *log.Logger

	runs     atomic.Int64
	failures atomic.Int64
	skipped  atomic.Int64
	inFlight atomic.Bool

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
	baseCtx context.Context
}

func NewRefresher(target Refreshable, config RefresherConfig, logger *log.Logger) *Refresher {
	if config.Schedule == "" {
		config.Schedule = DefaultSchedule
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = log.Default(log.ComponentWorker)
	}
	return &Refresher{target: target, config: config, logger: logger}
}

// Start schedules the job. Returns an error if already running or if the
// schedule does not parse.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("refresher is already running")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(r.config.Schedule, func() { _ = r.RunOnce(r.context()) }); err != nil {
		return fmt.Errorf("schedule %q: %w", r.config.Schedule, err)
	}
	r.cron = c
	r.baseCtx = ctx
	r.running = true
	c.Start()

	if r.config.RunOnStart {
		go func() { _ = r.RunOnce(ctx) }()
	}

	r.logger.InfoContext(ctx, "Refresher started",
		"schedule", r.config.Schedule,
		"timeout", r.config.Timeout.String())
	return nil
}

// Stop unschedules the job and waits for a running refresh to finish.
func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	done := r.cron.Stop()
	r.running = false
	r.mu.Unlock()

	select {
	case <-done.Done():
		r.logger.InfoContext(ctx, "Refresher stopped gracefully")
		return nil
	case <-ctx.Done():
		r.logger.WarnContext(ctx, "Refresher stop timed out")
		return ctx.Err()
	}
}

func (r *Refresher) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// RunOnce performs a single refresh bounded by the configured timeout. It
// returns ErrRefreshInProgress without refreshing when a run is already in
// flight.
func (r *Refresher) RunOnce(ctx context.Context) error {
	if !r.inFlight.CompareAndSwap(false, true) {
		r.skipped.Add(1)
		r.logger.DebugContext(ctx, "Refresh skipped, previous run still in flight",
			log.FieldOperation, log.OpRefresh)
		return ErrRefreshInProgress
	}
	defer r.inFlight.Store(false)

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	start := time.Now()
	r.runs.Add(1)
	if err := r.target.RefreshAll(ctx); err != nil {
		r.failures.Add(1)
		r.logger.ErrorContext(ctx, "Scheduled refresh failed",
			log.FieldOperation, log.OpRefresh,
			log.FieldError, err)
		return err
	}
	r.logger.DebugContext(ctx, "Scheduled refresh completed",
		log.FieldOperation, log.OpRefresh,
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// Stats returns the number of refreshes attempted and failed.
func (r *Refresher) Stats() (runs, failures int64) {
	return r.runs.Load(), r.failures.Load()
}

// Skipped counts refreshes dropped because one was already running.
func (r *Refresher) Skipped() int64 {
	return r.skipped.Load()
}

func (r *Refresher) context() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.baseCtx == nil {
		return context.Background()
	}
	return r.baseCtx
}
