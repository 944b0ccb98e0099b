// Package scheduler runs the periodic settlement scan and ledger archive on
// six-field cron expressions.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/robfig/cron/v3"
)

// Runner wraps a seconds-resolution cron and hands every job the base
// context it was built with.
type Runner struct {
	cron    *cron.Cron
	logger  *slog.Logger
	baseCtx context.Context
}

// New creates a Runner. Overlapping runs of the same job are skipped.
func New(baseCtx context.Context, logger *slog.Logger) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	logger = logger.With(slog.String("component", "scheduler"))
	return &Runner{
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// Add registers job under name on spec.
func (r *Runner) Add(name, spec string, job func(context.Context)) (cron.EntryID, error) {
	var running atomic.Bool
	id, err := r.cron.AddFunc(spec, func() {
		if !running.CompareAndSwap(false, true) {
			r.logger.Warn("job still running, tick skipped", slog.String("job", name))
			return
		}
		defer running.Store(false)
		job(r.baseCtx)
	})
	if err != nil {
		return 0, fmt.Errorf("scheduler: add %s %q: %w", name, spec, err)
	}
	r.logger.Info("job registered", slog.String("job", name), slog.String("spec", spec))
	return id, nil
}

// Start begins dispatching in the background.
func (r *Runner) Start() {
	r.logger.Info("cron started", slog.Int("jobs", len(r.cron.Entries())))
	r.cron.Start()
}

// Stop halts dispatching and waits for running jobs to return.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
	r.logger.Info("cron stopped")
}

// Run starts the runner and blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.Start()
	<-ctx.Done()
	r.Stop()
	return nil
}
