// Package scheduler periodically finalizes games that have been closed.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/okian/matchday/pkg/logger"
	"github.com/okian/matchday/pkg/metrics"
)

// ErrInvalidInterval is returned for a non-positive sweep interval.
var ErrInvalidInterval = errors.New("scheduler: interval must be positive")

// Sweeper finalizes every closed game and reports how many it handled.
type Sweeper interface {
	FinalizePending(ctx context.Context) (int, error)
}

// Scheduler runs the sweep on a fixed interval. Sweeps never overlap.
type Scheduler struct {
	s        gocron.Scheduler
	job      gocron.Job
	sweeper  Sweeper
	interval time.Duration
	logger   logger.Logger
}

// New creates a stopped scheduler.
func New(sweeper Sweeper, interval time.Duration, opts ...Option) (*Scheduler, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	sc := &Scheduler{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger.Get().Named("scheduler"),
	}
	for _, opt := range opts {
		opt(sc)
	}

	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	sc.s = s
	return sc, nil
}

// Start registers the sweep job and starts the scheduler. ctx is handed to
// every sweep.
func (sc *Scheduler) Start(ctx context.Context) error {
	job, err := sc.s.NewJob(
		gocron.DurationJob(sc.interval),
		gocron.NewTask(func() { sc.sweep(ctx) }),
		gocron.WithName("finalize-pending"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create finalize job: %w", err)
	}
	sc.job = job
	sc.s.Start()
	sc.logger.Info(ctx, "scheduler started", logger.Duration("interval", sc.interval))
	return nil
}

// RunNow triggers an immediate sweep outside the regular interval.
func (sc *Scheduler) RunNow() error {
	if sc.job == nil {
		return errors.New("scheduler: not started")
	}
	return sc.job.RunNow()
}

// Stop waits for a running sweep and shuts the scheduler down.
func (sc *Scheduler) Stop() error {
	return sc.s.Shutdown()
}

func (sc *Scheduler) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	n, err := sc.sweeper.FinalizePending(ctx)
	metrics.RecordSchedulerSweep(n)
	if err != nil {
		metrics.RecordErrorByComponent("scheduler", "sweep_failed")
		sc.logger.Error(ctx, "finalize sweep failed", logger.Int("games", n), logger.Error(err))
		return
	}
	if n > 0 {
		sc.logger.Info(ctx, "finalize sweep", logger.Int("games", n))
	}
}
