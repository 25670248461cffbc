// Package worker runs finalization jobs off the queue.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/matchday/internal/adapters/mq/queue"
	"github.com/okian/matchday/pkg/logger"
	"github.com/okian/matchday/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Finalizer scores and persists one job.
type Finalizer interface {
	FinalizeJob(ctx context.Context, job queue.Job) error
}

// FinalizerFunc adapts a function to Finalizer.
type FinalizerFunc func(ctx context.Context, job queue.Job) error

// FinalizeJob calls f.
func (f FinalizerFunc) FinalizeJob(ctx context.Context, job queue.Job) error { return f(ctx, job) }

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs until its queue closes.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	finalizer Finalizer
	name      string
	counters  *counters

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

type counters struct {
	active    atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, f Finalizer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		finalizer: f,
		name:      "worker",
		counters:  &counters{},
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			metrics.RecordQueueWait(float64(time.Since(job.EnqueuedAt).Microseconds()) / 1000)
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "finalize job failed",
					logger.String("worker", w.name),
					logger.String("job_id", job.ID),
					logger.String("game_id", job.GameID),
					logger.String("manager_id", job.ManagerID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker without waiting for its queue to drain.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out", logger.String("worker", w.name))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) error {
	start := time.Now()
	metrics.UpdateWorkerActiveCount(int(w.counters.active.Add(1)))
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.counters.active.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := w.finalizer.FinalizeJob(ctx, job); err != nil {
		w.counters.failed.Add(1)
		metrics.RecordWorkerError()
		metrics.RecordFinalization("failure")
		metrics.RecordErrorByComponent("worker", "finalize_error")
		return fmt.Errorf("job %s: %w", job.ID, err)
	}
	w.counters.processed.Add(1)
	metrics.RecordFinalization("success")
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers  []*InMemoryWorker
	queue    Queue
	counters *counters
	logger   logger.Logger
}

// NewPool creates a worker pool. A non-positive count defaults to a
// multiple of the CPU count.
func NewPool(workerCount int, q Queue, f Finalizer) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	p := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		counters: &counters{},
		logger:   logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(q, f,
			WithName("worker-"+strconv.Itoa(i)),
			withCounters(p.counters),
		)
	}
	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns how many jobs succeeded.
func (p *Pool) Processed() int64 { return p.counters.processed.Load() }

// Failed returns how many jobs failed.
func (p *Pool) Failed() int64 { return p.counters.failed.Load() }

// Shutdown closes the queue and waits for the workers to drain it. Workers
// still busy when ctx (or the pool timeout) expires are stopped.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	drainCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-drainCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			_ = w.Shutdown(ctx)
		}
	}
	if timedOut {
		return fmt.Errorf("worker pool drain: %w", drainCtx.Err())
	}
	return nil
}
