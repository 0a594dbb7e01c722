// Package worker runs the asynchronous recalibration pipeline. Workers
// drain jobs off the queue and warm the coach-profile and baseline
// caches that a freshly appended snapshot invalidated, so the next
// read-side request pays no recompute latency.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/calibrate/internal/adapters/mq/queue"
	"github.com/okian/calibrate/pkg/logger"
	"github.com/okian/calibrate/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Job is what workers read off the queue.
type Job = queue.Job

// Refresher recomputes the derived artifacts a job names.
type Refresher interface {
	// RefreshCoach recomputes the calibration profile for one coach.
	RefreshCoach(ctx context.Context, coachID string) error

	// RefreshBaseline recomputes one contextual baseline partition.
	RefreshBaseline(ctx context.Context, metricKey string, partition queue.Partition) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes recalibration jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker against an in-process queue.
type InMemoryWorker struct {
	queue     Queue
	refresher Refresher
	name      string

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, refresher Refresher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		refresher: refresher,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer func() {
		close(w.done)
	}()

	jobChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobChan:
			if !ok {
				// Channel closed, worker should stop
				return
			}

			if err := w.processJob(ctx, job); err != nil {
				w.logger.Error(ctx, "error processing recalibration job", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processJob refreshes every derived artifact the job names. A failure
// on one artifact does not stop the rest; the first error is reported.
func (w *InMemoryWorker) processJob(ctx context.Context, job Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordRecomputeLatency(float64(time.Since(start).Milliseconds()))
	}()

	var firstErr error

	if err := w.refresher.RefreshCoach(ctx, job.CoachID); err != nil {
		w.logger.Error(ctx, "coach profile refresh failed",
			logger.String("coachID", job.CoachID),
			logger.String("snapshotID", job.SnapshotID),
			logger.Error(err),
		)
		firstErr = fmt.Errorf("refresh coach %s: %w", job.CoachID, err)
	}

	for _, key := range job.MetricKeys {
		if err := w.refresher.RefreshBaseline(ctx, key, job.Partition); err != nil {
			w.logger.Error(ctx, "baseline refresh failed",
				logger.String("metricKey", key),
				logger.String("snapshotID", job.SnapshotID),
				logger.Error(err),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("refresh baseline %s: %w", key, err)
			}
		}
	}

	if firstErr == nil {
		metrics.RecordRecalibrationProcessed()
	}
	return firstErr
}

// Pool manages multiple workers draining a shared queue.
type Pool struct {
	workers   []*InMemoryWorker
	queue     Queue
	refresher Refresher

	// Shutdown control
	shutdown     chan struct{}
	shutdownOnce sync.Once

	// Logging
	logger logger.Logger
}

// NewPool creates a new worker pool. A non-positive count sizes the
// pool from the number of CPUs.
func NewPool(workerCount int, q Queue, refresher Refresher) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:   make([]*InMemoryWorker, workerCount),
		queue:     q,
		refresher: refresher,
		shutdown:  make(chan struct{}),
		logger:    logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			q,
			refresher,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
		for _, w := range p.workers {
			close(w.shutdown)
		}
	})

	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}

// Shutdown closes the queue and then stops all workers, draining what
// was already enqueued.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	p.shutdownOnce.Do(func() {
		close(p.shutdown)
		for _, w := range p.workers {
			close(w.shutdown)
		}
	})

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	return nil
}
