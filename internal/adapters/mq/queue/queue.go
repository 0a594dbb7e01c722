// Package queue defines the contract for enqueuing and consuming
// recalibration jobs.
//
// Ingestion stays fast by deferring derived-artifact refreshes: each
// appended snapshot enqueues one job naming the coach and the metric
// partitions it touched, and workers warm the caches behind the write.
// The MVP is an in-memory bounded queue; dropping a job is safe because
// caches recompute lazily on the next read anyway.
package queue

import (
	"context"
	"sync"

	"github.com/okian/calibrate/internal/domain/model"
	"github.com/okian/calibrate/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 100000
)

// Partition aliases the assessment context that scopes a baseline.
type Partition = model.Context

// Job names the derived artifacts a snapshot invalidated.
type Job struct {
	SnapshotID string
	CoachID    string
	MetricKeys []string
	Partition  model.Context
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job to the queue.
	// Returns false if the queue is full or closed and the job was dropped.
	Enqueue(ctx context.Context, j Job) bool

	// Dequeue returns a channel that will receive jobs as they become
	// available. The channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the current number of queued jobs.
	Len(ctx context.Context) int

	// Close gracefully shuts down the queue. After closing, no new jobs
	// can be enqueued and the dequeue channel is closed.
	Close() error

	// IsClosed reports whether the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateRecalibrationQueueSize(0)
	return q
}

// Enqueue adds a job to the queue. Never blocks: a full queue drops the
// job, which only delays a cache warm-up, never loses ledger data.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordRecalibrationDropped()
		return false
	}

	select {
	case q.jobs <- j:
		metrics.RecordRecalibrationEnqueued()
		metrics.UpdateRecalibrationQueueSize(len(q.jobs))
		return true
	case <-ctx.Done():
		metrics.RecordRecalibrationDropped()
		return false
	default:
		metrics.RecordRecalibrationDropped()
		return false
	}
}

// Dequeue returns a channel that will receive jobs as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for j := range q.jobs {
			select {
			case out <- j:
				metrics.UpdateRecalibrationQueueSize(len(q.jobs))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.jobs)
	metrics.UpdateRecalibrationQueueSize(size)
	return size
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed reports whether the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
