// Package queue defines the contract for enqueuing and consuming batch jobs.
//
// Batch prediction requests are split into one Job per item; jobs flow
// through a bounded in-memory queue to the worker pool.
package queue

import (
	"context"
	"sync"

	"github.com/agripredict/agripredict/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1024
)

// Job is one unit of batch work.
type Job struct {
	BatchID string
	Index   int
	Run     func(ctx context.Context) error
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job to the queue.
	// Returns false if the queue is full or closed and the job was not enqueued.
	Enqueue(ctx context.Context, j Job) bool

	// Dequeue returns a channel that will receive jobs as they become available.
	// The channel will be closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the current number of queued jobs.
	Len(ctx context.Context) int

	// Close gracefully shuts down the queue.
	// After closing, no new jobs can be enqueued and the dequeue channel will be closed.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs       chan Job
	capacity   int
	bufferSize int
	metrics    *metrics.Manager

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
		metrics:  metrics.Default(),
	}

	for _, opt := range opts {
		opt(q)
	}
	if q.bufferSize == 0 {
		q.bufferSize = q.capacity
	}

	q.jobs = make(chan Job, q.bufferSize)

	q.metrics.UpdateQueueCapacity(q.capacity)
	q.metrics.UpdateQueueSize(0, q.capacity)

	return q
}

// Enqueue adds a job to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.metrics.RecordQueueEnqueueError()
		q.metrics.RecordErrorByComponent("queue", "closed")
		return false
	}

	if len(q.jobs) >= q.capacity {
		q.metrics.RecordQueueEnqueueError()
		q.metrics.RecordErrorByComponent("queue", "capacity_exceeded")
		return false
	}

	select {
	case q.jobs <- j:
		q.metrics.RecordQueueEnqueue()
		q.metrics.UpdateQueueSize(len(q.jobs), q.capacity)
		return true
	case <-ctx.Done():
		q.metrics.RecordQueueEnqueueError()
		q.metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	default:
		q.metrics.RecordQueueEnqueueError()
		q.metrics.RecordErrorByComponent("queue", "queue_full")
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
				q.metrics.RecordQueueDequeue()
				q.metrics.UpdateQueueSize(len(q.jobs), q.capacity)
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
	q.metrics.UpdateQueueSize(size, q.capacity)
	return size
}

// Capacity returns the configured capacity.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

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

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
