package queue

import "github.com/agripredict/agripredict/pkg/metrics"

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity sets the maximum capacity of the queue.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithBufferSize sets the buffer size for the jobs channel.
func WithBufferSize(size int) Option {
	return func(q *InMemoryQueue) {
		if size > 0 {
			q.bufferSize = size
		}
	}
}

// WithMetrics sets the metrics manager; defaults to metrics.Default().
func WithMetrics(m *metrics.Manager) Option {
	return func(q *InMemoryQueue) {
		if m != nil {
			q.metrics = m
		}
	}
}
