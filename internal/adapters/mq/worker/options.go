package worker

import (
	"github.com/agripredict/agripredict/pkg/logger"
	"github.com/agripredict/agripredict/pkg/metrics"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(log logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if log != nil {
			w.logger = log
		}
	}
}

// WithMetrics sets the metrics manager; defaults to metrics.Default().
func WithMetrics(m *metrics.Manager) Option {
	return func(w *InMemoryWorker) {
		if m != nil {
			w.metrics = m
		}
	}
}
