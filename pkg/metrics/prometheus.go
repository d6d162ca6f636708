// Package metrics provides Prometheus metrics for the agripredict inference service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default latency buckets in milliseconds. Inference is sub-millisecond for tree
// models, so the low end is denser than prometheus.DefBuckets.
var defaultLatencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000}

// Manager manages all Prometheus metrics for the inference service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Inference Metrics
	predictions       *prometheus.CounterVec
	predictionLatency *prometheus.HistogramVec
	demandLevels      *prometheus.CounterVec
	unknownCategories *prometheus.CounterVec
	dateFallbacks     *prometheus.CounterVec
	modelUnavailable  *prometheus.CounterVec
	artifactsLoaded   *prometheus.GaugeVec

	// Cache Metrics
	cacheHits    *prometheus.CounterVec
	cacheMisses  *prometheus.CounterVec
	cacheEntries prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Batch Queue Metrics
	queueCapacity      prometheus.Gauge
	queueSize          prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker Metrics
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

var globalMu sync.RWMutex //nolint:gochecknoglobals // guards globalManager and customRegistry

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "agripredict",
		subsystem:        "inference",
		histogramBuckets: defaultLatencyBuckets,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
		Buckets:     buckets,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.predictions = auto.NewCounterVec(
		m.counterOpts("predictions_total", "Total number of predictions by task and outcome"),
		[]string{"task", "outcome"},
	)
	m.predictionLatency = auto.NewHistogramVec(
		m.histogramOpts("prediction_latency_milliseconds", "Encode + model invocation latency in milliseconds", m.histogramBuckets),
		[]string{"task"},
	)
	m.demandLevels = auto.NewCounterVec(
		m.counterOpts("demand_level_total", "Demand forecasts by resulting demand level"),
		[]string{"level"},
	)
	// Unknown categories are silently encoded as 0; this counter is the only
	// place the degradation is visible.
	m.unknownCategories = auto.NewCounterVec(
		m.counterOpts("unknown_category_total", "Categorical values that fell back to code 0"),
		[]string{"task", "feature"},
	)
	m.dateFallbacks = auto.NewCounterVec(
		m.counterOpts("date_fallback_total", "Requests whose date failed to parse and used the current date"),
		[]string{"task"},
	)
	m.modelUnavailable = auto.NewCounterVec(
		m.counterOpts("model_unavailable_total", "Requests rejected because the task artifacts are not loaded"),
		[]string{"task"},
	)
	m.artifactsLoaded = auto.NewGaugeVec(
		m.gaugeOpts("artifacts_loaded", "1 when the task model and encoders loaded at startup, else 0"),
		[]string{"task"},
	)

	m.cacheHits = auto.NewCounterVec(
		m.counterOpts("cache_hits_total", "Prediction cache hits"),
		[]string{"task"},
	)
	m.cacheMisses = auto.NewCounterVec(
		m.counterOpts("cache_misses_total", "Prediction cache misses"),
		[]string{"task"},
	)
	m.cacheEntries = auto.NewGauge(m.gaugeOpts("cache_entries", "Current number of cached predictions"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum batch queue capacity"))
	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current number of queued batch items"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Batch queue utilization ratio (current size / capacity)"))
	m.queueEnqueueRate = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Total number of batch items enqueued"))
	m.queueDequeueRate = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Total number of batch items dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Total number of rejected enqueues"))

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Number of batch workers"))
	m.workerProcessingLatency = auto.NewHistogram(
		m.histogramOpts("worker_processing_latency_milliseconds", "Batch item processing latency in milliseconds", m.histogramBuckets),
	)
	m.workerErrorRate = auto.NewCounter(m.counterOpts("worker_errors_total", "Total number of failed batch items"))

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total number of errors by component"),
		[]string{"component", "error_type"},
	)
	m.errorRateByType = auto.NewCounterVec(
		m.counterOpts("errors_by_type_total", "Total number of errors by type"),
		[]string{"error_type", "severity"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Total number of errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)
	m.errorLatency = auto.NewHistogramVec(
		m.histogramOpts("error_latency_milliseconds", "Latency of operations that resulted in errors", m.histogramBuckets),
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(
		m.histogramOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
			[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}),
	)
}

// Inference Metrics Functions.

// RecordPrediction counts a prediction attempt; outcome is "ok" or "error".
func (m *Manager) RecordPrediction(task, outcome string) {
	m.predictions.WithLabelValues(task, outcome).Inc()
}

// RecordPredictionLatency records encode + inference latency.
func (m *Manager) RecordPredictionLatency(task string, latencyMs float64) {
	m.predictionLatency.WithLabelValues(task).Observe(latencyMs)
}

// RecordDemandLevel counts a demand classification.
func (m *Manager) RecordDemandLevel(level string) {
	m.demandLevels.WithLabelValues(level).Inc()
}

// RecordUnknownCategory counts a categorical fallback to code 0.
func (m *Manager) RecordUnknownCategory(task, feature string) {
	m.unknownCategories.WithLabelValues(task, feature).Inc()
}

// RecordDateFallback counts a date parse fallback.
func (m *Manager) RecordDateFallback(task string) {
	m.dateFallbacks.WithLabelValues(task).Inc()
}

// RecordModelUnavailable counts a request rejected for missing artifacts.
func (m *Manager) RecordModelUnavailable(task string) {
	m.modelUnavailable.WithLabelValues(task).Inc()
}

// SetArtifactsLoaded publishes the startup load status of a task.
func (m *Manager) SetArtifactsLoaded(task string, loaded bool) {
	v := 0.0
	if loaded {
		v = 1
	}
	m.artifactsLoaded.WithLabelValues(task).Set(v)
}

// Cache Metrics Functions.

// RecordCacheHit counts a prediction cache hit.
func (m *Manager) RecordCacheHit(task string) {
	m.cacheHits.WithLabelValues(task).Inc()
}

// RecordCacheMiss counts a prediction cache miss.
func (m *Manager) RecordCacheMiss(task string) {
	m.cacheMisses.WithLabelValues(task).Inc()
}

// UpdateCacheEntries sets the number of cached predictions.
func (m *Manager) UpdateCacheEntries(n int) {
	m.cacheEntries.Set(float64(n))
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string) {
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func (m *Manager) RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Queue Metrics Functions.

// UpdateQueueCapacity sets the maximum queue capacity.
func (m *Manager) UpdateQueueCapacity(capacity int) {
	m.queueCapacity.Set(float64(capacity))
}

// UpdateQueueSize sets the current queue size and derived utilization.
func (m *Manager) UpdateQueueSize(size, capacity int) {
	m.queueSize.Set(float64(size))
	if capacity > 0 {
		m.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// RecordQueueEnqueue increments the enqueue counter.
func (m *Manager) RecordQueueEnqueue() {
	m.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func (m *Manager) RecordQueueDequeue() {
	m.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func (m *Manager) RecordQueueEnqueueError() {
	m.queueEnqueueErrors.Inc()
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the number of batch workers.
func (m *Manager) UpdateWorkerCount(count int) {
	m.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records batch item processing latency.
func (m *Manager) RecordWorkerProcessingLatency(latencyMs float64) {
	m.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func (m *Manager) RecordWorkerError() {
	m.workerErrorRate.Inc()
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func (m *Manager) RecordErrorByComponent(component, errorType string) {
	m.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func (m *Manager) RecordErrorByType(errorType, severity string) {
	m.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func (m *Manager) RecordErrorByEndpoint(endpoint, method, errorType string) {
	m.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func (m *Manager) RecordErrorLatency(component, errorType string, latencyMs float64) {
	m.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func (m *Manager) UpdateSystemMemoryUsage(bytes uint64) {
	m.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func (m *Manager) UpdateSystemGoroutineCount(count int) {
	m.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func (m *Manager) RecordSystemGCPauseTime(pauseMs float64) {
	m.systemGCPauseTime.Observe(pauseMs)
}

// Default returns the process-wide manager registered on GetRegistry().
func Default() *Manager {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalManager
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return customRegistry
}

// Configure rebuilds the process-wide manager with opts on a fresh registry
// and returns it. Call it at startup, before components capture Default().
// A registry passed in opts is ignored.
func Configure(opts ...Option) *Manager {
	registry := prometheus.NewRegistry()
	m := NewManager(append(append([]Option{}, opts...), WithPrometheusRegistry(registry))...)

	globalMu.Lock()
	defer globalMu.Unlock()
	globalManager = m
	customRegistry = registry
	return m
}
