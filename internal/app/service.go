// Package service provides the core inference service that implements
// the dependencies required by the HTTP API and the CLI.
package service

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agripredict/agripredict/internal/adapters/artifacts"
	"github.com/agripredict/agripredict/internal/adapters/cache"
	jobqueue "github.com/agripredict/agripredict/internal/adapters/mq/queue"
	workerpool "github.com/agripredict/agripredict/internal/adapters/mq/worker"
	"github.com/agripredict/agripredict/internal/domain/features"
	"github.com/agripredict/agripredict/internal/domain/model"
	"github.com/agripredict/agripredict/pkg/logger"
	"github.com/agripredict/agripredict/pkg/metrics"
)

// Prediction outcomes used as metric labels.
const (
	outcomeOK          = "ok"
	outcomeUnavailable = "unavailable"
	outcomeError       = "error"
)

// Service runs price and demand predictions over loaded artifacts.
type Service struct {
	mu sync.RWMutex

	// Artifacts are immutable after New.
	price  *artifacts.Artifacts
	demand *artifacts.Artifacts

	cache *cache.PredictionCache
	clock features.Clock

	// Batch fan-out
	jobs        *jobqueue.InMemoryQueue
	workerPool  *workerpool.Pool
	workerCount int
	queueSize   int

	// State
	started   bool
	startedAt time.Time

	priceServed  atomic.Int64
	priceFailed  atomic.Int64
	demandServed atomic.Int64
	demandFailed atomic.Int64

	logger  logger.Logger
	metrics *metrics.Manager
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithPriceArtifacts sets the price model and encoders. nil leaves the
// price task unavailable.
func WithPriceArtifacts(a *artifacts.Artifacts) Option {
	return func(s *Service) { s.price = a }
}

// WithDemandArtifacts sets the demand model and encoders. nil leaves the
// demand task unavailable.
func WithDemandArtifacts(a *artifacts.Artifacts) Option {
	return func(s *Service) { s.demand = a }
}

// WithCache sets the prediction cache.
func WithCache(c *cache.PredictionCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithClock overrides the clock used for malformed request dates.
func WithClock(c features.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithWorkerCount sets the number of batch worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the batch job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithMetrics sets the metrics manager; defaults to metrics.Default().
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New constructs a Service. The logger must be initialized unless
// WithLogger is given.
func New(opts ...Option) *Service {
	s := &Service{
		clock:       time.Now,
		workerCount: runtime.NumCPU(),
		queueSize:   1024,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.metrics == nil {
		s.metrics = metrics.Default()
	}

	s.metrics.SetArtifactsLoaded(model.TaskPrice.String(), s.price != nil)
	s.metrics.SetArtifactsLoaded(model.TaskDemand.String(), s.demand != nil)

	return s
}

// Start starts the batch worker pool. Predictions work without Start;
// batches then run on the calling goroutine.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.jobs = jobqueue.NewInMemoryQueue(
		jobqueue.WithCapacity(s.queueSize),
		jobqueue.WithMetrics(s.metrics),
	)
	s.workerPool = workerpool.NewPool(s.workerCount, s.jobs,
		workerpool.WithLogger(s.logger.Named("worker")),
		workerpool.WithMetrics(s.metrics),
	)
	// Workers outlive request contexts; Stop drains them.
	s.workerPool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "inference service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Bool("priceLoaded", s.price != nil),
		logger.Bool("demandLoaded", s.demand != nil),
		logger.Bool("cacheEnabled", s.cache.Enabled()),
	)

	return nil
}

// Stop drains queued batch jobs and stops the worker pool.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping inference service...")

	if s.workerPool != nil {
		if err := s.workerPool.Shutdown(ctx); err != nil {
			s.logger.Error(ctx, "worker pool shutdown failed", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "inference service stopped")
}

// PredictPrice estimates the market price of a crop lot.
func (s *Service) PredictPrice(ctx context.Context, req model.PriceRequest) (model.PriceResult, error) {
	a := s.price
	if a == nil {
		s.unavailable(model.TaskPrice)
		s.priceFailed.Add(1)
		return model.PriceResult{}, fmt.Errorf("%w: %s", model.ErrModelUnavailable, model.TaskPrice)
	}

	raw, err := predict(ctx, s, model.TaskPrice, features.PriceSchema, a, req)
	if err != nil {
		s.priceFailed.Add(1)
		return model.PriceResult{}, err
	}

	s.priceServed.Add(1)
	return model.PriceResult{PredictedPrice: round2(raw)}, nil
}

// ForecastDemand forecasts a demand score and buckets it into a level.
func (s *Service) ForecastDemand(ctx context.Context, req model.DemandRequest) (model.DemandResult, error) {
	a := s.demand
	if a == nil {
		s.unavailable(model.TaskDemand)
		s.demandFailed.Add(1)
		return model.DemandResult{}, fmt.Errorf("%w: %s", model.ErrModelUnavailable, model.TaskDemand)
	}

	raw, err := predict(ctx, s, model.TaskDemand, features.DemandSchema, a, req)
	if err != nil {
		s.demandFailed.Add(1)
		return model.DemandResult{}, err
	}

	// The level is taken from the unrounded score.
	level := model.DemandLevelFor(raw)
	s.metrics.RecordDemandLevel(string(level))
	s.demandServed.Add(1)

	return model.DemandResult{DemandScore: round2(raw), DemandLevel: level}, nil
}

// predict encodes req, consults the cache, and runs the model.
func predict[R features.Dated](
	ctx context.Context,
	s *Service,
	task model.Task,
	schema *features.Schema[R],
	a *artifacts.Artifacts,
	req R,
) (float64, error) {
	start := time.Now()
	taskName := task.String()

	vec, rep := features.BuildVector(schema, req, a.Encoders, s.clock)
	s.observeFallbacks(ctx, task, rep, req.DateString())

	key := cache.Key(task, vec)
	if v, ok := s.cache.Get(key); ok {
		s.metrics.RecordCacheHit(taskName)
		s.metrics.RecordPrediction(taskName, outcomeOK)
		return v, nil
	}
	if s.cache.Enabled() {
		s.metrics.RecordCacheMiss(taskName)
	}

	y, err := a.Model.Predict(vec)
	if err == nil && (math.IsNaN(y) || math.IsInf(y, 0)) {
		err = model.ErrInvalidPrediction
	}
	if err != nil {
		s.metrics.RecordPrediction(taskName, outcomeError)
		s.metrics.RecordErrorByComponent("service", taskName+"_prediction")
		s.logger.Error(ctx, "prediction failed",
			logger.String("task", taskName),
			logger.Error(err))
		return 0, fmt.Errorf("%s prediction: %w", task, err)
	}

	s.cache.Add(key, y)
	s.metrics.UpdateCacheEntries(s.cache.Len())
	s.metrics.RecordPrediction(taskName, outcomeOK)
	s.metrics.RecordPredictionLatency(taskName, float64(time.Since(start).Microseconds())/1000)
	return y, nil
}

// observeFallbacks counts and debug-logs the silent fallbacks taken while
// encoding. They never fail the request.
func (s *Service) observeFallbacks(ctx context.Context, task model.Task, rep features.Report, date string) {
	for _, f := range rep.Unknown {
		s.metrics.RecordUnknownCategory(task.String(), f)
	}
	if len(rep.Unknown) > 0 {
		s.logger.Debug(ctx, "unknown categorical values encoded as fallback code",
			logger.String("task", task.String()),
			logger.Any("features", rep.Unknown),
			logger.Int("code", features.FallbackCode))
	}
	if rep.DateFallback {
		s.metrics.RecordDateFallback(task.String())
		s.logger.Debug(ctx, "unparseable date, using current date",
			logger.String("task", task.String()),
			logger.String("date", date))
	}
}

func (s *Service) unavailable(task model.Task) {
	s.metrics.RecordModelUnavailable(task.String())
	s.metrics.RecordPrediction(task.String(), outcomeUnavailable)
}

// round2 rounds the exact binary value of v to two decimal places, ties to
// even. v must be finite.
func round2(v float64) float64 {
	return exactDecimal(v).RoundBank(2).InexactFloat64()
}

// exactDecimal returns the decimal equal to v's binary value, not its
// shortest round-trip form (2.675 is stored as 2.67499999...).
func exactDecimal(v float64) decimal.Decimal {
	frac, exp := math.Frexp(v)
	mant := big.NewInt(int64(frac * (1 << 53)))
	exp -= 53
	if exp >= 0 {
		return decimal.NewFromBigInt(mant.Lsh(mant, uint(exp)), 0)
	}
	// mant / 2^k == mant * 5^k / 10^k
	pow := new(big.Int).Exp(big.NewInt(5), big.NewInt(int64(-exp)), nil)
	return decimal.NewFromBigInt(pow.Mul(pow, mant), int32(exp))
}

// Health returns per-task readiness.
func (s *Service) Health() model.Readiness {
	return model.Readiness{Price: s.price != nil, Demand: s.demand != nil}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":      s.started,
		"workerCount":  s.workerCount,
		"queueSize":    s.queueSize,
		"cacheEnabled": s.cache.Enabled(),
		"cacheEntries": s.cache.Len(),
		"predictions": map[string]interface{}{
			"price":  map[string]int64{"served": s.priceServed.Load(), "failed": s.priceFailed.Load()},
			"demand": map[string]int64{"served": s.demandServed.Load(), "failed": s.demandFailed.Load()},
		},
		"artifacts": []artifacts.Info{
			artifacts.Describe(model.TaskPrice, s.price),
			artifacts.Describe(model.TaskDemand, s.demand),
		},
	}

	if s.started {
		stats["uptimeSeconds"] = time.Since(s.startedAt).Seconds()
		stats["queueLength"] = s.jobs.Len(context.Background())
		stats["batchJobsProcessed"] = s.workerPool.Processed()
		s.metrics.UpdateWorkerCount(s.workerCount)
	}
	s.metrics.UpdateCacheEntries(s.cache.Len())

	return stats
}
