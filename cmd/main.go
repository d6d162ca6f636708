package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/agripredict/agripredict/internal/adapters/artifacts"
	"github.com/agripredict/agripredict/internal/adapters/cache"
	"github.com/agripredict/agripredict/internal/adapters/http/api"
	"github.com/agripredict/agripredict/internal/adapters/http/swagger"
	app "github.com/agripredict/agripredict/internal/app"
	"github.com/agripredict/agripredict/internal/config"
	"github.com/agripredict/agripredict/pkg/logger"
	"github.com/agripredict/agripredict/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(loggerOptions(cfg)...); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metricsOpts, err := metricsOptions(cfg)
	if err != nil {
		loggerInstance.Error(ctx, "invalid metrics configuration", logger.Error(err))
		return
	}
	metrics.Configure(metricsOpts...)

	svc, err := newService(ctx, cfg, loggerInstance)
	if err != nil {
		loggerInstance.Error(ctx, "failed to build service", logger.Error(err))
		return
	}
	if !svc.Health().Ready() {
		loggerInstance.Warn(ctx, "no model artifacts loaded; prediction endpoints will return 500",
			logger.String("model_dir", cfg.ModelDir))
	}
	if err := svc.Start(ctx); err != nil {
		loggerInstance.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	// Start service metrics updater
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc, loggerInstance),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// loggerOptions maps the log_* config keys onto logger options.
func loggerOptions(cfg *config.Config) []logger.Option {
	opts := []logger.Option{logger.WithFormat(cfg.LogFormat)}
	if cfg.LogFile != "" {
		opts = append(opts, logger.WithFile(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays))
	}
	return opts
}

// metricsOptions maps the metrics_* config keys onto metrics options.
func metricsOptions(cfg *config.Config) ([]metrics.Option, error) {
	buckets, err := cfg.LatencyBuckets()
	if err != nil {
		return nil, err
	}
	labels, err := cfg.ConstLabels()
	if err != nil {
		return nil, err
	}
	return []metrics.Option{
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithSubsystem(cfg.MetricsSubsystem),
		metrics.WithHistogramBuckets(buckets),
		metrics.WithCustomLabels(labels),
	}, nil
}

// newService loads both tasks' artifacts and builds the inference service.
// A task whose artifacts fail to load is served as unavailable.
func newService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, error) {
	predictions, err := cache.New(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("prediction cache: %w", err)
	}

	loadLog := log.Named("artifacts")
	price := artifacts.LoadAvailable(ctx, loadLog, artifacts.PriceSource(cfg.PriceModelPath(), cfg.PriceEncodersPath()))
	demand := artifacts.LoadAvailable(ctx, loadLog, artifacts.DemandSource(cfg.DemandModelPath(), cfg.DemandEncodersPath()))

	return app.New(
		app.WithLogger(log.Named("service")),
		app.WithPriceArtifacts(price),
		app.WithDemandArtifacts(demand),
		app.WithCache(predictions),
		app.WithWorkerCount(cfg.BatchWorkers),
		app.WithQueueSize(cfg.BatchQueueSize),
	), nil
}

// newHandler registers the API and docs routes and wraps them with the
// request-id and CORS middleware.
func newHandler(ctx context.Context, cfg *config.Config, svc *app.Service, log logger.Logger) http.Handler {
	mux := http.NewServeMux()

	swagger.Register(ctx, mux)

	apiServer := api.NewServer(svc,
		api.WithMaxBatchSize(cfg.MaxBatchSize),
		api.WithLogger(log.Named("api")),
	)
	apiServer.Register(ctx, mux)

	return api.RequestID(api.CORS(mux, cfg.AllowedOrigins()))
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	m := metrics.Default()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.UpdateSystemMemoryUsage(ms.Alloc)

	m.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if ms.NumGC > 0 {
		avgPauseMs := float64(ms.PauseTotalNs) / float64(ms.NumGC) / nanosecondsPerMillisecond
		m.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes queue gauges from the service stats.
// GetStats itself refreshes the worker and cache gauges.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	queueLen, ok := stats["queueLength"].(int)
	if !ok {
		return
	}
	if capacity, ok := stats["queueSize"].(int); ok {
		metrics.Default().UpdateQueueSize(queueLen, capacity)
	}
}
