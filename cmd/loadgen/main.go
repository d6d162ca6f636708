package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/agripredict/agripredict/internal/loadgen"
	"github.com/agripredict/agripredict/pkg/logger"
)

// Default configuration constants.
const (
	defaultRequests    = 1000
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	os.Exit(run())
}

// run returns the process exit code: 1 when the run could not complete,
// 2 when any request failed or returned an unverifiable body.
func run() int {
	var (
		baseURL    = flag.String("url", "http://localhost:8000", "Base URL of the service")
		requests   = flag.Int("requests", defaultRequests, "Requests to generate per task")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		tasks      = flag.String("tasks", "price,demand", "Comma-separated tasks to exercise")
		seed       = flag.Uint64("seed", 0, "Generator seed (0 picks one from the clock)")
		outputDir  = flag.String("output", "", "Directory for generated JSON lines (disabled when empty)")
		logFile    = flag.String("log", "", "Also write logs to this rotated file")
		skipHealth = flag.Bool("skip-health", false, "Do not require a ready /healthz before the run")
		verbose    = flag.Bool("verbose", false, "Log every failed request")
	)
	flag.Parse()

	if err := logger.Init(logger.WithFile(*logFile, 50, 3, 7)); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultTestTimeout)
	defer cancel()

	config := &loadgen.Config{
		BaseURL:    strings.TrimRight(*baseURL, "/"),
		Requests:   *requests,
		Workers:    max(*workers, 1),
		Timeout:    *timeout,
		Tasks:      strings.Split(*tasks, ","),
		Seed:       *seed,
		OutputDir:  *outputDir,
		Verbose:    *verbose,
		SkipHealth: *skipHealth,
	}

	stats, err := loadgen.Run(ctx, config)
	if err != nil {
		logger.Get().Error(ctx, "load run failed", logger.Error(err))
		return 1
	}
	for _, s := range stats {
		if s.Failed > 0 || s.Invalid > 0 {
			return 2
		}
	}
	return 0
}
