package loadgen

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agripredict/agripredict/internal/domain/model"
	"github.com/agripredict/agripredict/pkg/logger"
)

// Run executes a load run and returns per-task statistics.
func Run(ctx context.Context, config *Config) ([]Stats, error) {
	log := logger.Get()
	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	log.Info(ctx, "starting load run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("requests", config.Requests),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Any("tasks", config.Tasks),
		logger.Any("seed", seed))

	if !config.SkipHealth {
		if err := checkServiceHealth(ctx, config); err != nil {
			return nil, fmt.Errorf("service health check failed: %w", err)
		}
	}

	gen := NewGenerator(seed, time.Now())
	var all []Stats
	for _, task := range config.Tasks {
		stats := Stats{Task: task, StartTime: time.Now()}

		switch model.Task(task) {
		case model.TaskPrice:
			bodies := generate(config.Requests, gen.Price)
			saveBodies(ctx, config, task, bodies)
			submitAll(ctx, config, config.BaseURL+"/predict_price", bodies, verifyPrice, &stats)
		case model.TaskDemand:
			bodies := generate(config.Requests, gen.Demand)
			saveBodies(ctx, config, task, bodies)
			submitAll(ctx, config, config.BaseURL+"/forecast_demand", bodies, verifyDemand, &stats)
		default:
			return all, fmt.Errorf("unknown task %q", task)
		}

		stats.EndTime = time.Now()
		stats.Duration = stats.EndTime.Sub(stats.StartTime)
		displayFinalStats(ctx, &stats)
		all = append(all, stats)
	}

	if err := ctx.Err(); err != nil {
		return all, err
	}
	return all, nil
}

// checkServiceHealth verifies the service reports at least one loaded task.
func checkServiceHealth(ctx context.Context, config *Config) error {
	client := newHTTPClient(config.Timeout)

	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()

	var health struct {
		Status string          `json:"status"`
		Tasks  model.Readiness `json:"tasks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}
	if !health.Tasks.Ready() {
		return fmt.Errorf("no task loaded (status %d)", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy",
		logger.Bool("price", health.Tasks.Price),
		logger.Bool("demand", health.Tasks.Demand))
	return nil
}

// saveBodies writes bodies as JSON lines under config.OutputDir, ready for
// "agripredict batch". Failures are logged and do not stop the run.
func saveBodies[T any](ctx context.Context, config *Config, task string, bodies []T) {
	if config.OutputDir == "" {
		return
	}
	log := logger.Get()

	if err := os.MkdirAll(config.OutputDir, directoryPermission); err != nil {
		log.Warn(ctx, "failed to create output directory", logger.Error(err))
		return
	}
	name := filepath.Join(config.OutputDir, fmt.Sprintf("%s_requests_%s.jsonl", task, time.Now().Format("20060102_150405")))
	file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, outputFilePermission)
	if err != nil {
		log.Warn(ctx, "failed to create output file", logger.Error(err))
		return
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	for _, b := range bodies {
		if err := enc.Encode(b); err != nil {
			log.Warn(ctx, "failed to write request", logger.Error(err))
			return
		}
	}
	if err := w.Flush(); err != nil {
		log.Warn(ctx, "failed to flush output file", logger.Error(err))
		return
	}
	log.Info(ctx, "requests saved", logger.String("filename", name))
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, requestsPerSecond float64
	if stats.Submitted > 0 {
		successRate = float64(stats.Successful) / float64(stats.Submitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		requestsPerSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.String("task", stats.Task),
		logger.Int("submitted", stats.Submitted),
		logger.Int("successful", stats.Successful),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
		logger.Int("invalid", stats.Invalid),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("requestsPerSecond", requestsPerSecond))
}
