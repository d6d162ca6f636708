// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() builds a Config holding every default; Load layers file and env on top.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// LogFile optionally tees logs into a rotated file.
	LogFile       string `koanf:"log_file"`
	LogMaxSizeMB  int    `koanf:"log_max_size_mb"`
	LogMaxBackups int    `koanf:"log_max_backups"`
	LogMaxAgeDays int    `koanf:"log_max_age_days"`

	// Addr configures the HTTP listen address, e.g. ":8000".
	Addr string `koanf:"addr"`

	// ModelDir holds the four artifact files below.
	ModelDir           string `koanf:"model_dir"`
	PriceModelFile     string `koanf:"price_model_file"`
	PriceEncodersFile  string `koanf:"price_encoders_file"`
	DemandModelFile    string `koanf:"demand_model_file"`
	DemandEncodersFile string `koanf:"demand_encoders_file"`

	// CacheSize bounds the prediction cache; 0 disables it.
	CacheSize int `koanf:"cache_size"`

	// BatchWorkers and BatchQueueSize size the batch worker pool.
	BatchWorkers   int `koanf:"batch_workers"`
	BatchQueueSize int `koanf:"batch_queue_size"`

	// MaxBatchSize caps the number of items in one batch request.
	MaxBatchSize int `koanf:"max_batch_size"`

	// CORSAllowedOrigins is a comma-separated origin list; "*" allows any.
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`

	// Prometheus naming. Metric names are <namespace>_<subsystem>_<name>.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`

	// MetricsLatencyBuckets is a comma-separated, increasing list of latency
	// bucket bounds in milliseconds; empty keeps the built-in buckets.
	MetricsLatencyBuckets string `koanf:"metrics_latency_buckets"`

	// MetricsConstLabels is a comma-separated key=value list attached to
	// every metric, e.g. "env=prod,region=south".
	MetricsConstLabels string `koanf:"metrics_const_labels"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		LogMaxSizeMB:       100,
		LogMaxBackups:      5,
		LogMaxAgeDays:      28,
		Addr:               ":8000",
		ModelDir:           "models",
		PriceModelFile:     "price_model.json",
		PriceEncodersFile:  "price_encoders.json",
		DemandModelFile:    "demand_model.json",
		DemandEncodersFile: "demand_encoders.json",
		CacheSize:          10_000,
		BatchWorkers:       runtime.NumCPU(),
		BatchQueueSize:     1_024,
		MaxBatchSize:       1_000,
		CORSAllowedOrigins: "*",
		MetricsNamespace:   "agripredict",
		MetricsSubsystem:   "inference",
	}
}

// PriceModelPath returns the price model location.
func (c *Config) PriceModelPath() string { return filepath.Join(c.ModelDir, c.PriceModelFile) }

// PriceEncodersPath returns the price encoder set location.
func (c *Config) PriceEncodersPath() string { return filepath.Join(c.ModelDir, c.PriceEncodersFile) }

// DemandModelPath returns the demand model location.
func (c *Config) DemandModelPath() string { return filepath.Join(c.ModelDir, c.DemandModelFile) }

// DemandEncodersPath returns the demand encoder set location.
func (c *Config) DemandEncodersPath() string {
	return filepath.Join(c.ModelDir, c.DemandEncodersFile)
}

// AllowedOrigins splits CORSAllowedOrigins into trimmed, non-empty entries.
func (c *Config) AllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// LatencyBuckets parses MetricsLatencyBuckets. An empty value yields nil.
func (c *Config) LatencyBuckets() ([]float64, error) {
	var out []float64
	for _, raw := range splitList(c.MetricsLatencyBuckets) {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: metrics_latency_buckets: %q is not a number", ErrInvalidConfig, raw)
		}
		if len(out) > 0 && v <= out[len(out)-1] {
			return nil, fmt.Errorf("%w: metrics_latency_buckets must be increasing", ErrInvalidConfig)
		}
		out = append(out, v)
	}
	return out, nil
}

// ConstLabels parses MetricsConstLabels. An empty value yields nil.
func (c *Config) ConstLabels() (map[string]string, error) {
	var out map[string]string
	for _, pair := range splitList(c.MetricsConstLabels) {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || !isMetricName(key) {
			return nil, fmt.Errorf("%w: metrics_const_labels: bad pair %q", ErrInvalidConfig, pair)
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// isMetricName reports whether s is a valid Prometheus name component.
func isMetricName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
