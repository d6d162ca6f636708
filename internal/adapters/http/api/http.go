// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agripredict/agripredict/internal/domain/model"
	"github.com/agripredict/agripredict/pkg/logger"
	"github.com/agripredict/agripredict/pkg/metrics"
)

// defaultMaxBatchSize applies when WithMaxBatchSize is not given.
const defaultMaxBatchSize = 1000

// Predictor runs single and batch predictions.
type Predictor interface {
	PredictPrice(ctx context.Context, req model.PriceRequest) (model.PriceResult, error)
	ForecastDemand(ctx context.Context, req model.DemandRequest) (model.DemandResult, error)
	PredictPriceBatch(ctx context.Context, reqs []model.PriceRequest) (model.Batch[model.PriceResult], error)
	ForecastDemandBatch(ctx context.Context, reqs []model.DemandRequest) (model.Batch[model.DemandResult], error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	Predictor
	HealthProvider
	StatsProvider
}

// Server wires HTTP routes for the inference API.
type Server struct {
	predictHandler *PredictHandler
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	metrics        *metrics.Manager
}

type serverOptions struct {
	maxBatchSize int
	metrics      *metrics.Manager
	gatherer     prometheus.Gatherer
	logger       logger.Logger
}

// Option configures the Server.
type Option func(*serverOptions)

// WithMaxBatchSize caps the number of items accepted by batch endpoints.
func WithMaxBatchSize(n int) Option {
	return func(o *serverOptions) {
		if n > 0 {
			o.maxBatchSize = n
		}
	}
}

// WithMetrics sets the manager HTTP metrics are recorded on.
func WithMetrics(m *metrics.Manager) Option {
	return func(o *serverOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithGatherer sets the registry exposed on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(o *serverOptions) {
		if g != nil {
			o.gatherer = g
		}
	}
}

// WithLogger sets the logger used for server-side failures.
func WithLogger(l logger.Logger) Option {
	return func(o *serverOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	o := serverOptions{
		maxBatchSize: defaultMaxBatchSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = metrics.Default()
	}
	if o.gatherer == nil {
		o.gatherer = metrics.GetRegistry()
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("api")
	}

	return &Server{
		predictHandler: NewPredictHandler(deps, o.maxBatchSize, o.logger),
		healthHandler:  NewHealthHandler(deps, o.gatherer),
		statsHandler:   NewStatsHandler(deps),
		metrics:        o.metrics,
	}
}

// Register attaches all HTTP routes to mux. Method-qualified patterns make
// the mux answer 405 for the wrong verb.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.instrument(handleRoot, "root"))
	mux.HandleFunc("POST /predict_price", s.instrument(s.predictHandler.HandlePredictPrice, "predict_price"))
	mux.HandleFunc("POST /forecast_demand", s.instrument(s.predictHandler.HandleForecastDemand, "forecast_demand"))
	mux.HandleFunc("POST /predict_price/batch", s.instrument(s.predictHandler.HandlePredictPriceBatch, "predict_price_batch"))
	mux.HandleFunc("POST /forecast_demand/batch", s.instrument(s.predictHandler.HandleForecastDemandBatch, "forecast_demand_batch"))
	mux.HandleFunc("GET /healthz", s.instrument(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", s.instrument(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
}

func (s *Server) instrument(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return MetricsMiddleware(s.metrics, next, endpoint)
}

type messageResponse struct {
	Message string `json:"message"`
}

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Detail string `json:"detail"`
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "Agri Predict API is running"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	if detail == "" {
		detail = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Detail: detail})
}
