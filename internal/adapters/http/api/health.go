package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agripredict/agripredict/internal/domain/model"
)

// HealthProvider reports which prediction tasks are loaded.
type HealthProvider interface {
	Health() model.Readiness
}

// HealthHandler handles readiness and metrics scrapes.
type HealthHandler struct {
	provider HealthProvider
	metrics  http.Handler
}

// NewHealthHandler creates a new health handler exposing g on /metrics.
func NewHealthHandler(provider HealthProvider, g prometheus.Gatherer) *HealthHandler {
	return &HealthHandler{
		provider: provider,
		metrics:  promhttp.HandlerFor(g, promhttp.HandlerOpts{}),
	}
}

type healthResponse struct {
	Status string          `json:"status"`
	Tasks  model.Readiness `json:"tasks"`
}

// HandleHealth handles GET /healthz. It answers 200 while at least one
// task is loaded and 503 otherwise.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	r := h.provider.Health()
	if !r.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Tasks: r})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Tasks: r})
}

// HandleMetrics serves the Prometheus exposition format.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}
