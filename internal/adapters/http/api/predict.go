package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/agripredict/agripredict/internal/domain/model"
	"github.com/agripredict/agripredict/pkg/logger"
)

// Request body limits.
const (
	maxBodyBytes      = 1 << 20
	maxBatchItemBytes = 4 << 10
)

// unavailableDetail is the 500 body for a task whose artifacts did not load.
var unavailableDetail = map[model.Task]string{
	model.TaskPrice:  "Price model not loaded",
	model.TaskDemand: "Demand model not loaded",
}

// PredictHandler handles the price and demand prediction endpoints.
type PredictHandler struct {
	predictor    Predictor
	maxBatchSize int
	logger       logger.Logger
}

// NewPredictHandler creates a new prediction handler.
func NewPredictHandler(p Predictor, maxBatchSize int, log logger.Logger) *PredictHandler {
	return &PredictHandler{predictor: p, maxBatchSize: maxBatchSize, logger: log}
}

// HandlePredictPrice handles POST /predict_price.
func (h *PredictHandler) HandlePredictPrice(w http.ResponseWriter, r *http.Request) {
	req, err := model.DecodePriceRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeDecodeError(w, err)
		return
	}
	res, err := h.predictor.PredictPrice(r.Context(), req)
	if err != nil {
		h.writePredictError(w, r, model.TaskPrice, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleForecastDemand handles POST /forecast_demand.
func (h *PredictHandler) HandleForecastDemand(w http.ResponseWriter, r *http.Request) {
	req, err := model.DecodeDemandRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeDecodeError(w, err)
		return
	}
	res, err := h.predictor.ForecastDemand(r.Context(), req)
	if err != nil {
		h.writePredictError(w, r, model.TaskDemand, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandlePredictPriceBatch handles POST /predict_price/batch.
func (h *PredictHandler) HandlePredictPriceBatch(w http.ResponseWriter, r *http.Request) {
	serveBatch(h, w, r, model.TaskPrice, (*model.PricePayload).Request, h.predictor.PredictPriceBatch)
}

// HandleForecastDemandBatch handles POST /forecast_demand/batch.
func (h *PredictHandler) HandleForecastDemandBatch(w http.ResponseWriter, r *http.Request) {
	serveBatch(h, w, r, model.TaskDemand, (*model.DemandPayload).Request, h.predictor.ForecastDemandBatch)
}

type batchPayload[P any] struct {
	Requests []P `json:"requests"`
}

func serveBatch[P, Req, Res any](
	h *PredictHandler,
	w http.ResponseWriter,
	r *http.Request,
	task model.Task,
	convert func(*P) (Req, error),
	run func(context.Context, []Req) (model.Batch[Res], error),
) {
	limit := int64(h.maxBatchSize)*maxBatchItemBytes + maxBodyBytes
	reqs, err := decodeBatch(http.MaxBytesReader(w, r.Body, limit), h.maxBatchSize, convert)
	if err != nil {
		writeDecodeError(w, err)
		return
	}
	batch, err := run(r.Context(), reqs)
	if err != nil {
		h.writePredictError(w, r, task, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

// decodeBatch reads {"requests": [...]} and validates every item. The first
// invalid item fails the whole batch.
func decodeBatch[P, Req any](body io.Reader, limit int, convert func(*P) (Req, error)) ([]Req, error) {
	var p batchPayload[P]
	if err := json.NewDecoder(body).Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON: %w", model.ErrInvalidRequest, err)
	}
	switch {
	case len(p.Requests) == 0:
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidRequest, ErrEmptyBatch)
	case len(p.Requests) > limit:
		return nil, fmt.Errorf("%w: %d items, limit is %d", ErrBatchTooLarge, len(p.Requests), limit)
	}

	out := make([]Req, len(p.Requests))
	for i := range p.Requests {
		req, err := convert(&p.Requests[i])
		if err != nil {
			return nil, fmt.Errorf("requests[%d]: %w", i, err)
		}
		out[i] = req
	}
	return out, nil
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig), errors.Is(err, ErrBatchTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	default:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	}
}

func (h *PredictHandler) writePredictError(w http.ResponseWriter, r *http.Request, task model.Task, err error) {
	switch {
	case errors.Is(err, model.ErrModelUnavailable):
		writeError(w, http.StatusInternalServerError, unavailableDetail[task])
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error(r.Context(), "prediction request failed",
			logger.String("task", task.String()),
			logger.String("path", r.URL.Path),
			logger.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
