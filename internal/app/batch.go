package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	jobqueue "github.com/agripredict/agripredict/internal/adapters/mq/queue"
	"github.com/agripredict/agripredict/internal/domain/model"
	"github.com/agripredict/agripredict/pkg/logger"
)

// PredictPriceBatch runs PredictPrice for every request. Results keep input
// order; per-item failures are reported in the item's Error.
func (s *Service) PredictPriceBatch(ctx context.Context, reqs []model.PriceRequest) (model.Batch[model.PriceResult], error) {
	if s.price == nil {
		s.unavailable(model.TaskPrice)
		return model.Batch[model.PriceResult]{}, fmt.Errorf("%w: %s", model.ErrModelUnavailable, model.TaskPrice)
	}
	return runBatch(ctx, s, model.TaskPrice, reqs, s.PredictPrice)
}

// ForecastDemandBatch runs ForecastDemand for every request.
func (s *Service) ForecastDemandBatch(ctx context.Context, reqs []model.DemandRequest) (model.Batch[model.DemandResult], error) {
	if s.demand == nil {
		s.unavailable(model.TaskDemand)
		return model.Batch[model.DemandResult]{}, fmt.Errorf("%w: %s", model.ErrModelUnavailable, model.TaskDemand)
	}
	return runBatch(ctx, s, model.TaskDemand, reqs, s.ForecastDemand)
}

// runBatch fans items out over the worker pool. When the pool is not
// running or the queue is full, the item runs on the calling goroutine.
func runBatch[Req, Res any](
	ctx context.Context,
	s *Service,
	task model.Task,
	reqs []Req,
	one func(context.Context, Req) (Res, error),
) (model.Batch[Res], error) {
	batch := model.Batch[Res]{
		BatchID: uuid.NewString(),
		Results: make([]model.BatchItem[Res], len(reqs)),
	}

	var (
		wg     sync.WaitGroup
		inline int
	)
	for i := range reqs {
		wg.Add(1)
		job := jobqueue.Job{
			BatchID: batch.BatchID,
			Index:   i,
			Run: func(context.Context) error {
				defer wg.Done()
				res, err := one(ctx, reqs[i])
				if err != nil {
					batch.Results[i] = model.BatchItem[Res]{Index: i, Error: err.Error()}
					return err
				}
				batch.Results[i] = model.BatchItem[Res]{Index: i, Result: &res}
				return nil
			},
		}
		if !s.submit(ctx, job) {
			inline++
			_ = job.Run(ctx)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return model.Batch[Res]{}, fmt.Errorf("batch %s: %w", batch.BatchID, ctx.Err())
	}

	s.logger.Debug(ctx, "batch completed",
		logger.String("task", task.String()),
		logger.String("batch_id", batch.BatchID),
		logger.Int("items", len(reqs)),
		logger.Int("inline", inline))
	return batch, nil
}

// submit hands a job to the worker pool if it is running.
func (s *Service) submit(ctx context.Context, j jobqueue.Job) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return false
	}
	return s.jobs.Enqueue(ctx, j)
}
