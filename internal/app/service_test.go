package service_test

import (
	"context"
	"errors"
	"io"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/agripredict/agripredict/internal/adapters/artifacts"
	"github.com/agripredict/agripredict/internal/adapters/cache"
	service "github.com/agripredict/agripredict/internal/app"
	"github.com/agripredict/agripredict/internal/domain/features"
	"github.com/agripredict/agripredict/internal/domain/model"
	"github.com/agripredict/agripredict/internal/domain/regressor"
	"github.com/agripredict/agripredict/pkg/logger"
	"github.com/agripredict/agripredict/pkg/metrics"
)

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

// countingModel returns base + x[feature] and counts calls.
type countingModel struct {
	base    float64
	feature int
	calls   atomic.Int32
}

func (m *countingModel) Predict(x []float64) (float64, error) {
	m.calls.Add(1)
	return m.base + x[m.feature], nil
}
func (m *countingModel) FeatureNames() []string       { return nil }
func (m *countingModel) Metadata() regressor.Metadata { return regressor.Metadata{Type: "counting"} }
func (m *countingModel) Validate(int) error           { return nil }

type constModel struct{ y float64 }

func (m constModel) Predict([]float64) (float64, error) { return m.y, nil }
func (m constModel) FeatureNames() []string             { return nil }
func (m constModel) Metadata() regressor.Metadata       { return regressor.Metadata{Type: "const"} }
func (m constModel) Validate(int) error                 { return nil }

func encoders() features.EncoderSet {
	mk := func(classes ...string) *features.Encoder {
		e, err := features.NewEncoder(classes)
		if err != nil {
			panic(err)
		}
		return e
	}
	return features.EncoderSet{
		"commodity_group": mk("Cereals", "Vegetables"),
		"crop_type":       mk("Onion", "Wheat"),
		"state_name":      mk("Maharashtra", "Punjab"),
		"market_location": mk("Lasalgaon", "Ludhiana"),
		"season":          mk("Kharif", "Rabi"),
	}
}

func linearPriceModel() regressor.Model {
	// price = 100.123456 + 0.01 * quantity_kg + 1 * crop_type
	m, err := regressor.Decode([]byte(`{
		"type": "linear",
		"intercept": 100.123456,
		"coefficients": [0, 1, 0, 0, 0.01, 0, 0, 0, 0, 0, 0]
	}`))
	if err != nil {
		panic(err)
	}
	return m
}

func priceArtifacts(m regressor.Model) *artifacts.Artifacts {
	return &artifacts.Artifacts{Task: model.TaskPrice, Model: m, Encoders: encoders(), LoadedAt: time.Now()}
}

func demandArtifacts(m regressor.Model) *artifacts.Artifacts {
	return &artifacts.Artifacts{Task: model.TaskDemand, Model: m, Encoders: encoders(), LoadedAt: time.Now()}
}

func priceRequest() model.PriceRequest {
	return model.PriceRequest{
		Date:           "2024/03/15",
		CommodityGroup: "Cereals",
		CropType:       "Wheat",
		StateName:      "Punjab",
		MarketLocation: "Ludhiana",
		QuantityKg:     1200,
		QualityGrade:   2,
		Season:         "Rabi",
		TransportCost:  45.5,
		DemandIndex:    0.8,
	}
}

func demandRequest() model.DemandRequest {
	return model.DemandRequest{
		Date:                  "2024/03/15",
		CommodityGroup:        "Vegetables",
		CropType:              "Onion",
		StateName:             "Maharashtra",
		MarketLocation:        "Lasalgaon",
		Season:                "Kharif",
		TotalQuantitySold:     5000,
		AvgPricePerKg:         21.5,
		HistoricalDemand7d:    4200,
		PriceTrend7d:          -0.4,
		EstimatedProductionKg: 90000,
		PolicySupportScore:    0.6,
		FestivalFlag:          1,
		WeatherIndex:          0.9,
	}
}

func newRegistry() (*prometheus.Registry, *metrics.Manager) {
	reg := prometheus.NewRegistry()
	return reg, metrics.NewManager(metrics.WithPrometheusRegistry(reg))
}

// metricSum adds up every sample of the named counter or gauge family.
func metricSum(reg *prometheus.Registry, name string) float64 {
	families, err := reg.Gather()
	if err != nil {
		panic(err)
	}
	var sum float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				sum += c.GetValue()
			}
			if g := m.GetGauge(); g != nil {
				sum += g.GetValue()
			}
		}
	}
	return sum
}

func hasTwoDecimals(v float64) bool {
	scaled := v * 100
	return math.Abs(scaled-math.Round(scaled)) < 1e-6
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with no artifacts", t, func() {
		reg, m := newRegistry()
		svc := service.New(service.WithMetrics(m))

		Convey("Then no task is ready", func() {
			So(svc, ShouldNotBeNil)
			So(svc.Health().Ready(), ShouldBeFalse)
			So(metricSum(reg, "agripredict_inference_artifacts_loaded"), ShouldEqual, 0.0)
		})
	})

	Convey("Given a service with only the price task", t, func() {
		reg, m := newRegistry()
		svc := service.New(
			service.WithMetrics(m),
			service.WithPriceArtifacts(priceArtifacts(linearPriceModel())),
			service.WithWorkerCount(2),
			service.WithQueueSize(16),
		)

		Convey("Then it reports partial readiness", func() {
			h := svc.Health()
			So(h.Price, ShouldBeTrue)
			So(h.Demand, ShouldBeFalse)
			So(h.Ready(), ShouldBeTrue)
			So(metricSum(reg, "agripredict_inference_artifacts_loaded"), ShouldEqual, 1.0)
		})
	})
}

func TestService_PredictPrice(t *testing.T) {
	Convey("Given a service without price artifacts", t, func() {
		reg, m := newRegistry()
		var clockCalls atomic.Int32
		clock := func() time.Time { clockCalls.Add(1); return time.Now() }
		svc := service.New(service.WithMetrics(m), service.WithClock(clock))

		Convey("When predicting with a malformed date", func() {
			req := priceRequest()
			req.Date = "not-a-date"
			_, err := svc.PredictPrice(context.Background(), req)

			Convey("Then it fails as unavailable without encoding", func() {
				So(errors.Is(err, model.ErrModelUnavailable), ShouldBeTrue)
				So(clockCalls.Load(), ShouldEqual, int32(0))
				So(metricSum(reg, "agripredict_inference_model_unavailable_total"), ShouldEqual, 1.0)
			})
		})
	})

	Convey("Given a service with a linear price model", t, func() {
		_, m := newRegistry()
		svc := service.New(service.WithMetrics(m), service.WithPriceArtifacts(priceArtifacts(linearPriceModel())))

		Convey("When predicting a fully known request", func() {
			res, err := svc.PredictPrice(context.Background(), priceRequest())

			Convey("Then the price is rounded to two places", func() {
				So(err, ShouldBeNil)
				// 100.123456 + 1 (Wheat) + 12 (1200 kg)
				So(res.PredictedPrice, ShouldEqual, 113.12)
				So(hasTwoDecimals(res.PredictedPrice), ShouldBeTrue)
			})

			Convey("And repeated calls are deterministic", func() {
				again, err := svc.PredictPrice(context.Background(), priceRequest())
				So(err, ShouldBeNil)
				So(again, ShouldResemble, res)
			})
		})
	})

	Convey("Given unknown categories and a malformed date", t, func() {
		reg, m := newRegistry()
		fixed := func() time.Time { return time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC) }
		svc := service.New(
			service.WithMetrics(m),
			service.WithClock(fixed),
			service.WithPriceArtifacts(priceArtifacts(linearPriceModel())),
		)
		req := priceRequest()
		req.CropType = "Saffron"
		req.StateName = "Kerala"
		req.Date = "2024-03-15"

		res, err := svc.PredictPrice(context.Background(), req)

		Convey("Then the request still succeeds with fallback codes", func() {
			So(err, ShouldBeNil)
			// Saffron encodes as 0, so the crop term drops out.
			So(res.PredictedPrice, ShouldEqual, 112.12)
			So(metricSum(reg, "agripredict_inference_unknown_category_total"), ShouldEqual, 2.0)
			So(metricSum(reg, "agripredict_inference_date_fallback_total"), ShouldEqual, 1.0)
		})
	})

	Convey("Given a model that produces NaN", t, func() {
		_, m := newRegistry()
		svc := service.New(service.WithMetrics(m), service.WithPriceArtifacts(priceArtifacts(constModel{y: math.NaN()})))

		_, err := svc.PredictPrice(context.Background(), priceRequest())

		Convey("Then the prediction is rejected", func() {
			So(errors.Is(err, model.ErrInvalidPrediction), ShouldBeTrue)
		})
	})
}

func TestService_ForecastDemand(t *testing.T) {
	Convey("Given demand models around the level thresholds", t, func() {
		_, m := newRegistry()
		cases := []struct {
			raw   float64
			score float64
			level model.DemandLevel
		}{
			{raw: 42.004, score: 42, level: model.DemandLow},
			{raw: 100, score: 100, level: model.DemandLow},
			{raw: 100.004, score: 100, level: model.DemandMedium},
			{raw: 3960, score: 3960, level: model.DemandMedium},
			{raw: 3960.004, score: 3960, level: model.DemandHigh},
			{raw: 12000.555, score: 12000.56, level: model.DemandHigh},
		}

		for _, c := range cases {
			svc := service.New(service.WithMetrics(m), service.WithDemandArtifacts(demandArtifacts(constModel{y: c.raw})))
			res, err := svc.ForecastDemand(context.Background(), demandRequest())

			So(err, ShouldBeNil)
			So(res.DemandScore, ShouldEqual, c.score)
			So(res.DemandLevel, ShouldEqual, c.level)
		}
	})

	Convey("Given a service without demand artifacts", t, func() {
		_, m := newRegistry()
		svc := service.New(service.WithMetrics(m), service.WithPriceArtifacts(priceArtifacts(linearPriceModel())))

		_, err := svc.ForecastDemand(context.Background(), demandRequest())

		Convey("Then it fails as unavailable", func() {
			So(errors.Is(err, model.ErrModelUnavailable), ShouldBeTrue)
		})
	})
}

func TestService_Cache(t *testing.T) {
	Convey("Given a service with a prediction cache", t, func() {
		reg, m := newRegistry()
		c, err := cache.New(8)
		So(err, ShouldBeNil)
		// feature 4 is quantity_kg
		counting := &countingModel{base: 10, feature: 4}
		svc := service.New(
			service.WithMetrics(m),
			service.WithCache(c),
			service.WithPriceArtifacts(priceArtifacts(counting)),
		)

		first, err := svc.PredictPrice(context.Background(), priceRequest())
		So(err, ShouldBeNil)
		second, err := svc.PredictPrice(context.Background(), priceRequest())
		So(err, ShouldBeNil)

		Convey("Then identical vectors hit the cache", func() {
			So(first, ShouldResemble, second)
			So(first.PredictedPrice, ShouldEqual, 1210.0)
			So(counting.calls.Load(), ShouldEqual, int32(1))
			So(metricSum(reg, "agripredict_inference_cache_hits_total"), ShouldEqual, 1.0)
			So(metricSum(reg, "agripredict_inference_cache_misses_total"), ShouldEqual, 1.0)
		})

		Convey("And different vectors miss", func() {
			req := priceRequest()
			req.QuantityKg = 5
			res, err := svc.PredictPrice(context.Background(), req)
			So(err, ShouldBeNil)
			So(res.PredictedPrice, ShouldEqual, 15.0)
			So(counting.calls.Load(), ShouldEqual, int32(2))
		})
	})
}

func TestService_Batch(t *testing.T) {
	Convey("Given a started service", t, func() {
		_, m := newRegistry()
		svc := service.New(
			service.WithMetrics(m),
			service.WithWorkerCount(4),
			service.WithQueueSize(8),
			service.WithPriceArtifacts(priceArtifacts(&countingModel{feature: 4})),
			service.WithDemandArtifacts(demandArtifacts(constModel{y: 150})),
		)
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a price batch larger than the queue is submitted", func() {
			reqs := make([]model.PriceRequest, 50)
			for i := range reqs {
				reqs[i] = priceRequest()
				reqs[i].QuantityKg = float64(i)
			}
			batch, err := svc.PredictPriceBatch(ctx, reqs)

			Convey("Then every result is present in input order", func() {
				So(err, ShouldBeNil)
				So(batch.BatchID, ShouldNotBeEmpty)
				So(len(batch.Results), ShouldEqual, 50)
				for i, item := range batch.Results {
					So(item.Index, ShouldEqual, i)
					So(item.Error, ShouldBeEmpty)
					So(item.Result.PredictedPrice, ShouldEqual, float64(i))
				}
			})
		})

		Convey("When a demand batch is submitted", func() {
			batch, err := svc.ForecastDemandBatch(ctx, []model.DemandRequest{demandRequest(), demandRequest()})

			Convey("Then each item carries score and level", func() {
				So(err, ShouldBeNil)
				So(len(batch.Results), ShouldEqual, 2)
				So(batch.Results[1].Result.DemandLevel, ShouldEqual, model.DemandMedium)
			})
		})

		Convey("When reading stats", func() {
			stats := svc.GetStats()

			Convey("Then they describe the running service", func() {
				So(stats["started"], ShouldEqual, true)
				So(stats["workerCount"], ShouldEqual, 4)
				So(stats, ShouldContainKey, "queueLength")
				So(stats, ShouldContainKey, "artifacts")
			})
		})
	})

	Convey("Given a service that was never started", t, func() {
		_, m := newRegistry()
		svc := service.New(service.WithMetrics(m), service.WithPriceArtifacts(priceArtifacts(&countingModel{feature: 4})))

		batch, err := svc.PredictPriceBatch(context.Background(), []model.PriceRequest{priceRequest()})

		Convey("Then items run inline", func() {
			So(err, ShouldBeNil)
			So(batch.Results[0].Result.PredictedPrice, ShouldEqual, 1200.0)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})

	Convey("Given a batch for an unavailable task", t, func() {
		_, m := newRegistry()
		svc := service.New(service.WithMetrics(m))

		_, err := svc.ForecastDemandBatch(context.Background(), []model.DemandRequest{demandRequest()})

		Convey("Then the whole batch fails", func() {
			So(errors.Is(err, model.ErrModelUnavailable), ShouldBeTrue)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Start and Stop are idempotent", t, func() {
		_, m := newRegistry()
		svc := service.New(service.WithMetrics(m), service.WithWorkerCount(1))
		ctx := context.Background()

		So(svc.Start(ctx), ShouldBeNil)
		So(svc.Start(ctx), ShouldBeNil)
		svc.Stop()
		svc.Stop()
		So(svc.GetStats()["started"], ShouldEqual, false)
	})
}
