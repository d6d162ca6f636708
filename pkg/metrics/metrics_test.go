package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.RecordPrediction("price", "ok")

			Convey("Then metric names and constant labels follow the options", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var found bool
				for _, mf := range families {
					if mf.GetName() == "test_namespace_test_subsystem_predictions_total" {
						found = true
						So(mf.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "env")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When the default manager is requested", func() {
			Convey("Then it is registered on the custom registry", func() {
				So(Default(), ShouldNotBeNil)
				So(GetRegistry(), ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given a manager on a private registry", t, func() {
		m := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))

		Convey("When recording inference metrics", func() {
			m.RecordPrediction("price", "ok")
			m.RecordPrediction("price", "ok")
			m.RecordPrediction("demand", "error")
			m.RecordUnknownCategory("price", "crop_type")
			m.RecordDateFallback("demand")
			m.RecordModelUnavailable("demand")
			m.RecordDemandLevel("High")
			m.SetArtifactsLoaded("price", true)
			m.SetArtifactsLoaded("demand", false)

			Convey("Then the counters reflect the calls", func() {
				So(testutil.ToFloat64(m.predictions.WithLabelValues("price", "ok")), ShouldEqual, 2.0)
				So(testutil.ToFloat64(m.predictions.WithLabelValues("demand", "error")), ShouldEqual, 1.0)
				So(testutil.ToFloat64(m.unknownCategories.WithLabelValues("price", "crop_type")), ShouldEqual, 1.0)
				So(testutil.ToFloat64(m.dateFallbacks.WithLabelValues("demand")), ShouldEqual, 1.0)
				So(testutil.ToFloat64(m.modelUnavailable.WithLabelValues("demand")), ShouldEqual, 1.0)
				So(testutil.ToFloat64(m.demandLevels.WithLabelValues("High")), ShouldEqual, 1.0)
				So(testutil.ToFloat64(m.artifactsLoaded.WithLabelValues("price")), ShouldEqual, 1.0)
				So(testutil.ToFloat64(m.artifactsLoaded.WithLabelValues("demand")), ShouldEqual, 0.0)
			})
		})

		Convey("When recording cache and queue metrics", func() {
			m.RecordCacheHit("price")
			m.RecordCacheMiss("price")
			m.RecordCacheMiss("price")
			m.UpdateCacheEntries(7)
			m.UpdateQueueCapacity(10)
			m.UpdateQueueSize(5, 10)

			Convey("Then gauges and counters are set", func() {
				So(testutil.ToFloat64(m.cacheHits.WithLabelValues("price")), ShouldEqual, 1.0)
				So(testutil.ToFloat64(m.cacheMisses.WithLabelValues("price")), ShouldEqual, 2.0)
				So(testutil.ToFloat64(m.cacheEntries), ShouldEqual, 7.0)
				So(testutil.ToFloat64(m.queueCapacity), ShouldEqual, 10.0)
				So(testutil.ToFloat64(m.queueUtilization), ShouldEqual, 0.5)
			})
		})

		Convey("When recording HTTP, error, worker and system metrics", func() {
			Convey("Then nothing panics", func() {
				So(func() {
					m.RecordHTTPRequest("predict_price", "POST", "200")
					m.RecordHTTPRequestDuration("predict_price", "POST", "200", 1.5)
					m.RecordErrorByComponent("http", "server_error")
					m.RecordErrorByType("server_error", "high")
					m.RecordErrorByEndpoint("predict_price", "POST", "server_error")
					m.RecordErrorLatency("http", "server_error", 2)
					m.RecordQueueEnqueue()
					m.RecordQueueDequeue()
					m.RecordQueueEnqueueError()
					m.UpdateWorkerCount(4)
					m.RecordWorkerProcessingLatency(0.3)
					m.RecordWorkerError()
					m.UpdateSystemMemoryUsage(1024)
					m.UpdateSystemGoroutineCount(12)
					m.RecordSystemGCPauseTime(0.2)
				}, ShouldNotPanic)
			})
		})

		Convey("When a zero capacity is reported", func() {
			Convey("Then utilization is left untouched", func() {
				So(func() { m.UpdateQueueSize(3, 0) }, ShouldNotPanic)
				So(testutil.ToFloat64(m.queueUtilization), ShouldEqual, 0.0)
			})
		})
	})
}

func TestConfigure(t *testing.T) {
	Convey("Given a reconfigured default manager", t, func() {
		previous := Default()
		m := Configure(WithNamespace("farm"), WithCustomLabels(map[string]string{"env": "test"}))
		defer Configure()

		Convey("Then Default and GetRegistry point at the new manager and registry", func() {
			So(Default(), ShouldEqual, m)
			So(Default(), ShouldNotEqual, previous)

			m.RecordCacheHit("price")
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			var found bool
			for _, mf := range families {
				if mf.GetName() == "farm_inference_cache_hits_total" {
					found = true
				}
			}
			So(found, ShouldBeTrue)
		})

		Convey("Then configuring again does not collide with earlier registrations", func() {
			So(func() { Configure(WithNamespace("farm")) }, ShouldNotPanic)
		})
	})
}
