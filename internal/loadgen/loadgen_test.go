package loadgen

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/agripredict/agripredict/internal/adapters/artifacts"
	"github.com/agripredict/agripredict/internal/adapters/http/api"
	app "github.com/agripredict/agripredict/internal/app"
	"github.com/agripredict/agripredict/pkg/logger"
)

var modelDir = filepath.Join("..", "..", "models")

func newBackend(withModels bool) *httptest.Server {
	log := logger.Get()
	var opts []app.Option
	if withModels {
		opts = append(opts,
			app.WithPriceArtifacts(artifacts.LoadAvailable(context.Background(), log, artifacts.PriceSource(
				filepath.Join(modelDir, "price_model.json"), filepath.Join(modelDir, "price_encoders.json")))),
			app.WithDemandArtifacts(artifacts.LoadAvailable(context.Background(), log, artifacts.DemandSource(
				filepath.Join(modelDir, "demand_model.json"), filepath.Join(modelDir, "demand_encoders.json")))),
		)
	}
	svc := app.New(append(opts, app.WithLogger(log))...)

	mux := http.NewServeMux()
	api.NewServer(svc, api.WithLogger(log)).Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

func TestGenerator(t *testing.T) {
	Convey("Given two generators with the same seed", t, func() {
		now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		a, b := NewGenerator(42, now), NewGenerator(42, now)

		Convey("Then they produce the same requests", func() {
			So(generate(10, a.Price), ShouldResemble, generate(10, b.Price))
			So(generate(10, a.Demand), ShouldResemble, generate(10, b.Demand))
		})

		Convey("Then generated values stay in range", func() {
			for _, p := range generate(200, a.Price) {
				So(p.QualityGrade, ShouldBeBetweenOrEqual, 1, 3)
				So(p.DemandIndex, ShouldBeBetweenOrEqual, 0.0, 1.0)
				So(slices.Contains(markets[p.StateName], p.MarketLocation), ShouldBeTrue)

				d, err := time.Parse("2006/1/2", p.Date)
				So(err, ShouldBeNil)
				So(d.After(now), ShouldBeFalse)
			}
			for _, d := range generate(200, a.Demand) {
				So(d.FestivalFlag, ShouldBeIn, 0, 1)
			}
		})
	})
}

func TestVerification(t *testing.T) {
	Convey("Price responses must be finite and rounded", t, func() {
		So(verifyPrice([]byte(`{"predicted_price": 52.25}`)), ShouldBeNil)
		So(verifyPrice([]byte(`{"predicted_price": 52.255}`)), ShouldNotBeNil)
		So(verifyPrice([]byte(`not json`)), ShouldNotBeNil)
	})

	Convey("Demand levels must agree with the score", t, func() {
		So(verifyDemand([]byte(`{"demand_score": 50, "demand_level": "Low"}`)), ShouldBeNil)
		So(verifyDemand([]byte(`{"demand_score": 5000, "demand_level": "Low"}`)), ShouldNotBeNil)
		// 100.004 rounds to 100.0 but was classified Medium.
		So(verifyDemand([]byte(`{"demand_score": 100.0, "demand_level": "Medium"}`)), ShouldBeNil)
	})
}

func TestRun(t *testing.T) {
	Convey("Given a server with the sample models", t, func() {
		So(logger.Init(logger.WithOutput(io.Discard)), ShouldBeNil)
		srv := newBackend(true)
		defer srv.Close()

		out := t.TempDir()
		cfg := &Config{
			BaseURL:   srv.URL,
			Requests:  25,
			Workers:   4,
			Timeout:   5 * time.Second,
			Tasks:     []string{"price", "demand"},
			Seed:      7,
			OutputDir: out,
		}

		Convey("Then every request succeeds and verifies", func() {
			stats, err := Run(context.Background(), cfg)
			So(err, ShouldBeNil)
			So(stats, ShouldHaveLength, 2)
			for _, s := range stats {
				So(s.Submitted, ShouldEqual, 25)
				So(s.Successful, ShouldEqual, 25)
				So(s.Invalid, ShouldEqual, 0)
			}
		})

		Convey("Then generated requests are saved as JSON lines", func() {
			_, err := Run(context.Background(), cfg)
			So(err, ShouldBeNil)

			files, err := filepath.Glob(filepath.Join(out, "price_requests_*.jsonl"))
			So(err, ShouldBeNil)
			So(files, ShouldHaveLength, 1)

			data, err := os.ReadFile(files[0])
			So(err, ShouldBeNil)
			So(bytes.Count(data, []byte("\n")), ShouldEqual, 25)
		})

		Convey("Then unknown tasks are rejected", func() {
			cfg.Tasks = []string{"yield"}
			_, err := Run(context.Background(), cfg)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a server with no models", t, func() {
		So(logger.Init(logger.WithOutput(io.Discard)), ShouldBeNil)
		srv := newBackend(false)
		defer srv.Close()

		cfg := &Config{BaseURL: srv.URL, Requests: 3, Workers: 1, Timeout: time.Second, Tasks: []string{"price"}}

		Convey("Then the health check stops the run", func() {
			_, err := Run(context.Background(), cfg)
			So(err, ShouldNotBeNil)
		})

		Convey("Then skipping the health check counts server failures", func() {
			cfg.SkipHealth = true
			stats, err := Run(context.Background(), cfg)
			So(err, ShouldBeNil)
			So(stats[0].Failed, ShouldEqual, 3)
		})
	})
}
