// Agripredict CLI runs the inference pipeline offline against the model
// artifacts, without starting the HTTP server.
//
// Usage:
//
//	agripredict predict price --input request.json
//	agripredict batch demand --input requests.jsonl
//	agripredict inspect
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/agripredict/agripredict/internal/adapters/artifacts"
	"github.com/agripredict/agripredict/internal/adapters/cache"
	app "github.com/agripredict/agripredict/internal/app"
	"github.com/agripredict/agripredict/internal/config"
	"github.com/agripredict/agripredict/internal/domain/model"
	"github.com/agripredict/agripredict/pkg/logger"
)

// maxLineBytes bounds one JSON line of a batch input file.
const maxLineBytes = 1 << 20

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runtimeState is filled by the app's Before hook.
type runtimeState struct {
	cfg *config.Config
	log logger.Logger
}

func newApp(stdout, stderr io.Writer) *cli.App {
	st := &runtimeState{}

	return &cli.App{
		Name:      "agripredict",
		Usage:     "Offline crop price estimation and demand forecasting",
		Version:   fmt.Sprintf("%s (commit: %s)", version, commit),
		Writer:    stdout,
		ErrWriter: stderr,

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "model-dir",
				Usage: "Directory holding the model and encoder files (overrides AGRI_MODEL_DIR)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "warn",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Batch worker goroutines (overrides AGRI_BATCH_WORKERS)",
			},
		},

		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.Context)
			if err != nil {
				return err
			}
			if c.IsSet("model-dir") {
				cfg.ModelDir = c.String("model-dir")
			}
			if c.IsSet("workers") {
				cfg.BatchWorkers = c.Int("workers")
			}
			if err := logger.Init(logger.WithOutput(c.App.ErrWriter), logger.WithFormat(cfg.LogFormat)); err != nil {
				return err
			}
			if err := logger.SetLevelString(c.String("log-level")); err != nil {
				return err
			}
			st.cfg = cfg
			st.log = logger.Get()
			return nil
		},

		Commands: []*cli.Command{
			predictCommand(st),
			batchCommand(st),
			inspectCommand(st),
		},
	}
}

// =============================================================================
// PREDICT COMMAND
// =============================================================================

func inputFlag(usage string) cli.Flag {
	return &cli.StringFlag{
		Name:     "input",
		Aliases:  []string{"i"},
		Usage:    usage,
		Required: true,
	}
}

func predictCommand(st *runtimeState) *cli.Command {
	flags := []cli.Flag{inputFlag(`Path to one JSON request body ("-" for stdin)`)}
	return &cli.Command{
		Name:  "predict",
		Usage: "Run a single prediction from a JSON request file",
		Subcommands: []*cli.Command{
			{
				Name:  "price",
				Usage: "Estimate the market price of a crop lot",
				Flags: flags,
				Action: func(c *cli.Context) error {
					return runPredict(c, st, model.TaskPrice)
				},
			},
			{
				Name:  "demand",
				Usage: "Forecast a demand score and level",
				Flags: flags,
				Action: func(c *cli.Context) error {
					return runPredict(c, st, model.TaskDemand)
				},
			},
		},
	}
}

func runPredict(c *cli.Context, st *runtimeState, task model.Task) error {
	in, err := openInput(c.String("input"))
	if err != nil {
		return err
	}
	defer in.Close()

	svc, err := st.service(c.Context, task)
	if err != nil {
		return err
	}

	var res any
	switch task {
	case model.TaskPrice:
		req, err := model.DecodePriceRequest(in)
		if err != nil {
			return err
		}
		if res, err = svc.PredictPrice(c.Context, req); err != nil {
			return err
		}
	default:
		req, err := model.DecodeDemandRequest(in)
		if err != nil {
			return err
		}
		if res, err = svc.ForecastDemand(c.Context, req); err != nil {
			return err
		}
	}
	return json.NewEncoder(c.App.Writer).Encode(res)
}

// =============================================================================
// BATCH COMMAND
// =============================================================================

func batchCommand(st *runtimeState) *cli.Command {
	flags := []cli.Flag{inputFlag(`Path to a JSON lines file, one request per line ("-" for stdin)`)}
	return &cli.Command{
		Name:  "batch",
		Usage: "Run predictions for a JSON lines file through the worker pool",
		Subcommands: []*cli.Command{
			{
				Name:  "price",
				Usage: "Estimate prices, one JSON result per input line",
				Flags: flags,
				Action: func(c *cli.Context) error {
					svc, err := st.startedService(c.Context, model.TaskPrice)
					if err != nil {
						return err
					}
					defer svc.Stop()
					return runBatchFile(c, (*model.PricePayload).Request, svc.PredictPriceBatch)
				},
			},
			{
				Name:  "demand",
				Usage: "Forecast demand, one JSON result per input line",
				Flags: flags,
				Action: func(c *cli.Context) error {
					svc, err := st.startedService(c.Context, model.TaskDemand)
					if err != nil {
						return err
					}
					defer svc.Stop()
					return runBatchFile(c, (*model.DemandPayload).Request, svc.ForecastDemandBatch)
				},
			},
		},
	}
}

// runBatchFile validates every non-blank line, runs the valid ones as one
// batch, and writes one result line per input line in input order. Invalid
// lines are reported in place and do not stop the batch.
func runBatchFile[P, Req, Res any](
	c *cli.Context,
	convert func(*P) (Req, error),
	run func(context.Context, []Req) (model.Batch[Res], error),
) error {
	in, err := openInput(c.String("input"))
	if err != nil {
		return err
	}
	defer in.Close()

	var (
		items []model.BatchItem[Res]
		reqs  []Req
		slots []int
	)
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		idx := len(items)
		items = append(items, model.BatchItem[Res]{Index: idx})

		var p P
		if err := json.Unmarshal(line, &p); err != nil {
			items[idx].Error = fmt.Sprintf("%v: malformed JSON: %v", model.ErrInvalidRequest, err)
			continue
		}
		req, err := convert(&p)
		if err != nil {
			items[idx].Error = err.Error()
			continue
		}
		reqs = append(reqs, req)
		slots = append(slots, idx)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", c.String("input"), err)
	}

	if len(reqs) > 0 {
		batch, err := run(c.Context, reqs)
		if err != nil {
			return err
		}
		for i, r := range batch.Results {
			r.Index = slots[i]
			items[slots[i]] = r
		}
	}

	enc := json.NewEncoder(c.App.Writer)
	for _, it := range items {
		if err := enc.Encode(it); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// INSPECT COMMAND
// =============================================================================

type inspectEntry struct {
	artifacts.Info
	MissingEncoders []string `json:"missing_encoders,omitempty"`
	Error           string   `json:"error,omitempty"`
}

func inspectCommand(st *runtimeState) *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Print artifact metadata and load status for both tasks",
		Action: func(c *cli.Context) error {
			out := make([]inspectEntry, 0, 2)
			for _, src := range st.sources() {
				a, err := artifacts.LoadTask(c.Context, src)
				e := inspectEntry{Info: artifacts.Describe(src.Task, a)}
				if err != nil {
					e.Info.ModelPath = src.ModelPath
					e.Info.EncodersPath = src.EncodersPath
					e.Error = err.Error()
				} else {
					e.MissingEncoders = a.MissingEncoders(src.Categorical)
				}
				out = append(out, e)
			}
			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func (st *runtimeState) sources() []artifacts.Source {
	return []artifacts.Source{
		artifacts.PriceSource(st.cfg.PriceModelPath(), st.cfg.PriceEncodersPath()),
		artifacts.DemandSource(st.cfg.DemandModelPath(), st.cfg.DemandEncodersPath()),
	}
}

// service loads only the artifacts task needs.
func (st *runtimeState) service(ctx context.Context, task model.Task) (*app.Service, error) {
	predictions, err := cache.New(st.cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("prediction cache: %w", err)
	}
	opts := []app.Option{
		app.WithLogger(st.log.Named("service")),
		app.WithCache(predictions),
		app.WithWorkerCount(st.cfg.BatchWorkers),
		app.WithQueueSize(st.cfg.BatchQueueSize),
	}
	log := st.log.Named("artifacts")
	srcs := st.sources()
	switch task {
	case model.TaskPrice:
		opts = append(opts, app.WithPriceArtifacts(artifacts.LoadAvailable(ctx, log, srcs[0])))
	default:
		opts = append(opts, app.WithDemandArtifacts(artifacts.LoadAvailable(ctx, log, srcs[1])))
	}
	return app.New(opts...), nil
}

func (st *runtimeState) startedService(ctx context.Context, task model.Task) (*app.Service, error) {
	svc, err := st.service(ctx, task)
	if err != nil {
		return nil, err
	}
	if err := svc.Start(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}
