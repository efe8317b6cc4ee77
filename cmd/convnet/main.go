// Command convnet trains the MNIST convolutional classifier and writes the
// per-epoch average losses and timings to a results file.
//
// Usage:
//
//	convnet [flags] <output-file>
//
// Hyperparameters default to the reference run (4 epochs, batch 100,
// lr 5e-4, clip 1000, dropout keep 0.5, seed 42). A YAML file given with
// -config is applied first; flags that are set explicitly override it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/born-ml/convnet/internal/arena"
	"github.com/born-ml/convnet/internal/backend/cpu"
	"github.com/born-ml/convnet/internal/config"
	"github.com/born-ml/convnet/internal/dataset"
	"github.com/born-ml/convnet/internal/nn"
	"github.com/born-ml/convnet/internal/optim"
	"github.com/born-ml/convnet/internal/parallel"
	"github.com/born-ml/convnet/internal/report"
	"github.com/born-ml/convnet/internal/tensor"
	"github.com/born-ml/convnet/internal/train"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, output, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	logger, err := newLogger(stderr, cfg.Log)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	logger = logger.With("run", uuid.New().String())

	if err := trainAndReport(ctx, cfg, output, stdout, logger); err != nil {
		logger.Error("run failed", "err", err)
		return 1
	}
	return 0
}

func parseArgs(args []string, stderr io.Writer) (config.Config, string, error) {
	fs := flag.NewFlagSet("convnet", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: convnet [flags] <output-file>")
		fs.PrintDefaults()
	}

	def := config.Default()
	configPath := fs.String("config", "", "YAML configuration file")
	epochs := fs.Int("epochs", def.Epochs, "Number of training epochs")
	batch := fs.Int("batch", def.BatchSize, "Minibatch size")
	lr := fs.Float64("lr", float64(def.Optimizer.LR), "Learning rate")
	clip := fs.Float64("clip", float64(def.Optimizer.Clip), "Element-wise gradient clip bound (0 disables)")
	opt := fs.String("optimizer", def.Optimizer.Kind, "Optimizer: sgd or adam")
	keep := fs.Float64("keep", float64(def.Model.KeepProb), "Dropout keep probability")
	seed := fs.Int64("seed", def.Seed, "Parameter initialization seed")
	dropoutSeed := fs.Int64("dropout-seed", def.DropoutSeed, "Dropout mask seed")
	format := fs.String("format", def.Data.Format, "Dataset format: binary, idx or synthetic")
	images := fs.String("images", def.Data.Images, "Image file")
	labels := fs.String("labels", def.Data.Labels, "Label file")
	samples := fs.Int("samples", def.Data.Samples, "Size of a synthetic dataset")
	gemm := fs.String("gemm", def.Backend.Gemm, "GEMM implementation: blas or native")
	workers := fs.Int("workers", def.Backend.Workers, "GEMM workers (0: one per logical core)")
	arenaBytes := fs.Int("arena-bytes", def.Arena.Bytes, "Fixed arena size in bytes (0: computed)")
	evaluate := fs.Bool("evaluate", def.Evaluate, "Report training-set accuracy after the run")
	logLevel := fs.String("log-level", def.Log.Level, "Log level: debug, info, warn, error")
	logFormat := fs.String("log-format", def.Log.Format, "Log format: text or json")

	if err := fs.Parse(args); err != nil {
		return config.Config{}, "", err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return config.Config{}, "", errors.New("exactly one output file is required")
	}

	cfg := def
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return config.Config{}, "", err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "epochs":
			cfg.Epochs = *epochs
		case "batch":
			cfg.BatchSize = *batch
		case "lr":
			cfg.Optimizer.LR = float32(*lr)
		case "clip":
			cfg.Optimizer.Clip = float32(*clip)
		case "optimizer":
			cfg.Optimizer.Kind = *opt
		case "keep":
			cfg.Model.KeepProb = float32(*keep)
		case "seed":
			cfg.Seed = *seed
		case "dropout-seed":
			cfg.DropoutSeed = *dropoutSeed
		case "format":
			cfg.Data.Format = *format
		case "images":
			cfg.Data.Images = *images
		case "labels":
			cfg.Data.Labels = *labels
		case "samples":
			cfg.Data.Samples = *samples
		case "gemm":
			cfg.Backend.Gemm = *gemm
		case "workers":
			cfg.Backend.Workers = *workers
		case "arena-bytes":
			cfg.Arena.Bytes = *arenaBytes
		case "evaluate":
			cfg.Evaluate = *evaluate
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		}
	})

	if err := cfg.Validate(); err != nil {
		return config.Config{}, "", err
	}
	return cfg, fs.Arg(0), nil
}

func newLogger(w io.Writer, cfg config.Log) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func openDataset(cfg config.Config) (dataset.Provider, error) {
	norm := dataset.Normalization{Mean: cfg.Data.Mean, Std: cfg.Data.Std}
	shape := tensor.Shape{cfg.Data.Channels, cfg.Data.Height, cfg.Data.Width}

	switch cfg.Data.Format {
	case config.FormatBinary:
		return dataset.OpenBinary(cfg.Data.Images, cfg.Data.Labels, dataset.BinaryOptions{
			SampleShape:   shape,
			Normalization: norm,
			Classes:       cfg.Model.Classes,
		})
	case config.FormatIDX:
		ds, err := dataset.LoadIDX(cfg.Data.Images, cfg.Data.Labels, norm)
		if err != nil {
			return nil, err
		}
		if err := dataset.CheckLabels(ds.Labels(), cfg.Model.Classes); err != nil {
			return nil, err
		}
		return ds, nil
	default:
		return dataset.NewSynthetic(dataset.SyntheticConfig{
			Samples:     cfg.Data.Samples,
			Classes:     cfg.Model.Classes,
			SampleShape: shape,
			Noise:       0.3,
			Seed:        cfg.Seed,
		})
	}
}

func newBackend(cfg config.Backend) *cpu.CPUBackend {
	bc := cpu.DefaultConfig()
	bc.Gemm = cpu.GemmKind(cfg.Gemm)
	if cfg.Workers > 0 {
		bc.Parallel = parallel.DefaultConfig()
		bc.Parallel.NumWorkers = cfg.Workers
		bc.Parallel.Enabled = cfg.Workers > 1
	}
	return cpu.NewWithConfig(bc)
}

func trainAndReport(ctx context.Context, cfg config.Config, output string, stdout io.Writer, logger *slog.Logger) error {
	start := time.Now()
	backend := newBackend(cfg.Backend)
	logger.Info("starting", "cpu", cpu.Features(), "backend", backend.Name())

	data, err := openDataset(cfg)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	defer data.Close()

	sample := data.SampleShape()
	modelCfg := nn.LeNetConfig{
		InChannels:    sample[0],
		Height:        sample[1],
		Width:         sample[2],
		Classes:       cfg.Model.Classes,
		Conv1Channels: cfg.Model.Conv1Channels,
		Conv2Channels: cfg.Model.Conv2Channels,
		KernelSize:    cfg.Model.KernelSize,
		PoolSize:      2,
		Hidden:        cfg.Model.Hidden,
		KeepProb:      cfg.Model.KeepProb,
	}
	//nolint:gosec // weight initialization, not security-critical
	model, err := nn.NewLeNet(modelCfg, rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		return fmt.Errorf("failed to build model: %w", err)
	}

	opt, err := optim.New(model.Parameters(), optim.Config{
		Kind:     optim.Kind(cfg.Optimizer.Kind),
		LR:       cfg.Optimizer.LR,
		Clip:     cfg.Optimizer.Clip,
		Momentum: cfg.Optimizer.Momentum,
	})
	if err != nil {
		return err
	}

	size := cfg.Arena.Bytes
	if size == 0 {
		size = train.ArenaBytes(model, cfg.BatchSize, cfg.Arena.SafetyFactor)
	}
	nctx := &nn.Context{
		Arena:   arena.New(size),
		Backend: backend,
		//nolint:gosec // dropout masks, not security-critical
		RNG: rand.New(rand.NewSource(cfg.DropoutSeed)),
	}
	logger.Info("prepared",
		"samples", data.Len(),
		"parameters", model.NumParameters(),
		"optimizer", cfg.Optimizer.Kind,
		"lr", opt.GetLR(),
		"arena_bytes", size)

	text := train.NewTextReporter(stdout)
	trainer := train.New(model, opt, nctx,
		train.Config{Epochs: cfg.Epochs, BatchSize: cfg.BatchSize},
		train.WithLogger(logger),
		train.WithReporter(train.Reporters{text, train.NewLogReporter(logger)}),
	)
	prepare := time.Since(start)
	text.Prepared(prepare)

	summary, err := trainer.Run(ctx, data)
	if err != nil {
		return err
	}
	perEpoch := (time.Since(start) - prepare).Seconds() / float64(cfg.Epochs)

	if cfg.Evaluate {
		eval, err := trainer.Evaluate(ctx, data)
		if err != nil {
			return err
		}
		logger.Info("evaluation",
			"samples", eval.Samples,
			"accuracy", eval.Accuracy(),
			"avg_loss", eval.AvgLoss)
	}

	if err := report.WriteFile(output, report.Result{
		Losses:         summary.Losses(),
		PrepareSeconds: prepare.Seconds(),
		EpochSeconds:   perEpoch,
	}); err != nil {
		return err
	}
	logger.Info("results written", "path", output, "arena_peak", nctx.Arena.Peak())
	return nil
}
