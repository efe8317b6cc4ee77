// Package config holds the run configuration: hyperparameters, dataset
// location, arena sizing, backend and logging options.
//
// A Config starts from Default, is optionally overlaid with a YAML file via
// Load, and may be further adjusted by command-line flags before Validate.
//
// Example file:
//
//	epochs: 4
//	batch_size: 100
//	optimizer:
//	  lr: 0.0005
//	  clip: 1000
//	data:
//	  format: binary
//	  images: ../data/bin/mnist_train.bin
//	  labels: ../data/bin/mnist_train_target.bin
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/convnet/internal/dataset"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Dataset formats.
const (
	FormatBinary    = "binary"
	FormatIDX       = "idx"
	FormatSynthetic = "synthetic"
)

// Config is the complete run configuration.
type Config struct {
	Epochs    int `yaml:"epochs"`
	BatchSize int `yaml:"batch_size"`

	// Seed drives parameter initialization; DropoutSeed drives dropout masks.
	Seed        int64 `yaml:"seed"`
	DropoutSeed int64 `yaml:"dropout_seed"`

	// Evaluate reports accuracy over the training set after the run.
	Evaluate bool `yaml:"evaluate"`

	Optimizer Optimizer `yaml:"optimizer"`
	Model     Model     `yaml:"model"`
	Data      Data      `yaml:"data"`
	Arena     Arena     `yaml:"arena"`
	Backend   Backend   `yaml:"backend"`
	Log       Log       `yaml:"log"`
}

// Optimizer configures the parameter update.
type Optimizer struct {
	Kind     string  `yaml:"kind"`
	LR       float32 `yaml:"lr"`
	Clip     float32 `yaml:"clip"`
	Momentum float32 `yaml:"momentum"`
}

// Model configures the network.
type Model struct {
	Conv1Channels int     `yaml:"conv1_channels"`
	Conv2Channels int     `yaml:"conv2_channels"`
	KernelSize    int     `yaml:"kernel_size"`
	Hidden        int     `yaml:"hidden"`
	Classes       int     `yaml:"classes"`
	KeepProb      float32 `yaml:"keep_prob"`
}

// Data locates the training set.
type Data struct {
	Format string `yaml:"format"`
	Images string `yaml:"images"`
	Labels string `yaml:"labels"`

	// Channels, Height and Width give the sample shape of binary files.
	Channels int `yaml:"channels"`
	Height   int `yaml:"height"`
	Width    int `yaml:"width"`

	Mean float32 `yaml:"mean"`
	Std  float32 `yaml:"std"`

	// Samples is the size of a synthetic dataset.
	Samples int `yaml:"samples"`
}

// Arena sizes the per-minibatch region.
type Arena struct {
	// Bytes fixes the region size. When zero the region is the computed
	// per-minibatch footprint times SafetyFactor.
	Bytes        int     `yaml:"bytes"`
	SafetyFactor float64 `yaml:"safety_factor"`
}

// Backend configures the CPU kernels.
type Backend struct {
	Gemm    string `yaml:"gemm"`    // "blas" or "native"
	Workers int    `yaml:"workers"` // 0 selects one per logical core
}

// Log configures the logger.
type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Default returns the reference configuration for MNIST.
func Default() Config {
	return Config{
		Epochs:      4,
		BatchSize:   100,
		Seed:        42,
		DropoutSeed: 43,
		Optimizer: Optimizer{
			Kind: "sgd",
			LR:   0.0005,
			Clip: 1000,
		},
		Model: Model{
			Conv1Channels: 10,
			Conv2Channels: 20,
			KernelSize:    5,
			Hidden:        50,
			Classes:       10,
			KeepProb:      0.5,
		},
		Data: Data{
			Format:   FormatBinary,
			Images:   "../data/bin/mnist_train.bin",
			Labels:   "../data/bin/mnist_train_target.bin",
			Channels: 1,
			Height:   28,
			Width:    28,
			Mean:     dataset.MNISTNormalization.Mean,
			Std:      dataset.MNISTNormalization.Std,
			Samples:  1000,
		},
		Arena: Arena{
			SafetyFactor: 2,
		},
		Backend: Backend{
			Gemm: "blas",
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	//nolint:gosec // G304: config path comes from the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Marshal encodes the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks every field that has a constraint.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	check(c.Epochs > 0, "epochs must be positive, got %d", c.Epochs)
	check(c.BatchSize > 0, "batch_size must be positive, got %d", c.BatchSize)

	check(c.Optimizer.Kind == "" || c.Optimizer.Kind == "sgd" || c.Optimizer.Kind == "adam",
		"optimizer.kind must be sgd or adam, got %q", c.Optimizer.Kind)
	check(c.Optimizer.LR > 0, "optimizer.lr must be positive, got %v", c.Optimizer.LR)
	check(c.Optimizer.Clip >= 0, "optimizer.clip must not be negative, got %v", c.Optimizer.Clip)
	check(c.Optimizer.Momentum >= 0 && c.Optimizer.Momentum < 1, "optimizer.momentum must be in [0, 1), got %v", c.Optimizer.Momentum)

	check(c.Model.Conv1Channels > 0 && c.Model.Conv2Channels > 0, "model channels must be positive")
	check(c.Model.KernelSize > 0, "model.kernel_size must be positive, got %d", c.Model.KernelSize)
	check(c.Model.Hidden > 0, "model.hidden must be positive, got %d", c.Model.Hidden)
	check(c.Model.Classes > 1, "model.classes must be at least 2, got %d", c.Model.Classes)
	check(c.Model.KeepProb > 0 && c.Model.KeepProb <= 1, "model.keep_prob must be in (0, 1], got %v", c.Model.KeepProb)

	switch c.Data.Format {
	case FormatBinary, FormatIDX:
		check(c.Data.Images != "" && c.Data.Labels != "", "data.images and data.labels are required for format %q", c.Data.Format)
	case FormatSynthetic:
		check(c.Data.Samples > 0, "data.samples must be positive, got %d", c.Data.Samples)
	default:
		check(false, "data.format must be binary, idx or synthetic, got %q", c.Data.Format)
	}
	check(c.Data.Channels > 0 && c.Data.Height > 0 && c.Data.Width > 0,
		"data sample shape must be positive, got %dx%dx%d", c.Data.Channels, c.Data.Height, c.Data.Width)
	check(c.Data.Std >= 0, "data.std must not be negative, got %v", c.Data.Std)

	check(c.Arena.Bytes >= 0, "arena.bytes must not be negative, got %d", c.Arena.Bytes)
	check(c.Arena.Bytes > 0 || c.Arena.SafetyFactor >= 1, "arena.safety_factor must be at least 1, got %v", c.Arena.SafetyFactor)

	check(c.Backend.Gemm == "blas" || c.Backend.Gemm == "native", "backend.gemm must be blas or native, got %q", c.Backend.Gemm)
	check(c.Backend.Workers >= 0, "backend.workers must not be negative, got %d", c.Backend.Workers)

	check(c.Log.Format == "text" || c.Log.Format == "json", "log.format must be text or json, got %q", c.Log.Format)

	return errors.Join(errs...)
}
