// Package cpu implements the flat-buffer CPU kernels of the training pipeline.
//
// Every kernel writes into caller-provided buffers (normally carved from the
// arena); nothing here allocates per call except the goroutines of a
// parallel GEMM. Shape violations are programmer errors and panic.
package cpu

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/convnet/internal/parallel"
)

// GemmKind selects the matrix multiply implementation.
type GemmKind string

// Supported GEMM implementations.
const (
	GemmBLAS   GemmKind = "blas"   // gonum Sgemm
	GemmNative GemmKind = "native" // row-parallel Go loops
)

// Config controls the backend.
type Config struct {
	Gemm     GemmKind
	Parallel parallel.Config
}

// DefaultConfig uses gonum BLAS and one worker per logical core.
func DefaultConfig() Config {
	par := parallel.DefaultConfig()
	par.NumWorkers = DefaultWorkers()
	par.Enabled = par.NumWorkers > 1
	return Config{Gemm: GemmBLAS, Parallel: par}
}

// CPUBackend runs the kernels on the host CPU.
type CPUBackend struct {
	gemm GemmKind
	par  parallel.Config
	blas blas.Float32
}

// New creates a CPU backend with DefaultConfig.
func New() *CPUBackend {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a CPU backend. An empty Gemm selects BLAS.
func NewWithConfig(cfg Config) *CPUBackend {
	if cfg.Gemm == "" {
		cfg.Gemm = GemmBLAS
	}
	if cfg.Parallel.NumWorkers <= 0 {
		cfg.Parallel.NumWorkers = 1
		cfg.Parallel.Enabled = false
	}
	return &CPUBackend{
		gemm: cfg.Gemm,
		par:  cfg.Parallel,
		blas: blas32.Implementation(),
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU/" + string(cpu.gemm)
}

// GemmKind reports which GEMM implementation is active.
func (cpu *CPUBackend) GemmKind() GemmKind {
	return cpu.gemm
}
