package cpu

import (
	"fmt"
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// DefaultWorkers returns the number of GEMM workers to use: one per logical
// core as reported by cpuid, falling back to runtime.NumCPU.
func DefaultWorkers() int {
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return min(n, runtime.NumCPU())
	}
	return runtime.NumCPU()
}

// Features summarizes the host CPU for the startup log.
func Features() string {
	brand := cpuid.CPU.BrandName
	if brand == "" {
		brand = runtime.GOARCH
	}
	return fmt.Sprintf("%s (cores=%d threads=%d avx2=%t avx512f=%t fma3=%t asimd=%t)",
		brand,
		cpuid.CPU.PhysicalCores,
		cpuid.CPU.LogicalCores,
		cpuid.CPU.Supports(cpuid.AVX2),
		cpuid.CPU.Supports(cpuid.AVX512F),
		cpuid.CPU.Supports(cpuid.FMA3),
		cpuid.CPU.Supports(cpuid.ASIMD),
	)
}
