package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"

	"github.com/born-ml/convnet/internal/parallel"
)

// Gemm computes C = alpha*op(A)*op(B) + beta*C on row-major matrices, where
// op(X) is X or Xᵗ. op(A) is m×k, op(B) is k×n and C is m×n; lda, ldb and
// ldc are row strides. With beta == 0 the prior contents of C are ignored.
//
// This is the only kernel allowed to run in parallel. Both implementations
// write each element of C exactly once per call.
func (cpu *CPUBackend) Gemm(
	transA, transB bool, m, n, k int,
	alpha float32, a []float32, lda int,
	b []float32, ldb int,
	beta float32, c []float32, ldc int,
) {
	if m < 0 || n < 0 || k < 0 {
		panic(fmt.Sprintf("gemm: negative dimension m=%d n=%d k=%d", m, n, k))
	}
	if m == 0 || n == 0 {
		return
	}

	switch cpu.gemm {
	case GemmNative:
		gemmNative(cpu.par, transA, transB, m, n, k, alpha, a, lda, b, ldb, beta, c, ldc)
	default:
		cpu.blas.Sgemm(transpose(transA), transpose(transB), m, n, k, alpha, a, lda, b, ldb, beta, c, ldc)
	}
}

// MatMul computes C = A·B for dense row-major A [m,k] and B [k,n].
func (cpu *CPUBackend) MatMul(c, a, b []float32, m, k, n int) {
	cpu.Gemm(false, false, m, n, k, 1, a, k, b, n, 0, c, n)
}

func transpose(t bool) blas.Transpose {
	if t {
		return blas.Trans
	}
	return blas.NoTrans
}

// gemmNative partitions rows of C into contiguous chunks, one goroutine each.
func gemmNative(
	cfg parallel.Config,
	transA, transB bool, m, n, k int,
	alpha float32, a []float32, lda int,
	b []float32, ldb int,
	beta float32, c []float32, ldc int,
) {
	// Rows are coarse work items; one row is already n*k multiply-adds.
	cfg.MinChunkSize = 1
	if m*n*k < 1<<14 {
		cfg.Enabled = false
	}

	parallel.ForChunks(m, func(start, end int) {
		for i := start; i < end; i++ {
			gemmRow(c[i*ldc:i*ldc+n], i, transA, transB, k, alpha, a, lda, b, ldb, beta)
		}
	}, cfg)
}

// gemmRow computes row i of C.
func gemmRow(crow []float32, i int, transA, transB bool, k int, alpha float32, a []float32, lda int, b []float32, ldb int, beta float32) {
	n := len(crow)
	switch beta {
	case 0:
		clear(crow)
	case 1:
	default:
		for j := range crow {
			crow[j] *= beta
		}
	}

	for p := 0; p < k; p++ {
		var aip float32
		if transA {
			aip = a[p*lda+i]
		} else {
			aip = a[i*lda+p]
		}
		aip *= alpha
		if aip == 0 {
			continue
		}
		if transB {
			for j := range crow {
				crow[j] += aip * b[j*ldb+p]
			}
		} else {
			brow := b[p*ldb : p*ldb+n]
			for j, bv := range brow {
				crow[j] += aip * bv
			}
		}
	}
}
