package cpu

import (
	"github.com/born-ml/convnet/internal/tensor"
)

// Conv2DBackward accumulates the gradients of a Conv2D call.
//
// Given outputGrad [N, C_out, H_out, W_out] and the cols buffer filled by the
// forward pass:
//   - weightGrad [C_out, C_in, K_h, K_w] += outputGrad · colsᵗ, summed over samples
//   - biasGrad [C_out] += sum of outputGrad over every spatial position
//   - inputGrad [N, C_in, H, W] += col2im(weightᵗ · outputGrad)
//
// inputGrad may be empty (first layer), in which case the input gradient is
// skipped and colGrad is unused. Otherwise colGrad is a [C_in*K_h*K_w,
// H_out*W_out] scratch buffer reused for every sample.
//
// All three outputs are accumulated (+=), never overwritten.
func (cpu *CPUBackend) Conv2DBackward(inputGrad, weightGrad, biasGrad, outputGrad, weight, cols, colGrad tensor.View) {
	colsShape := cols.Shape()
	weightShape := weight.Shape()
	if len(colsShape) != 3 || len(weightShape) != 4 {
		panic("Conv2DBackward: cols must be 3D and weight 4D")
	}
	n := colsShape[0]
	cOut := weightShape[0]
	patch := colsShape[1]
	spatial := colsShape[2]

	checkShape("Conv2DBackward", "weightGrad", weightGrad.Shape(), weightShape)
	checkShape("Conv2DBackward", "biasGrad", biasGrad.Shape(), tensor.Shape{cOut})
	if outputGrad.Len() != n*cOut*spatial || outputGrad.Dim(0) != n {
		panic("Conv2DBackward: outputGrad does not match cols")
	}

	var d convDims
	if !inputGrad.Empty() {
		d = newConvDims(inputGrad.Shape(), weightShape)
		if d.Patch != patch || d.OutSpatial != spatial {
			panic("Conv2DBackward: inputGrad does not match cols")
		}
		checkShape("Conv2DBackward", "colGrad", colGrad.Shape(), tensor.Shape{patch, spatial})
	}

	weightData := weight.Data()
	weightGradData := weightGrad.Data()
	biasGradData := biasGrad.Data()

	for s := 0; s < n; s++ {
		g := outputGrad.Index(s).Data()

		for c := 0; c < cOut; c++ {
			sum := float32(0)
			for _, v := range g[c*spatial : (c+1)*spatial] {
				sum += v
			}
			biasGradData[c] += sum
		}

		// weightGrad [C_out, patch] += g [C_out, S] · colᵗ [S, patch]
		cpu.Gemm(false, true, cOut, patch, spatial,
			1, g, spatial,
			cols.Index(s).Data(), spatial,
			1, weightGradData, patch)

		if inputGrad.Empty() {
			continue
		}

		// colGrad [patch, S] = weightᵗ [patch, C_out] · g [C_out, S]
		cg := colGrad.Data()
		cpu.Gemm(true, false, patch, spatial, cOut,
			1, weightData, patch,
			g, spatial,
			0, cg, spatial)
		col2im(inputGrad.Index(s).Data(), cg, d)
	}
}
