package cpu

import (
	"fmt"

	"github.com/born-ml/convnet/internal/tensor"
)

func linearDims(op string, input, weight tensor.View) (batch, in, out int) {
	if input.Rank() != 2 || weight.Rank() != 2 {
		panic(fmt.Sprintf("%s: input and weight must be 2D, got %dD and %dD", op, input.Rank(), weight.Rank()))
	}
	batch, in = input.Dim(0), input.Dim(1)
	if weight.Dim(0) != in {
		panic(fmt.Sprintf("%s: shape mismatch [%d,%d] @ %v", op, batch, in, weight.Shape()))
	}
	return batch, in, weight.Dim(1)
}

// Linear computes output [N, out] = input [N, in] · weight [in, out] + bias [out].
func (cpu *CPUBackend) Linear(output, input, weight, bias tensor.View) {
	batch, in, out := linearDims("linear", input, weight)
	checkShape("linear", "bias", bias.Shape(), tensor.Shape{out})
	checkShape("linear", "output", output.Shape(), tensor.Shape{batch, out})

	outData := output.Data()
	cpu.Gemm(false, false, batch, out, in,
		1, input.Data(), in,
		weight.Data(), out,
		0, outData, out)

	biasData := bias.Data()
	for n := 0; n < batch; n++ {
		row := outData[n*out : (n+1)*out]
		for j, b := range biasData {
			row[j] += b
		}
	}
}

// LinearBackward accumulates the gradients of a Linear call:
//   - weightGrad += inputᵗ · outputGrad
//   - biasGrad += column sums of outputGrad
//   - inputGrad += outputGrad · weightᵗ (skipped when inputGrad is empty)
func (cpu *CPUBackend) LinearBackward(inputGrad, weightGrad, biasGrad, outputGrad, input, weight tensor.View) {
	batch, in, out := linearDims("LinearBackward", input, weight)
	checkShape("LinearBackward", "outputGrad", outputGrad.Shape(), tensor.Shape{batch, out})
	checkShape("LinearBackward", "weightGrad", weightGrad.Shape(), weight.Shape())
	checkShape("LinearBackward", "biasGrad", biasGrad.Shape(), tensor.Shape{out})

	g := outputGrad.Data()

	if !inputGrad.Empty() {
		checkShape("LinearBackward", "inputGrad", inputGrad.Shape(), input.Shape())
		cpu.Gemm(false, true, batch, in, out,
			1, g, out,
			weight.Data(), out,
			1, inputGrad.Data(), in)
	}

	cpu.Gemm(true, false, in, out, batch,
		1, input.Data(), in,
		g, out,
		1, weightGrad.Data(), out)

	biasGradData := biasGrad.Data()
	for n := 0; n < batch; n++ {
		for j, v := range g[n*out : (n+1)*out] {
			biasGradData[j] += v
		}
	}
}
