package cpu

import "fmt"

// ReLU computes output = max(input, 0) element-wise.
func (cpu *CPUBackend) ReLU(output, input []float32) {
	if len(output) != len(input) {
		panic(fmt.Sprintf("relu: length mismatch %d != %d", len(output), len(input)))
	}
	for i, x := range input {
		if x > 0 {
			output[i] = x
		} else {
			output[i] = 0
		}
	}
}

// ReLUBackward accumulates outputGrad into inputGrad where the forward input
// (the pre-activation) was positive.
func (cpu *CPUBackend) ReLUBackward(inputGrad, outputGrad, input []float32) {
	if len(inputGrad) != len(input) || len(outputGrad) != len(input) {
		panic("ReLUBackward: length mismatch")
	}
	for i, x := range input {
		if x > 0 {
			inputGrad[i] += outputGrad[i]
		}
	}
}
