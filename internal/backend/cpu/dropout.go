package cpu

import "fmt"

// Uniform is a source of uniform samples in [0, 1).
// *math/rand.Rand satisfies it.
type Uniform interface {
	Float32() float32
}

// Dropout applies inverted dropout.
//
// For each element one uniform sample is drawn: with probability keepProb
// the element is kept and scaled by 1/keepProb, otherwise it is zeroed. The
// scale actually applied (0 or 1/keepProb) is written to mask for the
// backward pass.
func (cpu *CPUBackend) Dropout(output, mask, input []float32, keepProb float32, rng Uniform) {
	if len(output) != len(input) || len(mask) != len(input) {
		panic("dropout: length mismatch")
	}
	if keepProb <= 0 || keepProb > 1 {
		panic(fmt.Sprintf("dropout: keep probability %v out of (0, 1]", keepProb))
	}
	scale := 1 / keepProb
	for i, x := range input {
		if rng.Float32() < keepProb {
			output[i] = x * scale
			mask[i] = scale
		} else {
			output[i] = 0
			mask[i] = 0
		}
	}
}

// DropoutBackward accumulates outputGrad × mask into inputGrad.
func (cpu *CPUBackend) DropoutBackward(inputGrad, outputGrad, mask []float32) {
	if len(inputGrad) != len(mask) || len(outputGrad) != len(mask) {
		panic("DropoutBackward: length mismatch")
	}
	for i, m := range mask {
		inputGrad[i] += outputGrad[i] * m
	}
}
