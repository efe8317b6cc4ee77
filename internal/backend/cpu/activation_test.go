package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReLU(t *testing.T) {
	backend := New()

	input := []float32{-2, -0.5, 0, 0.5, 3}
	output := make([]float32, len(input))
	backend.ReLU(output, input)
	assert.Equal(t, []float32{0, 0, 0, 0.5, 3}, output)
}

// TestReLUBackward_UsesPreActivation checks the mask comes from the forward
// input, including zero inputs that produced a zero output.
func TestReLUBackward_UsesPreActivation(t *testing.T) {
	backend := New()

	input := []float32{-2, 0, 0.5, 3}
	outGrad := []float32{10, 20, 30, 40}
	inGrad := []float32{1, 1, 1, 1}
	backend.ReLUBackward(inGrad, outGrad, input)
	assert.Equal(t, []float32{1, 1, 31, 41}, inGrad)
}

func TestReLU_LengthMismatch(t *testing.T) {
	backend := New()
	assert.Panics(t, func() { backend.ReLU(make([]float32, 2), make([]float32, 3)) })
	assert.Panics(t, func() { backend.ReLUBackward(make([]float32, 2), make([]float32, 2), make([]float32, 3)) })
}
