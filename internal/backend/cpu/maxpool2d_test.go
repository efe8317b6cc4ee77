package cpu

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/convnet/internal/tensor"
)

// TestMaxPool2D_BasicForward tests basic max pooling correctness.
func TestMaxPool2D_BasicForward(t *testing.T) {
	backend := New()

	// Input: [1, 1, 4, 4] with sequential values 1-16
	data := make([]float32, 16)
	for i := range data {
		data[i] = float32(i + 1)
	}
	input := fromSlice(data, 1, 1, 4, 4)

	outShape := MaxPool2DOutputShape(input.Shape(), 2, 2)
	require.Equal(t, tensor.Shape{1, 1, 2, 2}, outShape)

	output := zeros(outShape...)
	indices := make([]int32, output.Len())
	backend.MaxPool2D(output, indices, input, 2, 2)

	assert.Equal(t, []float32{6, 8, 14, 16}, output.Data())
	assert.Equal(t, []int32{5, 7, 13, 15}, indices)
}

// TestMaxPool2D_AbsoluteIndices checks indices address the whole batch buffer.
func TestMaxPool2D_AbsoluteIndices(t *testing.T) {
	backend := New()

	input := zeros(2, 3, 2, 2)
	// Put the max of every plane in a different corner.
	for n := 0; n < 2; n++ {
		for c := 0; c < 3; c++ {
			input.Set(1, n, c, (n+c)%2, c%2)
		}
	}
	output := zeros(2, 3, 1, 1)
	indices := make([]int32, 6)
	backend.MaxPool2D(output, indices, input, 2, 2)

	for n := 0; n < 2; n++ {
		for c := 0; c < 3; c++ {
			i := n*3 + c
			assert.Equal(t, int32(input.Offset(n, c, (n+c)%2, c%2)), indices[i])
			assert.Equal(t, float32(1), output.Data()[i])
		}
	}
}

// TestMaxPool2D_TieBreak checks the first maximum in row-major order wins.
func TestMaxPool2D_TieBreak(t *testing.T) {
	backend := New()

	tests := []struct {
		name   string
		window []float32
		want   int32
	}{
		{"all equal", []float32{3, 3, 3, 3}, 0},
		{"tie on second row", []float32{1, 2, 5, 5}, 2},
		{"tie top right and bottom left", []float32{0, 7, 7, 1}, 1},
		{"all negative", []float32{-4, -2, -3, -2}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := zeros(1, 1, 1, 1)
			indices := make([]int32, 1)
			backend.MaxPool2D(output, indices, fromSlice(tt.window, 1, 1, 2, 2), 2, 2)
			assert.Equal(t, tt.want, indices[0])
			assert.Equal(t, tt.window[tt.want], output.Data()[0])
		})
	}
}

// TestMaxPool2DBackward_RoutesToSinglePosition checks each window's gradient
// lands on exactly one input cell and the other three get nothing.
func TestMaxPool2DBackward_RoutesToSinglePosition(t *testing.T) {
	backend := New()
	rng := rand.New(rand.NewSource(11))

	input := randomView(rng, 4, 3, 8, 8)
	outShape := MaxPool2DOutputShape(input.Shape(), 2, 2)
	output := zeros(outShape...)
	indices := make([]int32, output.Len())
	backend.MaxPool2D(output, indices, input, 2, 2)

	outGrad := zeros(outShape...)
	for i := range outGrad.Data() {
		outGrad.Data()[i] = float32(i + 1)
	}
	inGrad := zeros(input.Shape()...)
	backend.MaxPool2DBackward(inGrad, outGrad, indices)

	for n := 0; n < 4; n++ {
		for c := 0; c < 3; c++ {
			for oh := 0; oh < 4; oh++ {
				for ow := 0; ow < 4; ow++ {
					g := outGrad.At(n, c, oh, ow)
					nonZero := 0
					for kh := 0; kh < 2; kh++ {
						for kw := 0; kw < 2; kw++ {
							off := input.Offset(n, c, 2*oh+kh, 2*ow+kw)
							v := inGrad.Data()[off]
							if v != 0 {
								nonZero++
								assert.Equal(t, g, v)
								assert.Equal(t, int32(off), indices[outGrad.Offset(n, c, oh, ow)])
								assert.Equal(t, output.At(n, c, oh, ow), input.Data()[off])
							}
						}
					}
					assert.Equal(t, 1, nonZero, "window (%d,%d,%d,%d)", n, c, oh, ow)
				}
			}
		}
	}
}

func TestMaxPool2DBackward_Accumulates(t *testing.T) {
	backend := New()

	inGrad := fromSlice([]float32{1, 1, 1, 1}, 1, 1, 2, 2)
	outGrad := fromSlice([]float32{5}, 1, 1, 1, 1)
	backend.MaxPool2DBackward(inGrad, outGrad, []int32{3})
	assert.Equal(t, []float32{1, 1, 1, 6}, inGrad.Data())
}

func TestMaxPool2D_Validation(t *testing.T) {
	assert.Panics(t, func() { MaxPool2DOutputShape(tensor.Shape{1, 1, 4}, 2, 2) })
	assert.Panics(t, func() { MaxPool2DOutputShape(tensor.Shape{1, 1, 4, 4}, 0, 2) })
	assert.Panics(t, func() { MaxPool2DOutputShape(tensor.Shape{1, 1, 1, 4}, 2, 2) })
	assert.Panics(t, func() {
		New().MaxPool2D(zeros(1, 1, 2, 2), make([]int32, 3), zeros(1, 1, 4, 4), 2, 2)
	})
}
