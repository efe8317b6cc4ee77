package cpu

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/convnet/internal/tensor"
)

// TestConv2D_BasicForward tests a 2x2 diagonal kernel on a 3x3 image.
func TestConv2D_BasicForward(t *testing.T) {
	backend := New()

	// 1 2 3
	// 4 5 6
	// 7 8 9
	input := fromSlice([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, 1, 1, 3, 3)
	// 1 0
	// 0 1
	kernel := fromSlice([]float32{1, 0, 0, 1}, 1, 1, 2, 2)
	bias := fromSlice([]float32{0}, 1)

	outShape := Conv2DOutputShape(input.Shape(), kernel.Shape())
	require.Equal(t, tensor.Shape{1, 1, 2, 2}, outShape)

	output := zeros(outShape...)
	cols := zeros(Conv2DColsShape(input.Shape(), kernel.Shape())...)
	backend.Conv2D(output, input, kernel, bias, cols)

	// Diagonal sums: 1+5, 2+6, 4+8, 5+9
	assert.Equal(t, []float32{6, 8, 12, 14}, output.Data())
}

// TestConv2D_Im2colLayout checks the column buffer is a pure gather.
func TestConv2D_Im2colLayout(t *testing.T) {
	backend := New()

	input := fromSlice([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, 1, 1, 3, 3)
	kernel := zeros(1, 1, 2, 2)
	bias := zeros(1)
	output := zeros(1, 1, 2, 2)
	cols := zeros(Conv2DColsShape(input.Shape(), kernel.Shape())...)
	backend.Conv2D(output, input, kernel, bias, cols)

	// Row (kh, kw) lists input(oh+kh, ow+kw) for the four output positions.
	assert.Equal(t, []float32{
		1, 2, 4, 5, // (0,0)
		2, 3, 5, 6, // (0,1)
		4, 5, 7, 8, // (1,0)
		5, 6, 8, 9, // (1,1)
	}, cols.Data())
}

// TestConv2D_BiasIsAccumulatedOnto checks the GEMM adds onto the bias fill.
func TestConv2D_BiasIsAccumulatedOnto(t *testing.T) {
	backend := New()

	input := fromSlice([]float32{1, 1, 1, 1}, 1, 1, 2, 2)
	kernel := fromSlice([]float32{1, 1, 1, 1, 0, 0, 0, 0}, 2, 1, 2, 2)
	bias := fromSlice([]float32{0.5, -3}, 2)
	output := fromSlice([]float32{99, 99}, 1, 2, 1, 1) // stale contents are overwritten by the bias fill
	cols := zeros(1, 4, 1)

	backend.Conv2D(output, input, kernel, bias, cols)
	assert.Equal(t, []float32{4.5, -3}, output.Data())
}

// TestConv2D_ImpulseKernel runs the first layer geometry (100 MNIST-sized
// images, 10 output channels, 5x5 kernels) with a single unit impulse and
// checks the analytic result: a shifted copy of the input plus bias.
func TestConv2D_ImpulseKernel(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for name, backend := range backends() {
		t.Run(name, func(t *testing.T) {
			input := randomView(rng, 100, 1, 28, 28)
			kernel := zeros(10, 1, 5, 5)
			kernel.Set(1, 0, 0, 2, 3) // channel 0: impulse at (2, 3)
			bias := zeros(10)
			bias.Set(0.5, 0)
			bias.Set(-1, 7)

			output := zeros(Conv2DOutputShape(input.Shape(), kernel.Shape())...)
			cols := zeros(Conv2DColsShape(input.Shape(), kernel.Shape())...)
			backend.Conv2D(output, input, kernel, bias, cols)

			require.Equal(t, tensor.Shape{100, 10, 24, 24}, output.Shape())
			for _, n := range []int{0, 41, 99} {
				for oh := 0; oh < 24; oh++ {
					for ow := 0; ow < 24; ow++ {
						want := input.At(n, 0, oh+2, ow+3) + 0.5
						assert.InDelta(t, want, output.At(n, 0, oh, ow), 1e-6)
					}
				}
				// Zero kernels leave only the bias.
				assert.Equal(t, float32(-1), output.At(n, 7, 11, 5))
				assert.Equal(t, float32(0), output.At(n, 3, 0, 0))
			}
		})
	}
}

// TestConv2D_MatchesDirect compares im2col+GEMM with a direct convolution.
func TestConv2D_MatchesDirect(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	for name, backend := range backends() {
		t.Run(name, func(t *testing.T) {
			input := randomView(rng, 3, 4, 12, 12)
			kernel := randomView(rng, 5, 4, 5, 5)
			bias := randomView(rng, 5)

			output := zeros(Conv2DOutputShape(input.Shape(), kernel.Shape())...)
			cols := zeros(Conv2DColsShape(input.Shape(), kernel.Shape())...)
			backend.Conv2D(output, input, kernel, bias, cols)

			want := directConv2D(input, kernel, bias)
			assert.InDeltaSlice(t, toFloat64(want.Data()), toFloat64(output.Data()), 1e-4)
		})
	}
}

func TestConv2D_ShapeValidation(t *testing.T) {
	backend := New()

	assert.Panics(t, func() {
		Conv2DOutputShape(tensor.Shape{1, 2, 5, 5}, tensor.Shape{1, 3, 3, 3})
	}, "channel mismatch")
	assert.Panics(t, func() {
		Conv2DOutputShape(tensor.Shape{1, 1, 3, 3}, tensor.Shape{1, 1, 5, 5})
	}, "kernel larger than input")
	assert.Panics(t, func() {
		backend.Conv2D(zeros(1, 1, 2, 2), zeros(1, 1, 4, 4), zeros(1, 1, 2, 2), zeros(1), zeros(1, 4, 9))
	}, "wrong output shape")
}

// TestConv2DBackward_Accumulates checks gradients are added to existing values.
func TestConv2DBackward_Accumulates(t *testing.T) {
	backend := New()

	input := fromSlice([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, 1, 1, 3, 3)
	kernel := fromSlice([]float32{1, 0, 0, 1}, 1, 1, 2, 2)
	bias := zeros(1)
	output := zeros(1, 1, 2, 2)
	cols := zeros(1, 4, 4)
	backend.Conv2D(output, input, kernel, bias, cols)

	outGrad := fromSlice([]float32{1, 1, 1, 1}, 1, 1, 2, 2)
	inGrad := zeros(1, 1, 3, 3)
	kGrad := fromSlice([]float32{100, 100, 100, 100}, 1, 1, 2, 2)
	bGrad := fromSlice([]float32{10}, 1)

	backend.Conv2DBackward(inGrad, kGrad, bGrad, outGrad, kernel, cols, zeros(4, 4))

	// dK(kh,kw) = Σ input(oh+kh, ow+kw): 1+2+4+5, 2+3+5+6, 4+5+7+8, 5+6+8+9
	assert.Equal(t, []float32{112, 116, 124, 128}, kGrad.Data())
	assert.Equal(t, []float32{14}, bGrad.Data())
	// Each input cell receives one unit per diagonal kernel tap covering it.
	assert.Equal(t, []float32{
		1, 1, 0,
		1, 2, 1,
		0, 1, 1,
	}, inGrad.Data())
}

func TestConv2DBackward_SkipsInputGrad(t *testing.T) {
	backend := New()
	rng := rand.New(rand.NewSource(5))

	input := randomView(rng, 2, 1, 6, 6)
	kernel := randomView(rng, 3, 1, 3, 3)
	cols := zeros(Conv2DColsShape(input.Shape(), kernel.Shape())...)
	output := zeros(Conv2DOutputShape(input.Shape(), kernel.Shape())...)
	backend.Conv2D(output, input, kernel, zeros(3), cols)

	kGrad := zeros(3, 1, 3, 3)
	assert.NotPanics(t, func() {
		backend.Conv2DBackward(tensor.View{}, kGrad, zeros(3), randomView(rng, 2, 3, 4, 4), kernel, cols, tensor.View{})
	})
	assert.NotZero(t, dot(kGrad.Data(), kGrad.Data()))
}
