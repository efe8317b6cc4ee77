package cpu

import (
	"math/rand"

	"github.com/born-ml/convnet/internal/tensor"
)

// backends returns one backend per GEMM implementation so kernels are
// checked against both.
func backends() map[string]*CPUBackend {
	native := DefaultConfig()
	native.Gemm = GemmNative
	return map[string]*CPUBackend{
		"blas":   New(),
		"native": NewWithConfig(native),
	}
}

func zeros(shape ...int) tensor.View {
	s := tensor.Shape(shape)
	return tensor.NewView(make([]float32, s.NumElements()), s)
}

func fromSlice(data []float32, shape ...int) tensor.View {
	return tensor.NewView(data, tensor.Shape(shape))
}

func randomView(rng *rand.Rand, shape ...int) tensor.View {
	v := zeros(shape...)
	for i := range v.Data() {
		v.Data()[i] = rng.Float32()*2 - 1
	}
	return v
}

func clone(v tensor.View) tensor.View {
	data := make([]float32, v.Len())
	copy(data, v.Data())
	return tensor.NewView(data, v.Shape())
}

// directConv2D is a straightforward reference convolution (stride 1, no padding).
func directConv2D(input, weight, bias tensor.View) tensor.View {
	out := zeros(Conv2DOutputShape(input.Shape(), weight.Shape())...)
	N, CIn := input.Dim(0), input.Dim(1)
	COut, KH, KW := weight.Dim(0), weight.Dim(2), weight.Dim(3)
	HOut, WOut := out.Dim(2), out.Dim(3)
	for n := 0; n < N; n++ {
		for co := 0; co < COut; co++ {
			for oh := 0; oh < HOut; oh++ {
				for ow := 0; ow < WOut; ow++ {
					sum := bias.At(co)
					for ci := 0; ci < CIn; ci++ {
						for kh := 0; kh < KH; kh++ {
							for kw := 0; kw < KW; kw++ {
								sum += weight.At(co, ci, kh, kw) * input.At(n, ci, oh+kh, ow+kw)
							}
						}
					}
					out.Set(sum, n, co, oh, ow)
				}
			}
		}
	}
	return out
}

// dot returns Σ a·b in float64.
func dot(a, b []float32) float64 {
	s := 0.0
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func fromFloat64(dst []float32, src []float64) {
	for i, x := range src {
		dst[i] = float32(x)
	}
}
