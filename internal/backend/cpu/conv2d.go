package cpu

import (
	"fmt"

	"github.com/born-ml/convnet/internal/tensor"
)

// convDims holds the geometry of a stride-1, unpadded convolution.
type convDims struct {
	N, CIn, H, W      int
	COut, KH, KW      int
	HOut, WOut        int
	Patch, OutSpatial int
}

func newConvDims(inShape, weightShape tensor.Shape) convDims {
	if len(inShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %dD", len(inShape)))
	}
	if len(weightShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", len(weightShape)))
	}
	d := convDims{
		N: inShape[0], CIn: inShape[1], H: inShape[2], W: inShape[3],
		COut: weightShape[0], KH: weightShape[2], KW: weightShape[3],
	}
	if weightShape[1] != d.CIn {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", d.CIn, weightShape[1]))
	}
	d.HOut = d.H - d.KH + 1
	d.WOut = d.W - d.KW + 1
	if d.HOut <= 0 || d.WOut <= 0 {
		panic(fmt.Sprintf("conv2d: kernel %dx%d larger than input %dx%d", d.KH, d.KW, d.H, d.W))
	}
	d.Patch = d.CIn * d.KH * d.KW
	d.OutSpatial = d.HOut * d.WOut
	return d
}

func checkShape(op, name string, got, want tensor.Shape) {
	if !got.Equal(want) {
		panic(fmt.Sprintf("%s: %s shape %v, want %v", op, name, got, want))
	}
}

// Conv2DOutputShape returns [N, C_out, H-K_h+1, W-K_w+1].
func Conv2DOutputShape(inShape, weightShape tensor.Shape) tensor.Shape {
	d := newConvDims(inShape, weightShape)
	return tensor.Shape{d.N, d.COut, d.HOut, d.WOut}
}

// Conv2DColsShape returns the im2col scratch shape [N, C_in*K_h*K_w, H_out*W_out].
func Conv2DColsShape(inShape, weightShape tensor.Shape) tensor.Shape {
	d := newConvDims(inShape, weightShape)
	return tensor.Shape{d.N, d.Patch, d.OutSpatial}
}

// Conv2D performs a stride-1, unpadded 2D convolution using im2col.
//
// Shapes:
//   - input:  [N, C_in, H, W]
//   - weight: [C_out, C_in, K_h, K_w]
//   - bias:   [C_out]
//   - output: [N, C_out, H_out, W_out]
//   - cols:   [N, C_in*K_h*K_w, H_out*W_out], scratch kept for the backward pass
//
// Per sample, each output channel plane is first filled with its bias, the
// input patches are gathered into cols, and a single GEMM
// [C_out, patch] × [patch, H_out*W_out] is accumulated onto the output
// (beta = 1), so the bias is added to, never overwritten.
func (cpu *CPUBackend) Conv2D(output, input, weight, bias, cols tensor.View) {
	d := newConvDims(input.Shape(), weight.Shape())
	checkShape("conv2d", "bias", bias.Shape(), tensor.Shape{d.COut})
	checkShape("conv2d", "output", output.Shape(), tensor.Shape{d.N, d.COut, d.HOut, d.WOut})
	checkShape("conv2d", "cols", cols.Shape(), tensor.Shape{d.N, d.Patch, d.OutSpatial})

	biasData := bias.Data()
	weightData := weight.Data()

	for n := 0; n < d.N; n++ {
		out := output.Index(n).Data()
		for c := 0; c < d.COut; c++ {
			plane := out[c*d.OutSpatial : (c+1)*d.OutSpatial]
			b := biasData[c]
			for i := range plane {
				plane[i] = b
			}
		}

		col := cols.Index(n).Data()
		im2col(col, input.Index(n).Data(), d)

		cpu.Gemm(false, false, d.COut, d.OutSpatial, d.Patch,
			1, weightData, d.Patch,
			col, d.OutSpatial,
			1, out, d.OutSpatial)
	}
}

// im2col gathers one sample's patches into col [patch, H_out*W_out].
//
// Row (c, kh, kw) of col holds, for every output position (oh, ow), the input
// value at (c, oh+kh, ow+kw). With stride 1 each output row maps to a
// contiguous input run, so the gather is a sequence of copies.
func im2col(col, in []float32, d convDims) {
	for c := 0; c < d.CIn; c++ {
		// Pre-slice channel plane
		plane := in[c*d.H*d.W : (c+1)*d.H*d.W]
		for kh := 0; kh < d.KH; kh++ {
			for kw := 0; kw < d.KW; kw++ {
				row := (c*d.KH+kh)*d.KW + kw
				dst := col[row*d.OutSpatial : (row+1)*d.OutSpatial]
				for oh := 0; oh < d.HOut; oh++ {
					src := (oh+kh)*d.W + kw
					copy(dst[oh*d.WOut:(oh+1)*d.WOut], plane[src:src+d.WOut])
				}
			}
		}
	}
}

// col2im scatter-adds a column gradient [patch, H_out*W_out] back onto one
// sample's input gradient, using the same offsets as im2col.
func col2im(in, col []float32, d convDims) {
	for c := 0; c < d.CIn; c++ {
		plane := in[c*d.H*d.W : (c+1)*d.H*d.W]
		for kh := 0; kh < d.KH; kh++ {
			for kw := 0; kw < d.KW; kw++ {
				row := (c*d.KH+kh)*d.KW + kw
				src := col[row*d.OutSpatial : (row+1)*d.OutSpatial]
				for oh := 0; oh < d.HOut; oh++ {
					dst := plane[(oh+kh)*d.W+kw : (oh+kh)*d.W+kw+d.WOut]
					for ow, g := range src[oh*d.WOut : (oh+1)*d.WOut] {
						dst[ow] += g
					}
				}
			}
		}
	}
}
