package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/convnet/internal/backend/cpu"
	"github.com/born-ml/convnet/internal/tensor"
)

// Conv2D is a stride-1, unpadded 2D convolutional layer.
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels, kernel, kernel]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, height-kernel+1, width-kernel+1]
//
// The im2col buffer built by Forward is kept for Backward, where it serves
// as the right-hand side of the weight gradient GEMM.
type Conv2D struct {
	name        string
	inChannels  int
	outChannels int
	kernelSize  int

	weight *Parameter
	bias   *Parameter

	cols tensor.View // [batch, in*k*k, out_h*out_w], valid until the arena reset
}

// NewConv2D creates a convolution with fan-in uniform weights and zero bias.
//
// Example:
//
//	// 1 channel -> 10 channels, 5x5 kernel
//	conv := nn.NewConv2D("conv1", 1, 10, 5, rng)
//	out := conv.Forward(ctx, nn.Input(images)) // [N, 10, 24, 24]
func NewConv2D(name string, inChannels, outChannels, kernelSize int, rng *rand.Rand) *Conv2D {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size %d", kernelSize))
	}

	weight := NewParameter(name+".weight", tensor.Shape{outChannels, inChannels, kernelSize, kernelSize})
	FanInUniform(weight, inChannels*kernelSize*kernelSize, rng)

	return &Conv2D{
		name:        name,
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		weight:      weight,
		bias:        NewParameter(name+".bias", tensor.Shape{outChannels}),
	}
}

// Name returns the layer name.
func (c *Conv2D) Name() string { return c.name }

// Weight returns the weight parameter.
func (c *Conv2D) Weight() *Parameter { return c.weight }

// Bias returns the bias parameter.
func (c *Conv2D) Bias() *Parameter { return c.bias }

// OutputShape returns [N, out_channels, H-k+1, W-k+1].
func (c *Conv2D) OutputShape(in tensor.Shape) tensor.Shape {
	return cpu.Conv2DOutputShape(in, c.weight.value.Shape())
}

// Footprint covers the output activation, the im2col buffer and the
// per-sample column gradient scratch.
func (c *Conv2D) Footprint(in tensor.Shape) int {
	cols := cpu.Conv2DColsShape(in, c.weight.value.Shape())
	return activationBytes(c.OutputShape(in)) +
		float32Size*cols.NumElements() +
		float32Size*cols[1]*cols[2]
}

// Forward computes the convolution and keeps the im2col buffer.
func (c *Conv2D) Forward(ctx *Context, in *Activation) *Activation {
	inShape := in.Value.Shape()
	if len(inShape) != 4 || inShape[1] != c.inChannels {
		panic(fmt.Sprintf("%s: expected input [N,%d,H,W], got %v", c.name, c.inChannels, inShape))
	}

	out := ctx.NewActivation(c.OutputShape(inShape))
	c.cols = ctx.Floats(cpu.Conv2DColsShape(inShape, c.weight.value.Shape()))
	ctx.Backend.Conv2D(out.Value, in.Value, c.weight.value, c.bias.value, c.cols)
	return out
}

// Backward accumulates weight, bias and (if requested) input gradients.
func (c *Conv2D) Backward(ctx *Context, in, out *Activation) {
	if c.cols.Empty() {
		panic(c.name + ": Backward called without Forward")
	}
	var colGrad tensor.View
	if !in.Grad.Empty() {
		s := c.cols.Shape()
		colGrad = ctx.Floats(tensor.Shape{s[1], s[2]})
	}
	ctx.Backend.Conv2DBackward(in.Grad, c.weight.grad, c.bias.grad, out.Grad, c.weight.value, c.cols, colGrad)
}

// Parameters returns weight and bias.
func (c *Conv2D) Parameters() []*Parameter {
	return []*Parameter{c.weight, c.bias}
}

func (c *Conv2D) release() { c.cols = tensor.View{} }
