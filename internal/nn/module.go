// Package nn implements the layers of the convolutional classifier and the
// pipeline that chains them.
//
// This package provides:
//   - Layer interface: forward, backward and arena footprint of one stage
//   - Parameter: heap-resident weights with their gradient accumulators
//   - Conv2D, ReLU, MaxPool2D, Flatten, Linear, Dropout: network stages
//   - LogSoftmaxNLL: per-sample loss head
//   - Sequential: container running the stages and their reverse pass
//
// Parameters live on the Go heap for the lifetime of the model. Every
// activation, gradient buffer and layer cache of a minibatch is carved out
// of the Context's arena and becomes invalid once the caller resets it.
package nn

import (
	"math/rand"

	"github.com/born-ml/convnet/internal/arena"
	"github.com/born-ml/convnet/internal/backend/cpu"
	"github.com/born-ml/convnet/internal/tensor"
)

// Layer is one stage of the pipeline.
//
// Forward reads in.Value and returns a new activation whose buffers come from
// ctx's arena. Backward reads out.Grad and accumulates into in.Grad (when it
// is not empty) and into the layer's parameter gradients. Any cache a layer
// keeps between the two calls is arena memory from the same minibatch.
type Layer interface {
	// Name identifies the layer in logs and parameter names.
	Name() string

	// OutputShape returns the activation shape produced for an input shape.
	OutputShape(in tensor.Shape) tensor.Shape

	// Footprint returns the arena bytes one Forward/Backward pair consumes
	// for the given input shape, including the output activation.
	Footprint(in tensor.Shape) int

	Forward(ctx *Context, in *Activation) *Activation
	Backward(ctx *Context, in, out *Activation)

	// Parameters returns the trainable parameters, or nil.
	Parameters() []*Parameter
}

// Activation pairs a forward value with its gradient accumulator.
// Grad is empty for activations that need no gradient (the input images).
type Activation struct {
	Value tensor.View
	Grad  tensor.View
}

// Context carries the per-minibatch state shared by all layers.
type Context struct {
	Arena   *arena.Arena
	Backend *cpu.CPUBackend

	// RNG drives dropout masks. It must be non-nil when Training is set.
	RNG *rand.Rand

	// Labels of the current minibatch, read by the loss head.
	Labels []int32

	// Training enables dropout. When false, Dropout is the identity.
	Training bool
}

// Floats allocates a zeroed view of the given shape from the arena.
func (c *Context) Floats(shape tensor.Shape) tensor.View {
	return tensor.NewView(c.Arena.Float32s(shape.NumElements()), shape)
}

// NewActivation allocates a value and a gradient buffer of the given shape.
func (c *Context) NewActivation(shape tensor.Shape) *Activation {
	return &Activation{
		Value: c.Floats(shape),
		Grad:  c.Floats(shape),
	}
}

// Input wraps a minibatch tensor that needs no gradient.
func Input(v tensor.View) *Activation {
	return &Activation{Value: v}
}

// releaser is implemented by layers that hold arena-backed caches between
// Forward and Backward.
type releaser interface {
	release()
}

const float32Size = 4

// activationBytes is the arena size of one value+grad pair.
func activationBytes(shape tensor.Shape) int {
	return 2 * float32Size * shape.NumElements()
}
