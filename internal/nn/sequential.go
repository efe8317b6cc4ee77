package nn

import (
	"fmt"

	"github.com/born-ml/convnet/internal/tensor"
)

// Sequential chains layers: each layer's output is the next layer's input.
//
// Forward records every intermediate activation so Backward can walk the
// chain in reverse. The recorded activations live in the Context's arena;
// call Release before resetting it.
//
// Example:
//
//	model := nn.NewSequential(
//	    nn.NewLinear("fc1", 784, 128, rng),
//	    nn.NewReLU("relu"),
//	    nn.NewLinear("fc2", 128, 10, rng),
//	    nn.NewLogSoftmaxNLL("loss"),
//	)
type Sequential struct {
	layers []Layer
	acts   []*Activation // acts[0] is the input, acts[i+1] the output of layers[i]
}

// NewSequential creates a new Sequential container.
func NewSequential(layers ...Layer) *Sequential {
	return &Sequential{layers: layers}
}

// Layers returns the layers in execution order.
func (s *Sequential) Layers() []Layer {
	return s.layers
}

// Len returns the number of layers.
func (s *Sequential) Len() int {
	return len(s.layers)
}

// OutputShape returns the shape produced by the last layer.
func (s *Sequential) OutputShape(in tensor.Shape) tensor.Shape {
	shape := in
	for _, l := range s.layers {
		shape = l.OutputShape(shape)
	}
	return shape
}

// Footprint returns the arena bytes a full Forward/Backward pass consumes
// for the given input shape.
func (s *Sequential) Footprint(in tensor.Shape) int {
	total := 0
	shape := in
	for _, l := range s.layers {
		total += l.Footprint(shape)
		shape = l.OutputShape(shape)
	}
	return total
}

// Forward runs all layers and returns the last activation.
func (s *Sequential) Forward(ctx *Context, input *Activation) *Activation {
	s.acts = append(s.acts[:0], input)
	out := input
	for _, l := range s.layers {
		out = l.Forward(ctx, out)
		s.acts = append(s.acts, out)
	}
	return out
}

// Backward propagates the gradient stored in the last activation down to
// the input, accumulating parameter gradients on the way. The caller seeds
// the last activation's Grad before calling it.
func (s *Sequential) Backward(ctx *Context) {
	if len(s.acts) != len(s.layers)+1 {
		panic("sequential: Backward called without Forward")
	}
	for i := len(s.layers) - 1; i >= 0; i-- {
		s.layers[i].Backward(ctx, s.acts[i], s.acts[i+1])
	}
}

// Activation returns the input of layer i, or the final output for
// i == Len(). It is only valid between Forward and Release.
func (s *Sequential) Activation(i int) *Activation {
	if i < 0 || i >= len(s.acts) {
		panic(fmt.Sprintf("sequential: activation %d out of range [0,%d)", i, len(s.acts)))
	}
	return s.acts[i]
}

// Parameters returns all trainable parameters in layer order.
func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter
	for _, l := range s.layers {
		params = append(params, l.Parameters()...)
	}
	return params
}

// Release drops every reference to arena memory held by the container and
// its layers.
func (s *Sequential) Release() {
	clear(s.acts)
	s.acts = s.acts[:0]
	for _, l := range s.layers {
		if r, ok := l.(releaser); ok {
			r.release()
		}
	}
}
