package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/convnet/internal/tensor"
)

// Linear is a fully connected layer: y = x·W + b.
//
// Input shape:  [batch, in_features]
// Weight shape: [in_features, out_features]
// Bias shape:   [out_features]
// Output shape: [batch, out_features]
type Linear struct {
	name        string
	inFeatures  int
	outFeatures int

	weight *Parameter
	bias   *Parameter
}

// NewLinear creates a fully connected layer with fan-in uniform weights and
// zero bias.
//
// Example:
//
//	fc := nn.NewLinear("fc1", 320, 50, rng)
//	out := fc.Forward(ctx, in) // [N, 320] -> [N, 50]
func NewLinear(name string, inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("linear: invalid features in=%d, out=%d", inFeatures, outFeatures))
	}

	weight := NewParameter(name+".weight", tensor.Shape{inFeatures, outFeatures})
	FanInUniform(weight, inFeatures, rng)

	return &Linear{
		name:        name,
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      weight,
		bias:        NewParameter(name+".bias", tensor.Shape{outFeatures}),
	}
}

// Name returns the layer name.
func (l *Linear) Name() string { return l.name }

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter { return l.weight }

// Bias returns the bias parameter.
func (l *Linear) Bias() *Parameter { return l.bias }

// OutputShape returns [N, out_features].
func (l *Linear) OutputShape(in tensor.Shape) tensor.Shape {
	if len(in) != 2 || in[1] != l.inFeatures {
		panic(fmt.Sprintf("%s: expected input [N,%d], got %v", l.name, l.inFeatures, in))
	}
	return tensor.Shape{in[0], l.outFeatures}
}

// Footprint returns the size of the output activation.
func (l *Linear) Footprint(in tensor.Shape) int {
	return activationBytes(l.OutputShape(in))
}

// Forward computes x·W + b.
func (l *Linear) Forward(ctx *Context, in *Activation) *Activation {
	out := ctx.NewActivation(l.OutputShape(in.Value.Shape()))
	ctx.Backend.Linear(out.Value, in.Value, l.weight.value, l.bias.value)
	return out
}

// Backward accumulates weight, bias and (if requested) input gradients.
func (l *Linear) Backward(ctx *Context, in, out *Activation) {
	ctx.Backend.LinearBackward(in.Grad, l.weight.grad, l.bias.grad, out.Grad, in.Value, l.weight.value)
}

// Parameters returns weight and bias.
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}
