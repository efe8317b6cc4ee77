package nn

import (
	"github.com/born-ml/convnet/internal/tensor"
)

// ReLU applies max(0, x) element-wise.
//
// The gradient mask is derived from the saved pre-activation input: only
// positions where the input was strictly positive pass gradient through.
type ReLU struct {
	name string
}

// NewReLU creates a ReLU stage.
func NewReLU(name string) *ReLU {
	return &ReLU{name: name}
}

// Name returns the layer name.
func (r *ReLU) Name() string { return r.name }

// OutputShape returns in unchanged.
func (r *ReLU) OutputShape(in tensor.Shape) tensor.Shape { return in.Clone() }

// Footprint returns the size of the output activation.
func (r *ReLU) Footprint(in tensor.Shape) int { return activationBytes(in) }

// Forward applies the rectifier.
func (r *ReLU) Forward(ctx *Context, in *Activation) *Activation {
	out := ctx.NewActivation(in.Value.Shape())
	ctx.Backend.ReLU(out.Value.Data(), in.Value.Data())
	return out
}

// Backward accumulates outputGrad into inputGrad where the input was positive.
func (r *ReLU) Backward(ctx *Context, in, out *Activation) {
	if in.Grad.Empty() {
		return
	}
	ctx.Backend.ReLUBackward(in.Grad.Data(), out.Grad.Data(), in.Value.Data())
}

// Parameters returns nil.
func (r *ReLU) Parameters() []*Parameter { return nil }
