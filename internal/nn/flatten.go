package nn

import (
	"fmt"

	"github.com/born-ml/convnet/internal/tensor"
)

// Flatten reshapes [N, d1, d2, ...] into [N, d1*d2*...].
//
// The output aliases the input's value and gradient buffers, so it costs no
// arena space and its backward pass is a no-op.
type Flatten struct {
	name string
}

// NewFlatten creates a Flatten stage.
func NewFlatten(name string) *Flatten {
	return &Flatten{name: name}
}

// Name returns the layer name.
func (f *Flatten) Name() string { return f.name }

// OutputShape returns [N, prod(rest)].
func (f *Flatten) OutputShape(in tensor.Shape) tensor.Shape {
	if len(in) < 2 {
		panic(fmt.Sprintf("%s: expected at least 2D input, got %v", f.name, in))
	}
	return tensor.Shape{in[0], in.Tail().NumElements()}
}

// Footprint returns 0.
func (f *Flatten) Footprint(tensor.Shape) int { return 0 }

// Forward returns a reshaped alias of in.
func (f *Flatten) Forward(_ *Context, in *Activation) *Activation {
	shape := f.OutputShape(in.Value.Shape())
	out := &Activation{Value: in.Value.Reshape(shape)}
	if !in.Grad.Empty() {
		out.Grad = in.Grad.Reshape(shape)
	}
	return out
}

// Backward does nothing: gradients were written through the alias.
func (f *Flatten) Backward(*Context, *Activation, *Activation) {}

// Parameters returns nil.
func (f *Flatten) Parameters() []*Parameter { return nil }
