package nn

import (
	"github.com/born-ml/convnet/internal/tensor"
)

// Parameter represents a trainable parameter of a layer.
//
// Value and gradient are plain heap buffers of identical shape. The gradient
// accumulates across every sample of a minibatch and is cleared by the
// optimizer after each step.
type Parameter struct {
	name  string      // Qualified name, e.g. "conv1.weight"
	value tensor.View // Parameter values
	grad  tensor.View // Accumulated gradient
}

// NewParameter allocates a zero-valued parameter with a zero gradient.
func NewParameter(name string, shape tensor.Shape) *Parameter {
	n := shape.NumElements()
	return &Parameter{
		name:  name,
		value: tensor.NewView(make([]float32, n), shape),
		grad:  tensor.NewView(make([]float32, n), shape),
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Value returns the parameter values.
func (p *Parameter) Value() tensor.View {
	return p.value
}

// Grad returns the gradient accumulator.
func (p *Parameter) Grad() tensor.View {
	return p.grad
}

// NumElements returns the number of scalar values.
func (p *Parameter) NumElements() int {
	return p.value.Len()
}

// ZeroGrad resets the gradient to zero.
func (p *Parameter) ZeroGrad() {
	clear(p.grad.Data())
}
