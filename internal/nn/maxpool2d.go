package nn

import (
	"fmt"

	"github.com/born-ml/convnet/internal/backend/cpu"
	"github.com/born-ml/convnet/internal/tensor"
)

// MaxPool2D is a 2D max pooling layer.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
// Where:
//
//	out_height = (height - kernel_size) / stride + 1
//	out_width  = (width - kernel_size) / stride + 1
//
// Forward records the absolute input offset of every window's maximum;
// Backward routes each output gradient to exactly that offset.
type MaxPool2D struct {
	name       string
	kernelSize int
	stride     int

	indices []int32 // one per output element, valid until the arena reset
}

// NewMaxPool2D creates a max pooling layer.
//
// Example:
//
//	pool := nn.NewMaxPool2D("pool1", 2, 2)
//	out := pool.Forward(ctx, in) // [N, 10, 24, 24] -> [N, 10, 12, 12]
func NewMaxPool2D(name string, kernelSize, stride int) *MaxPool2D {
	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid stride %d", stride))
	}
	return &MaxPool2D{name: name, kernelSize: kernelSize, stride: stride}
}

// Name returns the layer name.
func (m *MaxPool2D) Name() string { return m.name }

// OutputShape returns the pooled shape.
func (m *MaxPool2D) OutputShape(in tensor.Shape) tensor.Shape {
	return cpu.MaxPool2DOutputShape(in, m.kernelSize, m.stride)
}

// Footprint covers the output activation and the argmax indices.
func (m *MaxPool2D) Footprint(in tensor.Shape) int {
	out := m.OutputShape(in)
	return activationBytes(out) + float32Size*out.NumElements()
}

// Forward pools the input and records the winning offsets.
func (m *MaxPool2D) Forward(ctx *Context, in *Activation) *Activation {
	out := ctx.NewActivation(m.OutputShape(in.Value.Shape()))
	m.indices = ctx.Arena.Int32s(out.Value.Len())
	ctx.Backend.MaxPool2D(out.Value, m.indices, in.Value, m.kernelSize, m.stride)
	return out
}

// Backward scatters each output gradient onto its recorded input position.
func (m *MaxPool2D) Backward(ctx *Context, in, out *Activation) {
	if in.Grad.Empty() {
		return
	}
	ctx.Backend.MaxPool2DBackward(in.Grad, out.Grad, m.indices)
}

// Parameters returns nil.
func (m *MaxPool2D) Parameters() []*Parameter { return nil }

func (m *MaxPool2D) release() { m.indices = nil }
