package nn

import (
	"fmt"

	"github.com/born-ml/convnet/internal/tensor"
)

// LogSoftmaxNLL is the loss head: it turns logits [N, K] into per-sample
// negative log-likelihoods [N] of the labels found in the Context.
//
// The output gradient is the gradient of whatever reduction the caller
// applies to the per-sample losses; seeding it with ones differentiates
// their sum.
type LogSoftmaxNLL struct {
	name string

	logProbs []float32 // [N*K], valid until the arena reset
	sum      float32
}

// NewLogSoftmaxNLL creates the loss head.
func NewLogSoftmaxNLL(name string) *LogSoftmaxNLL {
	return &LogSoftmaxNLL{name: name}
}

// Name returns the layer name.
func (l *LogSoftmaxNLL) Name() string { return l.name }

// OutputShape returns [N].
func (l *LogSoftmaxNLL) OutputShape(in tensor.Shape) tensor.Shape {
	if len(in) != 2 {
		panic(fmt.Sprintf("%s: expected logits [N,K], got %v", l.name, in))
	}
	return tensor.Shape{in[0]}
}

// Footprint covers the per-sample losses and the cached log-probabilities.
func (l *LogSoftmaxNLL) Footprint(in tensor.Shape) int {
	return activationBytes(l.OutputShape(in)) + float32Size*in.NumElements()
}

// Forward computes log-probabilities and per-sample losses.
func (l *LogSoftmaxNLL) Forward(ctx *Context, in *Activation) *Activation {
	out := ctx.NewActivation(l.OutputShape(in.Value.Shape()))
	l.logProbs = ctx.Arena.Float32s(in.Value.Len())
	l.sum = ctx.Backend.LogSoftmaxNLL(l.logProbs, out.Value.Data(), in.Value, ctx.Labels)
	return out
}

// Backward accumulates the logit gradient.
func (l *LogSoftmaxNLL) Backward(ctx *Context, in, out *Activation) {
	if in.Grad.Empty() {
		return
	}
	ctx.Backend.LogSoftmaxNLLBackward(in.Grad, l.logProbs, out.Grad.Data(), ctx.Labels)
}

// Sum returns the summed loss of the last Forward.
func (l *LogSoftmaxNLL) Sum() float32 { return l.sum }

// Parameters returns nil.
func (l *LogSoftmaxNLL) Parameters() []*Parameter { return nil }

func (l *LogSoftmaxNLL) release() { l.logProbs = nil }
