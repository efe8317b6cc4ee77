package nn

import (
	"fmt"

	"github.com/born-ml/convnet/internal/tensor"
)

// Dropout zeroes activations at random during training.
//
// Inverted dropout: kept elements are scaled by 1/keepProb so the expected
// activation is unchanged and inference needs no rescaling. Outside training
// the layer passes its input through untouched.
type Dropout struct {
	name     string
	keepProb float32

	mask []float32 // scale applied per element, valid until the arena reset
}

// NewDropout creates a dropout stage keeping each element with probability
// keepProb, which must lie in (0, 1].
func NewDropout(name string, keepProb float32) *Dropout {
	if keepProb <= 0 || keepProb > 1 {
		panic(fmt.Sprintf("dropout: keep probability %v out of (0, 1]", keepProb))
	}
	return &Dropout{name: name, keepProb: keepProb}
}

// Name returns the layer name.
func (d *Dropout) Name() string { return d.name }

// OutputShape returns in unchanged.
func (d *Dropout) OutputShape(in tensor.Shape) tensor.Shape { return in.Clone() }

// Footprint covers the output activation and the mask.
func (d *Dropout) Footprint(in tensor.Shape) int {
	return activationBytes(in) + float32Size*in.NumElements()
}

// Forward draws a fresh mask in training mode and is the identity otherwise.
func (d *Dropout) Forward(ctx *Context, in *Activation) *Activation {
	if !ctx.Training {
		d.mask = nil
		return in
	}
	if ctx.RNG == nil {
		panic(d.name + ": training requires a random source")
	}
	out := ctx.NewActivation(in.Value.Shape())
	d.mask = ctx.Arena.Float32s(in.Value.Len())
	ctx.Backend.Dropout(out.Value.Data(), d.mask, in.Value.Data(), d.keepProb, ctx.RNG)
	return out
}

// Backward accumulates outputGrad scaled by the mask.
func (d *Dropout) Backward(ctx *Context, in, out *Activation) {
	if in == out || in.Grad.Empty() {
		return
	}
	ctx.Backend.DropoutBackward(in.Grad.Data(), out.Grad.Data(), d.mask)
}

// Parameters returns nil.
func (d *Dropout) Parameters() []*Parameter { return nil }

func (d *Dropout) release() { d.mask = nil }
