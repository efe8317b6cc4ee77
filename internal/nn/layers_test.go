package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/convnet/internal/tensor"
)

func TestParameter(t *testing.T) {
	p := NewParameter("fc.weight", tensor.Shape{3, 2})
	assert.Equal(t, "fc.weight", p.Name())
	assert.Equal(t, 6, p.NumElements())
	assert.Equal(t, tensor.Shape{3, 2}, p.Grad().Shape())

	p.Grad().Fill(2)
	p.ZeroGrad()
	for _, g := range p.Grad().Data() {
		assert.Zero(t, g)
	}
}

func TestConv2D_ForwardBackward(t *testing.T) {
	ctx := newContext(1 << 16)
	conv := NewConv2D("conv", 1, 1, 2, testRNG())
	copy(conv.Weight().Value().Data(), []float32{1, 0, 0, 1})
	conv.Bias().Value().Data()[0] = 0.5

	in := ctx.NewActivation(tensor.Shape{1, 1, 3, 3})
	copy(in.Value.Data(), []float32{1, 2, 3, 4, 5, 6, 7, 8, 9})

	out := conv.Forward(ctx, in)
	require.Equal(t, tensor.Shape{1, 1, 2, 2}, out.Value.Shape())
	assert.Equal(t, []float32{6.5, 8.5, 12.5, 14.5}, out.Value.Data())

	out.Grad.Fill(1)
	conv.Backward(ctx, in, out)
	assert.Equal(t, []float32{12, 16, 24, 28}, conv.Weight().Grad().Data())
	assert.Equal(t, []float32{4}, conv.Bias().Grad().Data())
	// Diagonal kernel: each input cell receives one gradient per diagonal tap covering it.
	assert.Equal(t, []float32{1, 1, 0, 1, 2, 1, 0, 1, 1}, in.Grad.Data())

	conv.release()
	assert.Panics(t, func() { conv.Backward(ctx, in, out) })
}

func TestConv2D_RejectsChannelMismatch(t *testing.T) {
	ctx := newContext(1 << 12)
	conv := NewConv2D("conv", 2, 1, 2, testRNG())
	assert.Panics(t, func() {
		conv.Forward(ctx, Input(viewOf(make([]float32, 9), 1, 1, 3, 3)))
	})
}

func TestReLU_Layer(t *testing.T) {
	ctx := newContext(1 << 10)
	relu := NewReLU("relu")

	in := ctx.NewActivation(tensor.Shape{4})
	copy(in.Value.Data(), []float32{-1, 0, 2, 3})
	out := relu.Forward(ctx, in)
	assert.Equal(t, []float32{0, 0, 2, 3}, out.Value.Data())

	out.Grad.Fill(1)
	relu.Backward(ctx, in, out)
	assert.Equal(t, []float32{0, 0, 1, 1}, in.Grad.Data())

	// Missing input gradient is skipped.
	relu.Backward(ctx, Input(in.Value), out)
}

func TestMaxPool2D_Layer(t *testing.T) {
	ctx := newContext(1 << 12)
	pool := NewMaxPool2D("pool", 2, 2)

	in := ctx.NewActivation(tensor.Shape{1, 1, 4, 4})
	copy(in.Value.Data(), []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	})
	out := pool.Forward(ctx, in)
	assert.Equal(t, []float32{6, 8, 14, 16}, out.Value.Data())

	copy(out.Grad.Data(), []float32{1, 2, 3, 4})
	pool.Backward(ctx, in, out)
	assert.Equal(t, []float32{
		0, 0, 0, 0,
		0, 1, 0, 2,
		0, 0, 0, 0,
		0, 3, 0, 4,
	}, in.Grad.Data())

	assert.Equal(t, 2*4*4+4*4, pool.Footprint(tensor.Shape{1, 1, 4, 4}))
}

func TestFlatten_Aliases(t *testing.T) {
	ctx := newContext(1 << 12)
	flat := NewFlatten("flatten")

	in := ctx.NewActivation(tensor.Shape{2, 3, 2, 2})
	out := flat.Forward(ctx, in)
	require.Equal(t, tensor.Shape{2, 12}, out.Value.Shape())
	assert.Same(t, &in.Value.Data()[0], &out.Value.Data()[0])
	assert.Same(t, &in.Grad.Data()[0], &out.Grad.Data()[0])
	assert.Zero(t, flat.Footprint(tensor.Shape{2, 3, 2, 2}))

	noGrad := flat.Forward(ctx, Input(in.Value))
	assert.True(t, noGrad.Grad.Empty())
}

func TestLinear_Layer(t *testing.T) {
	ctx := newContext(1 << 12)
	fc := NewLinear("fc", 2, 3, testRNG())
	copy(fc.Weight().Value().Data(), []float32{1, 2, 3, 4, 5, 6})
	copy(fc.Bias().Value().Data(), []float32{0.5, 0, -0.5})

	in := ctx.NewActivation(tensor.Shape{1, 2})
	copy(in.Value.Data(), []float32{1, 1})
	out := fc.Forward(ctx, in)
	assert.Equal(t, []float32{5.5, 7, 8.5}, out.Value.Data())

	out.Grad.Fill(1)
	fc.Backward(ctx, in, out)
	assert.Equal(t, []float32{1, 1, 1, 1, 1, 1}, fc.Weight().Grad().Data())
	assert.Equal(t, []float32{1, 1, 1}, fc.Bias().Grad().Data())
	assert.Equal(t, []float32{6, 15}, in.Grad.Data())

	assert.Panics(t, func() { fc.OutputShape(tensor.Shape{1, 3}) })
}

func TestDropout_Layer(t *testing.T) {
	ctx := newContext(1 << 16)
	drop := NewDropout("dropout", 0.5)

	in := ctx.NewActivation(tensor.Shape{1000})
	in.Value.Fill(1)

	ctx.Training = false
	assert.Same(t, in, drop.Forward(ctx, in), "inference must be the identity")

	ctx.Training = true
	out := drop.Forward(ctx, in)
	kept := 0
	for i, v := range out.Value.Data() {
		switch v {
		case 2:
			kept++
		case 0:
		default:
			t.Fatalf("element %d = %v, want 0 or 2", i, v)
		}
	}
	assert.InDelta(t, 500, kept, 100)

	out.Grad.Fill(1)
	drop.Backward(ctx, in, out)
	assert.Equal(t, out.Value.Data(), in.Grad.Data())

	assert.Panics(t, func() { NewDropout("bad", 0) })
	assert.Panics(t, func() { NewDropout("bad", 1.5) })

	ctx.RNG = nil
	assert.Panics(t, func() { drop.Forward(ctx, in) })
}

func TestLogSoftmaxNLL_Layer(t *testing.T) {
	ctx := newContext(1 << 12)
	head := NewLogSoftmaxNLL("loss")

	in := ctx.NewActivation(tensor.Shape{2, 2})
	ctx.Labels = []int32{0, 1}
	out := head.Forward(ctx, in)

	require.Equal(t, tensor.Shape{2}, out.Value.Shape())
	assert.InDelta(t, 0.6931472, out.Value.Data()[0], 1e-6)
	assert.InDelta(t, 2*0.6931472, head.Sum(), 1e-6)

	out.Grad.Fill(1)
	head.Backward(ctx, in, out)
	assert.InDeltaSlice(t, []float32{-0.5, 0.5, 0.5, -0.5}, in.Grad.Data(), 1e-6)
}
