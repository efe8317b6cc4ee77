package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/convnet/internal/tensor"
)

// LeNetConfig describes the two-stage convolutional classifier.
type LeNetConfig struct {
	InChannels int // Image channels (1 for MNIST)
	Height     int // Image height
	Width      int // Image width
	Classes    int // Number of output classes

	Conv1Channels int     // Filters of the first convolution
	Conv2Channels int     // Filters of the second convolution
	KernelSize    int     // Convolution kernel size (square)
	PoolSize      int     // Pool window and stride
	Hidden        int     // Width of the hidden fully connected layer
	KeepProb      float32 // Dropout keep probability after the hidden layer
}

// DefaultLeNetConfig returns the MNIST network:
//
//	[N,1,28,28] conv5x5 -> [N,10,24,24] relu pool2 -> [N,10,12,12]
//	            conv5x5 -> [N,20,8,8]   relu pool2 -> [N,20,4,4]
//	flatten -> [N,320] fc -> [N,50] dropout fc -> [N,10] log-softmax/NLL
func DefaultLeNetConfig() LeNetConfig {
	return LeNetConfig{
		InChannels:    1,
		Height:        28,
		Width:         28,
		Classes:       10,
		Conv1Channels: 10,
		Conv2Channels: 20,
		KernelSize:    5,
		PoolSize:      2,
		Hidden:        50,
		KeepProb:      0.5,
	}
}

// InputShape returns the activation shape of a minibatch of the given size.
func (c LeNetConfig) InputShape(batch int) tensor.Shape {
	return tensor.Shape{batch, c.InChannels, c.Height, c.Width}
}

// FlatFeatures returns the number of features entering the first fully
// connected layer.
func (c LeNetConfig) FlatFeatures() (int, error) {
	h, w := c.Height, c.Width
	for stage := 0; stage < 2; stage++ {
		h, w = h-c.KernelSize+1, w-c.KernelSize+1
		if h < c.PoolSize || w < c.PoolSize {
			return 0, fmt.Errorf("image %dx%d too small for two conv%d/pool%d stages", c.Height, c.Width, c.KernelSize, c.PoolSize)
		}
		h, w = (h-c.PoolSize)/c.PoolSize+1, (w-c.PoolSize)/c.PoolSize+1
	}
	return c.Conv2Channels * h * w, nil
}

// Model is the classifier: a Sequential whose last layer is the loss head.
type Model struct {
	cfg  LeNetConfig
	net  *Sequential
	loss *LogSoftmaxNLL
}

// NewLeNet builds the classifier. Weights are drawn from rng in layer order
// (conv1, conv2, fc1, fc2); all biases start at zero.
func NewLeNet(cfg LeNetConfig, rng *rand.Rand) (*Model, error) {
	flat, err := cfg.FlatFeatures()
	if err != nil {
		return nil, err
	}
	if cfg.Classes <= 0 || cfg.Hidden <= 0 {
		return nil, fmt.Errorf("invalid classes %d or hidden width %d", cfg.Classes, cfg.Hidden)
	}
	if cfg.KeepProb <= 0 || cfg.KeepProb > 1 {
		return nil, fmt.Errorf("keep probability %v out of (0, 1]", cfg.KeepProb)
	}

	loss := NewLogSoftmaxNLL("loss")
	net := NewSequential(
		NewConv2D("conv1", cfg.InChannels, cfg.Conv1Channels, cfg.KernelSize, rng),
		NewReLU("relu1"),
		NewMaxPool2D("pool1", cfg.PoolSize, cfg.PoolSize),
		NewConv2D("conv2", cfg.Conv1Channels, cfg.Conv2Channels, cfg.KernelSize, rng),
		NewReLU("relu2"),
		NewMaxPool2D("pool2", cfg.PoolSize, cfg.PoolSize),
		NewFlatten("flatten"),
		NewLinear("fc1", flat, cfg.Hidden, rng),
		NewDropout("dropout", cfg.KeepProb),
		NewLinear("fc2", cfg.Hidden, cfg.Classes, rng),
		loss,
	)
	return &Model{cfg: cfg, net: net, loss: loss}, nil
}

// Config returns the model configuration.
func (m *Model) Config() LeNetConfig { return m.cfg }

// Net returns the underlying layer chain.
func (m *Model) Net() *Sequential { return m.net }

// Parameters returns all trainable parameters.
func (m *Model) Parameters() []*Parameter { return m.net.Parameters() }

// NumParameters returns the total number of scalar parameters.
func (m *Model) NumParameters() int {
	n := 0
	for _, p := range m.Parameters() {
		n += p.NumElements()
	}
	return n
}

// Footprint returns the arena bytes one training step on a minibatch of the
// given size consumes.
func (m *Model) Footprint(batch int) int {
	return m.net.Footprint(m.cfg.InputShape(batch))
}

// TrainBatch runs forward and backward on one minibatch in training mode and
// returns the summed per-sample loss. Parameter gradients accumulate; the
// optimizer applies and clears them.
//
// images is [N, C, H, W] and labels has N entries.
func (m *Model) TrainBatch(ctx *Context, images tensor.View, labels []int32) float32 {
	ctx.Labels = labels
	ctx.Training = true

	out := m.net.Forward(ctx, Input(images))
	out.Grad.Fill(1)
	m.net.Backward(ctx)
	return m.loss.Sum()
}

// EvalBatch runs forward in inference mode, writes the predicted class of
// every sample into preds and returns the summed loss and the number of
// correct predictions.
func (m *Model) EvalBatch(ctx *Context, images tensor.View, labels []int32, preds []int32) (float32, int) {
	ctx.Labels = labels
	ctx.Training = false

	m.net.Forward(ctx, Input(images))
	logits := m.net.Activation(m.net.Len() - 1)
	ctx.Backend.Argmax(preds, logits.Value)

	correct := 0
	for i, p := range preds {
		if p == labels[i] {
			correct++
		}
	}
	return m.loss.Sum(), correct
}

// Release drops every reference to arena memory. Call it before resetting
// the arena.
func (m *Model) Release() { m.net.Release() }
