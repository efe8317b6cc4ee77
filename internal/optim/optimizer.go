// Package optim implements the parameter update rules applied after every
// minibatch.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with element-wise gradient clipping
//     and optional momentum
//   - Adam: Adaptive Moment Estimation with the same clipping
//
// Gradients are read from each nn.Parameter's accumulator, which the
// optimizer clears once the update is applied.
//
// Example usage:
//
//	opt := optim.NewSGD(model.Parameters(), optim.SGDConfig{
//	    LR:   5e-4,
//	    Clip: 1000,
//	})
//
//	for _, batch := range batches {
//	    model.TrainBatch(ctx, batch.Images, batch.Labels)
//	    opt.Step() // update and zero gradients
//	}
package optim

import (
	"fmt"

	"github.com/born-ml/convnet/internal/nn"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies the accumulated gradients to all parameters and then
	// clears the gradients.
	Step()

	// ZeroGrad clears all parameter gradients without updating.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32
}

// Kind names an optimizer in configuration files.
type Kind string

// Available optimizers.
const (
	KindSGD  Kind = "sgd"
	KindAdam Kind = "adam"
)

// Config is the configuration shared by all optimizers.
type Config struct {
	Kind     Kind    // Update rule (default: sgd)
	LR       float32 // Learning rate
	Clip     float32 // Gradient elements are clipped to [-Clip, Clip]; 0 disables clipping
	Momentum float32 // SGD only
}

// New creates the optimizer named by cfg.Kind.
func New(params []*nn.Parameter, cfg Config) (Optimizer, error) {
	switch cfg.Kind {
	case "", KindSGD:
		return NewSGD(params, SGDConfig{LR: cfg.LR, Clip: cfg.Clip, Momentum: cfg.Momentum}), nil
	case KindAdam:
		return NewAdam(params, AdamConfig{LR: cfg.LR, Clip: cfg.Clip}), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", cfg.Kind)
	}
}

// clip bounds g to [-limit, limit]. A non-positive limit disables clipping.
func clip(g, limit float32) float32 {
	if limit <= 0 {
		return g
	}
	if g > limit {
		return limit
	}
	if g < -limit {
		return -limit
	}
	return g
}

func zeroGrads(params []*nn.Parameter) {
	for _, p := range params {
		p.ZeroGrad()
	}
}
