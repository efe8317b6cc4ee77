package optim

import (
	"github.com/born-ml/convnet/internal/nn"
)

// SGD implements Stochastic Gradient Descent with gradient clipping and
// optional momentum.
//
// Update rule without momentum:
//
//	g = clip(gradient, -clip, clip)
//	param = param - lr * g
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + g
//	param = param - lr * velocity
//
// Example:
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{
//	    LR:   5e-4,
//	    Clip: 1000,
//	})
type SGD struct {
	params     []*nn.Parameter
	lr         float32
	clip       float32
	momentum   float32
	velocities map[*nn.Parameter][]float32
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float32 // Learning rate (default: 0.01)
	Clip     float32 // Element-wise clip bound (0: no clipping)
	Momentum float32 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}

	return &SGD{
		params:     params,
		lr:         config.LR,
		clip:       config.Clip,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter][]float32),
	}
}

// Step performs a single optimization step and clears the gradients.
//
//   - Without momentum: param -= lr * clip(grad)
//   - With momentum: velocity = momentum * velocity + clip(grad), param -= lr * velocity
func (s *SGD) Step() {
	for _, param := range s.params {
		if s.momentum == 0 {
			s.updateParameter(param)
		} else {
			s.updateParameterWithMomentum(param)
		}
	}
	zeroGrads(s.params)
}

func (s *SGD) updateParameter(param *nn.Parameter) {
	value := param.Value().Data()
	for i, g := range param.Grad().Data() {
		value[i] -= s.lr * clip(g, s.clip)
	}
}

func (s *SGD) updateParameterWithMomentum(param *nn.Parameter) {
	velocity, exists := s.velocities[param]
	if !exists {
		velocity = make([]float32, param.NumElements())
		s.velocities[param] = velocity
	}

	value := param.Value().Data()
	for i, g := range param.Grad().Data() {
		velocity[i] = s.momentum*velocity[i] + clip(g, s.clip)
		value[i] -= s.lr * velocity[i]
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD) ZeroGrad() {
	zeroGrads(s.params)
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float32 {
	return s.lr
}
