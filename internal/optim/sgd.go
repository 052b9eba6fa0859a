package optim

import (
	"github.com/born-ml/colorize/internal/nn"
	"github.com/born-ml/colorize/internal/tensor"
)

// SGD implements Stochastic Gradient Descent with optional momentum,
// following torch.optim.SGD.
//
// Update rule:
//
//	g = grad + weight_decay * param
//	buf = momentum * buf + (1 - dampening) * g   (buf = g on the first step)
//	g = nesterov ? g + momentum * buf : buf
//	param = param - lr * g
//
// Example:
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
type SGD[B tensor.Backend] struct {
	params     []*nn.Parameter[B]
	config     SGDConfig
	velocities map[*nn.Parameter[B]][]float32
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR          float32 // Learning rate (default: 0.01)
	Momentum    float32 // Momentum factor (default: 0.0, range: [0, 1))
	Dampening   float32 // Dampening for momentum (default: 0.0)
	WeightDecay float32 // L2 penalty (default: 0.0)
	Nesterov    bool    // Nesterov momentum, requires Momentum > 0
}

// NewSGD creates a new SGD optimizer.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD[B]{
		params:     params,
		config:     config,
		velocities: make(map[*nn.Parameter[B]][]float32),
	}
}

// Step performs a single optimization step.
func (s *SGD[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	c := s.config
	for _, param := range s.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}
		data := param.Raw().AsFloat32()

		if c.Momentum == 0 {
			for i, g := range grad {
				data[i] -= c.LR * (g + c.WeightDecay*data[i])
			}
			continue
		}

		velocity, exists := s.velocities[param]
		if !exists {
			velocity = make([]float32, len(data))
			s.velocities[param] = velocity
		}
		for i, g := range grad {
			g += c.WeightDecay * data[i]
			if exists {
				velocity[i] = c.Momentum*velocity[i] + (1-c.Dampening)*g
			} else {
				velocity[i] = g
			}
			if c.Nesterov {
				g += c.Momentum * velocity[i]
			} else {
				g = velocity[i]
			}
			data[i] -= c.LR * g
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD[B]) ZeroGrad() {
	zeroGrads(s.params)
}

// GetLR returns the current learning rate.
func (s *SGD[B]) GetLR() float32 {
	return s.config.LR
}
