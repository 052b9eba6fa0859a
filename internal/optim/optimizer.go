// Package optim implements optimization algorithms for training neural networks.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum, dampening, Nesterov
//     and weight decay
//   - Adam: Adaptive Moment Estimation with weight decay
//   - Build: construction by name from keyword arguments
//
// Example usage:
//
//	optimizer, err := optim.Build("Adam", kwargs.Args{"lr": 3e-4}, model.Parameters())
//
//	for batch := range batches {
//	    optimizer.ZeroGrad()
//	    backend.Tape().Clear()
//	    backend.Tape().StartRecording()
//	    loss := criterion.Forward(model.Forward(input), targets)
//	    grads := autodiff.Backward(loss, backend)
//	    optimizer.Step(grads)
//	}
package optim

import (
	"fmt"

	"github.com/born-ml/colorize/internal/nn"
	"github.com/born-ml/colorize/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies gradient updates to all parameters.
	//
	// Takes a gradient map from Backward() and updates parameters in-place.
	// Parameters without a gradient are left untouched.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32
}

// getGradient retrieves the gradient of a parameter and attaches it.
//
// Returns nil if no gradient is found (parameter wasn't part of computation graph).
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) []float32 {
	grad := grads[param.Raw()]
	if grad == nil {
		return nil
	}
	if !grad.Shape().Equal(param.Raw().Shape()) {
		panic(fmt.Sprintf("optim: gradient shape %v does not match parameter %s %v", grad.Shape(), param.Name(), param.Raw().Shape()))
	}
	param.SetGrad(grad)
	return grad.AsFloat32()
}

func zeroGrads[B tensor.Backend](params []*nn.Parameter[B]) {
	for _, param := range params {
		param.ZeroGrad()
	}
}
