// Package nn implements the neural network modules used by the colorizer.
//
// This package provides:
//   - Module interface and Parameter
//   - Conv2D (with dilation), ConvTranspose2D, BatchNorm2D
//   - ReLU, Dropout, Softmax activations
//   - Sequential container
//   - Per-pixel classification criteria and their factory
//   - State dictionaries for snapshots and checkpoints
package nn

import (
	"github.com/born-ml/colorize/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module.
	// Returns an empty slice for modules without trainable parameters.
	Parameters() []*Parameter[B]
}

// Stateful is implemented by modules that own named tensors.
//
// StateDict returns live references to parameters and buffers (such as
// batch norm running statistics), keyed by PyTorch-style dotted names.
type Stateful interface {
	StateDict() map[string]*tensor.RawTensor
}

// ModeSetter is implemented by modules whose behavior differs between
// training and inference (dropout, batch norm) and by containers.
type ModeSetter interface {
	SetTraining(training bool)
}

// SetTraining switches m and its children between training and inference mode.
func SetTraining[B tensor.Backend](m Module[B], training bool) {
	if s, ok := any(m).(ModeSetter); ok {
		s.SetTraining(training)
	}
}
