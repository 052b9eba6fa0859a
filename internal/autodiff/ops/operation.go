// Package ops defines the differentiable operations recorded on the gradient tape.
//
// Each operation keeps references to its inputs and output from the forward
// pass and computes input gradients from the output gradient:
//   - AddOp, MulOp: element-wise with broadcasting
//   - AddScalarOp, MulScalarOp, ReshapeOp, SumDimOp
//   - Conv2DOp, ConvTranspose2DOp: delegate to backend backward kernels
//   - ReLUOp, SoftmaxOp, BatchNorm2DOp
//   - SpatialCrossEntropyOp: per-pixel classification loss
package ops

import "github.com/born-ml/colorize/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns one gradient per input, nil for inputs that receive none.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}
