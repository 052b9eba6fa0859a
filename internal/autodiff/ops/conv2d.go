package ops

import (
	"github.com/born-ml/colorize/internal/tensor"
)

// Conv2DOp records a 2D convolution for autodiff.
//
// Forward: output = Conv2D(input, kernel, stride, padding, dilation)
//
// Backward:
//   - d_input:  transposed convolution of d_output with kernel
//   - d_kernel: correlation of input with d_output
//
// References:
//   - "A guide to convolution arithmetic for deep learning" (Dumoulin & Visin, 2016)
type Conv2DOp struct {
	input  *tensor.RawTensor
	kernel *tensor.RawTensor
	output *tensor.RawTensor
	params tensor.ConvParams
}

// NewConv2DOp creates a new Conv2D operation.
func NewConv2DOp(input, kernel, output *tensor.RawTensor, p tensor.ConvParams) *Conv2DOp {
	return &Conv2DOp{
		input:  input,
		kernel: kernel,
		output: output,
		params: p,
	}
}

// Inputs returns the input tensors.
func (op *Conv2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.kernel}
}

// Output returns the output tensor.
func (op *Conv2DOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward delegates both gradients to the backend kernels.
func (op *Conv2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := backend.Conv2DInputBackward(op.input, op.kernel, outputGrad, op.params)
	kernelGrad := backend.Conv2DKernelBackward(op.input, op.kernel, outputGrad, op.params)
	return []*tensor.RawTensor{inputGrad, kernelGrad}
}

// ConvTranspose2DOp records a 2D transposed convolution for autodiff.
//
// Backward:
//   - d_input:  ordinary convolution of d_output with kernel
//   - d_kernel: correlation of input with d_output
type ConvTranspose2DOp struct {
	input  *tensor.RawTensor
	kernel *tensor.RawTensor
	output *tensor.RawTensor
	params tensor.ConvParams
}

// NewConvTranspose2DOp creates a new ConvTranspose2D operation.
func NewConvTranspose2DOp(input, kernel, output *tensor.RawTensor, p tensor.ConvParams) *ConvTranspose2DOp {
	return &ConvTranspose2DOp{
		input:  input,
		kernel: kernel,
		output: output,
		params: p,
	}
}

// Inputs returns the input tensors.
func (op *ConvTranspose2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.kernel}
}

// Output returns the output tensor.
func (op *ConvTranspose2DOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward delegates both gradients to the backend kernels.
func (op *ConvTranspose2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := backend.ConvTranspose2DInputBackward(op.input, op.kernel, outputGrad, op.params)
	kernelGrad := backend.ConvTranspose2DKernelBackward(op.input, op.kernel, outputGrad, op.params)
	return []*tensor.RawTensor{inputGrad, kernelGrad}
}
