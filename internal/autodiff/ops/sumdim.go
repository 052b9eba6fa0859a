package ops

import "github.com/born-ml/colorize/internal/tensor"

// SumDimOp represents a sum along one dimension.
//
// Backward: the output gradient is broadcast back along the summed axis.
type SumDimOp struct {
	input   *tensor.RawTensor
	output  *tensor.RawTensor
	dim     int
	keepDim bool
}

// NewSumDimOp creates a new SumDimOp.
func NewSumDimOp(input, output *tensor.RawTensor, dim int, keepDim bool) *SumDimOp {
	return &SumDimOp{input: input, output: output, dim: dim, keepDim: keepDim}
}

// Backward expands the gradient to the input shape.
func (op *SumDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	kept := op.input.Shape().Clone()
	kept[op.dim] = 1
	grad := outputGrad
	if !op.keepDim {
		grad = backend.Reshape(outputGrad, kept)
	}

	zeros := tensor.MustNewRaw(op.input.Shape(), op.input.DType(), op.input.Device())
	return []*tensor.RawTensor{backend.Add(zeros, grad)}
}

// Inputs returns the input tensor.
func (op *SumDimOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *SumDimOp) Output() *tensor.RawTensor {
	return op.output
}
