package ops

import (
	"github.com/born-ml/colorize/internal/tensor"
)

// SoftmaxOp represents softmax along an arbitrary dimension.
//
// Backward:
//
//	∂L/∂x_j = softmax_j * (∂L/∂softmax_j - Σ_i ∂L/∂softmax_i * softmax_i)
//
// with the sum taken along the softmax dimension.
type SoftmaxOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	dim    int
}

// NewSoftmaxOp creates a new softmax operation.
func NewSoftmaxOp(input, output *tensor.RawTensor, dim int) *SoftmaxOp {
	return &SoftmaxOp{input: input, output: output, dim: dim}
}

// Inputs returns the input tensors.
func (op *SoftmaxOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *SoftmaxOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes the gradient with respect to input.
func (op *SoftmaxOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	outer, size, inner := op.output.Shape().Split(op.dim)

	inputGrad := tensor.MustNewRaw(op.input.Shape(), tensor.Float32, op.input.Device())
	y, g, dx := op.output.AsFloat32(), outputGrad.AsFloat32(), inputGrad.AsFloat32()

	dotProd := make([]float32, inner)
	for o := 0; o < outer; o++ {
		base := o * size * inner
		for i := range dotProd {
			dotProd[i] = 0
		}
		for s := 0; s < size; s++ {
			off := base + s*inner
			for i := 0; i < inner; i++ {
				dotProd[i] += g[off+i] * y[off+i]
			}
		}
		for s := 0; s < size; s++ {
			off := base + s*inner
			for i := 0; i < inner; i++ {
				dx[off+i] = y[off+i] * (g[off+i] - dotProd[i])
			}
		}
	}
	return []*tensor.RawTensor{inputGrad}
}
