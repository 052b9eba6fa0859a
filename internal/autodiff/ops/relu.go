package ops

import "github.com/born-ml/colorize/internal/tensor"

// ReLUOp represents the ReLU activation: output = max(0, input).
//
// Backward: ∂L/∂input = ∂L/∂output if input > 0, else 0.
type ReLUOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewReLUOp creates a new ReLUOp.
func NewReLUOp(input, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{input: input, output: output}
}

// ReLUForward computes max(0, x) into a new tensor.
func ReLUForward(x *tensor.RawTensor) *tensor.RawTensor {
	out := tensor.MustNewRaw(x.Shape(), tensor.Float32, x.Device())
	src, dst := x.AsFloat32(), out.AsFloat32()
	for i, v := range src {
		if v > 0 {
			dst[i] = v
		}
	}
	return out
}

// Backward masks the output gradient with input > 0.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad := tensor.MustNewRaw(op.input.Shape(), tensor.Float32, op.input.Device())
	in, g, dst := op.input.AsFloat32(), outputGrad.AsFloat32(), grad.AsFloat32()
	for i, v := range in {
		if v > 0 {
			dst[i] = g[i]
		}
	}
	return []*tensor.RawTensor{grad}
}

// Inputs returns the input tensor.
func (op *ReLUOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *ReLUOp) Output() *tensor.RawTensor {
	return op.output
}
