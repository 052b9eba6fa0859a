package ops

import (
	"fmt"
	"math"

	"github.com/born-ml/colorize/internal/tensor"
)

// Reduction selects how per-element losses are combined into a scalar.
type Reduction int

// Supported reductions.
const (
	ReductionMean Reduction = iota
	ReductionSum
)

// String returns the PyTorch-style name of the reduction.
func (r Reduction) String() string {
	if r == ReductionSum {
		return "sum"
	}
	return "mean"
}

// SpatialCrossEntropyOp is the classification loss over every pixel of a
// [N, C, H, W] score map against [N, H, W] int64 class targets. Plain
// [N, C] scores with [N] targets are accepted as the H = W = 1 case.
//
// With FromLogits the scores are unnormalized and the loss is
//
//	L = reduce(logsumexp(x) - x[target])
//	∂L/∂x = (softmax(x) - onehot(target)) * scale
//
// Otherwise the scores are probabilities (an already applied softmax) and
//
//	L = reduce(-log(p[target] + eps))
//	∂L/∂p = -onehot(target) / (p[target] + eps) * scale
//
// where scale is 1/(N*H*W) for the mean reduction and 1 for sum.
type SpatialCrossEntropyOp struct {
	input      *tensor.RawTensor
	targets    *tensor.RawTensor
	output     *tensor.RawTensor
	fromLogits bool
	eps        float32
	reduction  Reduction
}

// Inputs returns the score tensor. Targets receive no gradient.
func (op *SpatialCrossEntropyOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the scalar loss.
func (op *SpatialCrossEntropyOp) Output() *tensor.RawTensor {
	return op.output
}

// spatialDims validates shapes and returns (N, C, H*W).
func spatialDims(input, targets *tensor.RawTensor) (n, c, plane int) {
	in, tg := input.Shape(), targets.Shape()
	if targets.DType() != tensor.Int64 {
		panic(fmt.Sprintf("cross_entropy: targets must be int64, got %s", targets.DType()))
	}
	if len(in) < 2 || len(tg) != len(in)-1 || tg[0] != in[0] {
		panic(fmt.Sprintf("cross_entropy: input %v incompatible with targets %v", in, tg))
	}
	plane = 1
	for i := 2; i < len(in); i++ {
		if tg[i-1] != in[i] {
			panic(fmt.Sprintf("cross_entropy: input %v incompatible with targets %v", in, tg))
		}
		plane *= in[i]
	}
	return in[0], in[1], plane
}

// SpatialCrossEntropyForward computes the loss and the op recording it.
// Panics if any target lies outside [0, C).
func SpatialCrossEntropyForward(input, targets *tensor.RawTensor, fromLogits bool, eps float32, reduction Reduction) (*tensor.RawTensor, *SpatialCrossEntropyOp) {
	n, c, plane := spatialDims(input, targets)
	x, t := input.AsFloat32(), targets.AsInt64()

	var total float64
	for b := 0; b < n; b++ {
		base := b * c * plane
		for p := 0; p < plane; p++ {
			label := t[b*plane+p]
			if label < 0 || int(label) >= c {
				panic(fmt.Sprintf("cross_entropy: target %d out of range [0, %d)", label, c))
			}
			if fromLogits {
				maxVal := x[base+p]
				for k := 1; k < c; k++ {
					maxVal = max(maxVal, x[base+k*plane+p])
				}
				var sum float64
				for k := 0; k < c; k++ {
					sum += math.Exp(float64(x[base+k*plane+p] - maxVal))
				}
				total += float64(maxVal) + math.Log(sum) - float64(x[base+int(label)*plane+p])
			} else {
				total -= math.Log(float64(x[base+int(label)*plane+p] + eps))
			}
		}
	}
	if reduction == ReductionMean {
		total /= float64(n * plane)
	}

	output := tensor.MustNewRaw(tensor.Shape{}, tensor.Float32, input.Device())
	output.AsFloat32()[0] = float32(total)

	return output, &SpatialCrossEntropyOp{
		input:      input,
		targets:    targets,
		output:     output,
		fromLogits: fromLogits,
		eps:        eps,
		reduction:  reduction,
	}
}

// Backward computes the gradient with respect to the scores.
func (op *SpatialCrossEntropyOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	n, c, plane := spatialDims(op.input, op.targets)
	scale := scalarGrad(outputGrad)
	if op.reduction == ReductionMean {
		scale /= float32(n * plane)
	}

	grad := tensor.MustNewRaw(op.input.Shape(), tensor.Float32, op.input.Device())
	x, t, dx := op.input.AsFloat32(), op.targets.AsInt64(), grad.AsFloat32()

	for b := 0; b < n; b++ {
		base := b * c * plane
		for p := 0; p < plane; p++ {
			label := int(t[b*plane+p])
			if !op.fromLogits {
				dx[base+label*plane+p] = -scale / (x[base+label*plane+p] + op.eps)
				continue
			}
			maxVal := x[base+p]
			for k := 1; k < c; k++ {
				maxVal = max(maxVal, x[base+k*plane+p])
			}
			var sum float32
			for k := 0; k < c; k++ {
				e := float32(math.Exp(float64(x[base+k*plane+p] - maxVal)))
				dx[base+k*plane+p] = e
				sum += e
			}
			for k := 0; k < c; k++ {
				dx[base+k*plane+p] = dx[base+k*plane+p] / sum * scale
			}
			dx[base+label*plane+p] -= scale
		}
	}
	return []*tensor.RawTensor{grad}
}
