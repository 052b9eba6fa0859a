package cpu

import (
	"github.com/born-ml/colorize/internal/tensor"
)

// SumDim sums x along dim. With keepDim the reduced axis stays with size 1.
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	requireFloat32("sum_dim", x)
	shape := x.Shape()
	outer, size, inner := shape.Split(dim)

	outShape := make(tensor.Shape, 0, len(shape))
	for i, d := range shape {
		switch {
		case i != dim:
			outShape = append(outShape, d)
		case keepDim:
			outShape = append(outShape, 1)
		}
	}

	result := tensor.MustNewRaw(outShape, tensor.Float32, cpu.device)
	src, dst := x.AsFloat32(), result.AsFloat32()

	for o := 0; o < outer; o++ {
		acc := dst[o*inner : (o+1)*inner]
		base := o * size * inner
		for s := 0; s < size; s++ {
			row := src[base+s*inner : base+(s+1)*inner]
			for i, v := range row {
				acc[i] += v
			}
		}
	}
	return result
}
