package cpu

import (
	"fmt"

	"github.com/born-ml/colorize/internal/tensor"
)

type binaryKind int

const (
	binaryAdd binaryKind = iota
	binaryMul
)

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", binaryAdd, a, b)
}

// Mul performs element-wise multiplication with NumPy-style broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", binaryMul, a, b)
}

// AddScalar adds a scalar to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	requireFloat32("add_scalar", x)
	result := tensor.MustNewRaw(x.Shape(), x.DType(), cpu.device)
	src, dst := x.AsFloat32(), result.AsFloat32()
	for i, v := range src {
		dst[i] = v + scalar
	}
	return result
}

// MulScalar multiplies every element by a scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	requireFloat32("mul_scalar", x)
	result := tensor.MustNewRaw(x.Shape(), x.DType(), cpu.device)
	src, dst := x.AsFloat32(), result.AsFloat32()
	for i, v := range src {
		dst[i] = v * scalar
	}
	return result
}

func (cpu *CPUBackend) binary(name string, kind binaryKind, a, b *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32(name, a, b)
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	result := tensor.MustNewRaw(outShape, tensor.Float32, cpu.device)
	out, x, y := result.AsFloat32(), a.AsFloat32(), b.AsFloat32()

	if !needsBroadcast {
		// Fast path: identical shapes.
		switch kind {
		case binaryAdd:
			for i := range out {
				out[i] = x[i] + y[i]
			}
		case binaryMul:
			for i := range out {
				out[i] = x[i] * y[i]
			}
		}
		return result
	}

	broadcastBinary(kind, out, x, y, outShape,
		broadcastStrides(a.Shape(), outShape), broadcastStrides(b.Shape(), outShape))
	return result
}

// broadcastStrides returns strides of s aligned to out, with 0 on broadcast axes.
func broadcastStrides(s, out tensor.Shape) []int {
	strides := make([]int, len(out))
	src := s.ComputeStrides()
	off := len(out) - len(s)
	for i := range s {
		if s[i] != 1 {
			strides[off+i] = src[i]
		}
	}
	return strides
}

// broadcastBinary walks the output row by row (last axis innermost) and
// keeps running offsets into both operands.
func broadcastBinary(kind binaryKind, out, a, b []float32, outShape tensor.Shape, sa, sb []int) {
	nd := len(outShape)
	if nd == 0 {
		out[0] = apply(kind, a[0], b[0])
		return
	}

	inner := outShape[nd-1]
	ia, ib := sa[nd-1], sb[nd-1]
	idx := make([]int, nd-1)
	offA, offB := 0, 0

	for o := 0; o < len(out); o += inner {
		row := out[o : o+inner]
		pa, pb := offA, offB
		switch kind {
		case binaryAdd:
			for j := range row {
				row[j] = a[pa] + b[pb]
				pa += ia
				pb += ib
			}
		case binaryMul:
			for j := range row {
				row[j] = a[pa] * b[pb]
				pa += ia
				pb += ib
			}
		}

		for d := nd - 2; d >= 0; d-- {
			idx[d]++
			offA += sa[d]
			offB += sb[d]
			if idx[d] < outShape[d] {
				break
			}
			offA -= sa[d] * outShape[d]
			offB -= sb[d] * outShape[d]
			idx[d] = 0
		}
	}
}

func apply(kind binaryKind, x, y float32) float32 {
	if kind == binaryMul {
		return x * y
	}
	return x + y
}
