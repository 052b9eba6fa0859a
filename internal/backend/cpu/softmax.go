package cpu

import (
	"math"

	"github.com/born-ml/colorize/internal/parallel"
	"github.com/born-ml/colorize/internal/tensor"
)

// softmaxTile is the number of positions along the trailing axes processed
// together, so that the reduction axis is walked with contiguous rows.
const softmaxTile = 1024

// Softmax computes softmax along dim:
//
//	softmax(x)_i = exp(x_i - max(x)) / Σ_j exp(x_j - max(x))
//
// For a [N, C, H, W] tensor and dim 1 this is a per-pixel distribution over C.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	requireFloat32("softmax", x)
	outer, size, inner := x.Shape().Split(dim)

	result := tensor.MustNewRaw(x.Shape(), tensor.Float32, cpu.device)
	SoftmaxFloat32(x.AsFloat32(), result.AsFloat32(), outer, size, inner, cpu.parallel)
	return result
}

// SoftmaxFloat32 writes softmax of src along the middle axis of an
// [outer, size, inner] layout into dst.
func SoftmaxFloat32(src, dst []float32, outer, size, inner int, cfg parallel.Config) {
	tilesPerOuter := (inner + softmaxTile - 1) / softmaxTile
	parallel.For(outer*tilesPerOuter, func(t int) {
		o := t / tilesPerOuter
		start := (t % tilesPerOuter) * softmaxTile
		end := min(start+softmaxTile, inner)
		width := end - start
		base := o * size * inner

		maxVal := make([]float32, width)
		copy(maxVal, src[base+start:base+end])
		for s := 1; s < size; s++ {
			row := src[base+s*inner+start : base+s*inner+end]
			for i, v := range row {
				if v > maxVal[i] {
					maxVal[i] = v
				}
			}
		}

		sum := make([]float32, width)
		for s := 0; s < size; s++ {
			off := base + s*inner + start
			row := src[off : off+width]
			out := dst[off : off+width]
			for i, v := range row {
				e := float32(math.Exp(float64(v - maxVal[i])))
				out[i] = e
				sum[i] += e
			}
		}

		for s := 0; s < size; s++ {
			off := base + s*inner + start
			out := dst[off : off+width]
			for i := range out {
				out[i] /= sum[i]
			}
		}
	}, cfg)
}
