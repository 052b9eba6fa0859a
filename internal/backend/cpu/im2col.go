package cpu

import (
	"github.com/born-ml/colorize/internal/parallel"
	"github.com/born-ml/colorize/internal/tensor"
)

// patchGeometry describes one im2col/col2im lowering: an image of
// channels×height×width sampled by a kernelH×kernelW window at
// outH×outW positions.
type patchGeometry struct {
	channels, height, width int
	kernelH, kernelW        int
	outH, outW              int
	p                       tensor.ConvParams
}

// rows returns the number of rows of the column matrix (C*KH*KW).
func (g patchGeometry) rows() int {
	return g.channels * g.kernelH * g.kernelW
}

// cols returns the number of columns of the column matrix (OH*OW).
func (g patchGeometry) cols() int {
	return g.outH * g.outW
}

// im2col unfolds img [C, H, W] into col [C*KH*KW, OH*OW].
// Positions that fall into the zero padding produce zeros.
func im2col(img, col []float32, g patchGeometry, cfg parallel.Config) {
	plane := g.height * g.width
	ncols := g.cols()
	parallel.For(g.channels, func(c int) {
		src := img[c*plane : (c+1)*plane]
		row := c * g.kernelH * g.kernelW
		for i := 0; i < g.kernelH; i++ {
			for j := 0; j < g.kernelW; j++ {
				dst := col[row*ncols : (row+1)*ncols]
				row++
				idx := 0
				for oh := 0; oh < g.outH; oh++ {
					ih := oh*g.p.Stride - g.p.Padding + i*g.p.Dilation
					if ih < 0 || ih >= g.height {
						for ow := 0; ow < g.outW; ow++ {
							dst[idx] = 0
							idx++
						}
						continue
					}
					line := src[ih*g.width : (ih+1)*g.width]
					for ow := 0; ow < g.outW; ow++ {
						iw := ow*g.p.Stride - g.p.Padding + j*g.p.Dilation
						if iw >= 0 && iw < g.width {
							dst[idx] = line[iw]
						} else {
							dst[idx] = 0
						}
						idx++
					}
				}
			}
		}
	}, cfg)
}

// col2im folds col [C*KH*KW, OH*OW] back into img [C, H, W], summing
// overlapping contributions. img must be zeroed by the caller.
func col2im(col, img []float32, g patchGeometry, cfg parallel.Config) {
	plane := g.height * g.width
	ncols := g.cols()
	parallel.For(g.channels, func(c int) {
		dst := img[c*plane : (c+1)*plane]
		row := c * g.kernelH * g.kernelW
		for i := 0; i < g.kernelH; i++ {
			for j := 0; j < g.kernelW; j++ {
				src := col[row*ncols : (row+1)*ncols]
				row++
				idx := 0
				for oh := 0; oh < g.outH; oh++ {
					ih := oh*g.p.Stride - g.p.Padding + i*g.p.Dilation
					if ih < 0 || ih >= g.height {
						idx += g.outW
						continue
					}
					line := dst[ih*g.width : (ih+1)*g.width]
					for ow := 0; ow < g.outW; ow++ {
						iw := ow*g.p.Stride - g.p.Padding + j*g.p.Dilation
						if iw >= 0 && iw < g.width {
							line[iw] += src[idx]
						}
						idx++
					}
				}
			}
		}
	}, cfg)
}
