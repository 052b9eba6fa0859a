// Package colorizer implements the CNN that predicts a distribution over
// quantized ab color bins for every pixel of a grayscale image.
//
// The network is an encoder/decoder: three strided blocks reduce the
// resolution by 8, dilated blocks widen the receptive field at constant
// resolution, and three transposed convolutions restore the input size
// before a 1x1 convolution scores the NumBins bins.
package colorizer

import (
	"github.com/born-ml/colorize/internal/nn"
	"github.com/born-ml/colorize/internal/tensor"
)

// NumBins is the number of quantized ab color bins.
const NumBins = 313

// Luminance and chrominance normalization constants.
const (
	LCenter = 50
	LNorm   = 100
	ABNorm  = 110
)

// Colorizer is a network mapping a [N, 1, H, W] luminance batch to
// [N, NumBins, H, W] bin probabilities.
type Colorizer[B tensor.Backend] interface {
	nn.Module[B]
	nn.Stateful
	nn.ModeSetter

	// NormalizeL maps L in [0, 100] to roughly [-0.5, 0.5].
	NormalizeL(l *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
}

// BaseColor provides the normalization shared by colorization networks.
type BaseColor[B tensor.Backend] struct{}

// NormalizeL returns (l - 50) / 100.
func (BaseColor[B]) NormalizeL(l *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return l.AddScalar(-LCenter).MulScalar(1.0 / LNorm)
}

// UnnormalizeL is the inverse of NormalizeL.
func (BaseColor[B]) UnnormalizeL(l *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return l.MulScalar(LNorm).AddScalar(LCenter)
}

// NormalizeAB scales ab values by 1/110.
func (BaseColor[B]) NormalizeAB(ab *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return ab.MulScalar(1.0 / ABNorm)
}

// UnnormalizeAB is the inverse of NormalizeAB.
func (BaseColor[B]) UnnormalizeAB(ab *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return ab.MulScalar(ABNorm)
}
