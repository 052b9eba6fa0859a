package ops

import (
	"fmt"
	"math"

	"github.com/born-ml/colorize/internal/parallel"
	"github.com/born-ml/colorize/internal/tensor"
)

// BatchNormState carries the running statistics and hyperparameters of a
// BatchNorm2D layer. RunningMean and RunningVar have shape [C] and are
// updated in place during training.
type BatchNormState struct {
	RunningMean *tensor.RawTensor
	RunningVar  *tensor.RawTensor
	Momentum    float32
	Eps         float32
	Training    bool
}

// BatchNorm2DOp represents per-channel batch normalization of [N, C, H, W]:
//
//	y = gamma * (x - mean) / sqrt(var + eps) + beta
//
// In training mode mean and var are the biased batch statistics over
// (N, H, W); in eval mode the running statistics are used.
//
// Backward (training, M = N*H*W):
//
//	∂L/∂x = gamma/(M*σ) * (M*dy - Σdy - x̂*Σ(dy*x̂))
//	∂L/∂gamma = Σ(dy*x̂),  ∂L/∂beta = Σdy
type BatchNorm2DOp struct {
	input, gamma, beta *tensor.RawTensor
	output             *tensor.RawTensor
	xhat               []float32
	invStd             []float32
	training           bool
}

// Inputs returns [input, gamma, beta].
func (op *BatchNorm2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.gamma, op.beta}
}

// Output returns the normalized output.
func (op *BatchNorm2DOp) Output() *tensor.RawTensor {
	return op.output
}

// BatchNorm2DForward normalizes x and returns the output together with the
// op holding everything the backward pass needs.
func BatchNorm2DForward(x, gamma, beta *tensor.RawTensor, st BatchNormState) (*tensor.RawTensor, *BatchNorm2DOp) {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("batchnorm2d: input must be 4D [N,C,H,W], got %v", shape))
	}
	n, c, plane := shape[0], shape[1], shape[2]*shape[3]
	if gamma.NumElements() != c || beta.NumElements() != c {
		panic(fmt.Sprintf("batchnorm2d: affine params must have %d elements", c))
	}
	m := n * plane

	out := tensor.MustNewRaw(shape, tensor.Float32, x.Device())
	op := &BatchNorm2DOp{
		input:    x,
		gamma:    gamma,
		beta:     beta,
		output:   out,
		xhat:     make([]float32, x.NumElements()),
		invStd:   make([]float32, c),
		training: st.Training,
	}

	src, dst := x.AsFloat32(), out.AsFloat32()
	g, b := gamma.AsFloat32(), beta.AsFloat32()
	rm, rv := st.RunningMean.AsFloat32(), st.RunningVar.AsFloat32()

	parallel.For(c, func(ch int) {
		var mean, variance float64
		if st.Training {
			for i := 0; i < n; i++ {
				for _, v := range src[(i*c+ch)*plane : (i*c+ch+1)*plane] {
					mean += float64(v)
				}
			}
			mean /= float64(m)
			for i := 0; i < n; i++ {
				for _, v := range src[(i*c+ch)*plane : (i*c+ch+1)*plane] {
					d := float64(v) - mean
					variance += d * d
				}
			}
			variance /= float64(m)

			unbiased := variance
			if m > 1 {
				unbiased = variance * float64(m) / float64(m-1)
			}
			mom := float64(st.Momentum)
			rm[ch] = float32((1-mom)*float64(rm[ch]) + mom*mean)
			rv[ch] = float32((1-mom)*float64(rv[ch]) + mom*unbiased)
		} else {
			mean, variance = float64(rm[ch]), float64(rv[ch])
		}

		inv := float32(1 / math.Sqrt(variance+float64(st.Eps)))
		op.invStd[ch] = inv
		mu := float32(mean)
		for i := 0; i < n; i++ {
			off := (i*c + ch) * plane
			for j := off; j < off+plane; j++ {
				xh := (src[j] - mu) * inv
				op.xhat[j] = xh
				dst[j] = g[ch]*xh + b[ch]
			}
		}
	}, parallel.DefaultConfig())

	return out, op
}

// Backward computes gradients for input, gamma and beta.
func (op *BatchNorm2DOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	shape := op.input.Shape()
	n, c, plane := shape[0], shape[1], shape[2]*shape[3]
	m := float32(n * plane)

	dx := tensor.MustNewRaw(shape, tensor.Float32, op.input.Device())
	dgamma := tensor.MustNewRaw(op.gamma.Shape(), tensor.Float32, op.input.Device())
	dbeta := tensor.MustNewRaw(op.beta.Shape(), tensor.Float32, op.input.Device())

	dy, g := outputGrad.AsFloat32(), op.gamma.AsFloat32()
	dxd, dgd, dbd := dx.AsFloat32(), dgamma.AsFloat32(), dbeta.AsFloat32()

	parallel.For(c, func(ch int) {
		var sumDy, sumDyXhat float32
		for i := 0; i < n; i++ {
			off := (i*c + ch) * plane
			for j := off; j < off+plane; j++ {
				sumDy += dy[j]
				sumDyXhat += dy[j] * op.xhat[j]
			}
		}
		dgd[ch] = sumDyXhat
		dbd[ch] = sumDy

		scale := g[ch] * op.invStd[ch]
		for i := 0; i < n; i++ {
			off := (i*c + ch) * plane
			for j := off; j < off+plane; j++ {
				if op.training {
					dxd[j] = scale / m * (m*dy[j] - sumDy - op.xhat[j]*sumDyXhat)
				} else {
					dxd[j] = scale * dy[j]
				}
			}
		}
	}, parallel.DefaultConfig())

	return []*tensor.RawTensor{dx, dgamma, dbeta}
}
