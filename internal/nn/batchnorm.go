package nn

import (
	"fmt"

	"github.com/born-ml/colorize/internal/autodiff/ops"
	"github.com/born-ml/colorize/internal/tensor"
)

// NormBackend is an interface for backends that support batch normalization.
type NormBackend interface {
	BatchNorm2D(x, gamma, beta *tensor.RawTensor, st ops.BatchNormState) *tensor.RawTensor
}

// BatchNorm2D normalizes each channel of a [N, C, H, W] input.
//
// In training mode batch statistics are used and the running estimates are
// updated with the given momentum; in inference mode the running estimates
// are used. Defaults match PyTorch: momentum 0.1, eps 1e-5, gamma 1, beta 0.
type BatchNorm2D[B tensor.Backend] struct {
	numFeatures int
	momentum    float32
	eps         float32
	training    bool

	gamma       *Parameter[B]
	beta        *Parameter[B]
	runningMean *tensor.RawTensor
	runningVar  *tensor.RawTensor
}

// NewBatchNorm2D creates a batch normalization layer in training mode.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, backend B) *BatchNorm2D[B] {
	runningVar := tensor.MustNewRaw(tensor.Shape{numFeatures}, tensor.Float32, backend.Device())
	runningVar.Fill(1)
	return &BatchNorm2D[B]{
		numFeatures: numFeatures,
		momentum:    0.1,
		eps:         1e-5,
		training:    true,
		gamma:       NewParameter("weight", tensor.Ones[float32](tensor.Shape{numFeatures}, backend)),
		beta:        NewParameter("bias", tensor.Zeros[float32](tensor.Shape{numFeatures}, backend)),
		runningMean: tensor.MustNewRaw(tensor.Shape{numFeatures}, tensor.Float32, backend.Device()),
		runningVar:  runningVar,
	}
}

// Forward normalizes the input.
func (bn *BatchNorm2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	nb, ok := any(backend).(NormBackend)
	if !ok {
		panic("BatchNorm2D: backend must implement BatchNorm2D operation (use autodiff.AutodiffBackend)")
	}
	out := nb.BatchNorm2D(input.Raw(), bn.gamma.Raw(), bn.beta.Raw(), ops.BatchNormState{
		RunningMean: bn.runningMean,
		RunningVar:  bn.runningVar,
		Momentum:    bn.momentum,
		Eps:         bn.eps,
		Training:    bn.training,
	})
	return tensor.New[float32, B](out, backend)
}

// Parameters returns gamma and beta.
func (bn *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.gamma, bn.beta}
}

// StateDict returns the affine parameters and the running statistics.
func (bn *BatchNorm2D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight":       bn.gamma.Raw(),
		"bias":         bn.beta.Raw(),
		"running_mean": bn.runningMean,
		"running_var":  bn.runningVar,
	}
}

// SetTraining switches between batch and running statistics.
func (bn *BatchNorm2D[B]) SetTraining(training bool) {
	bn.training = training
}

// String returns a PyTorch-style description of the layer.
func (bn *BatchNorm2D[B]) String() string {
	return fmt.Sprintf("BatchNorm2d(%d, eps=%g, momentum=%g)", bn.numFeatures, bn.eps, bn.momentum)
}
