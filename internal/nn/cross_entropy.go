package nn

import (
	"fmt"

	"github.com/born-ml/colorize/internal/autodiff/ops"
	"github.com/born-ml/colorize/internal/tensor"
)

// LossBackend is an interface for backends that compute the per-pixel
// classification loss.
type LossBackend interface {
	SpatialCrossEntropy(input, targets *tensor.RawTensor, fromLogits bool, eps float32, reduction ops.Reduction) *tensor.RawTensor
}

// Criterion scores a prediction against integer class targets.
//
// Predictions are [N, C, H, W] (or [N, C]), targets are [N, H, W] (or [N])
// int64 class indices. The result is a scalar tensor.
type Criterion[B tensor.Backend] interface {
	Forward(pred *tensor.Tensor[float32, B], targets *tensor.Tensor[int64, B]) *tensor.Tensor[float32, B]
	Name() string
}

// CrossEntropyLoss computes cross-entropy from raw, unnormalized scores.
//
// Mathematical Formulation:
//
//	Loss = logsumexp(x) - x[target]
//
// Gradient (Backward):
//
//	∂L/∂x = Softmax(x) - y_one_hot
type CrossEntropyLoss[B tensor.Backend] struct {
	reduction ops.Reduction
}

// NewCrossEntropyLoss creates a cross-entropy criterion.
func NewCrossEntropyLoss[B tensor.Backend](reduction ops.Reduction) *CrossEntropyLoss[B] {
	return &CrossEntropyLoss[B]{reduction: reduction}
}

// Forward computes the loss of logits against targets.
func (c *CrossEntropyLoss[B]) Forward(logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int64, B]) *tensor.Tensor[float32, B] {
	return spatialLoss(logits, targets, true, 0, c.reduction)
}

// Name returns "CrossEntropyLoss".
func (c *CrossEntropyLoss[B]) Name() string {
	return "CrossEntropyLoss"
}

// String returns a PyTorch-style description of the criterion.
func (c *CrossEntropyLoss[B]) String() string {
	return fmt.Sprintf("CrossEntropyLoss(reduction=%s)", c.reduction)
}

// MultinomialCrossEntropyLoss is the negative log-likelihood of the target
// class under an already normalized distribution, such as the softmax
// output of the colorization head:
//
//	Loss = -log(p[target] + eps)
type MultinomialCrossEntropyLoss[B tensor.Backend] struct {
	reduction ops.Reduction
	eps       float32
}

// NewMultinomialCrossEntropyLoss creates a multinomial cross-entropy criterion.
func NewMultinomialCrossEntropyLoss[B tensor.Backend](reduction ops.Reduction, eps float32) *MultinomialCrossEntropyLoss[B] {
	return &MultinomialCrossEntropyLoss[B]{reduction: reduction, eps: eps}
}

// Forward computes the loss of probabilities against targets.
func (c *MultinomialCrossEntropyLoss[B]) Forward(probs *tensor.Tensor[float32, B], targets *tensor.Tensor[int64, B]) *tensor.Tensor[float32, B] {
	return spatialLoss(probs, targets, false, c.eps, c.reduction)
}

// Name returns "MultinomialCrossEntropyLoss".
func (c *MultinomialCrossEntropyLoss[B]) Name() string {
	return "MultinomialCrossEntropyLoss"
}

// String returns a description of the criterion.
func (c *MultinomialCrossEntropyLoss[B]) String() string {
	return fmt.Sprintf("MultinomialCrossEntropyLoss(reduction=%s, eps=%g)", c.reduction, c.eps)
}

func spatialLoss[B tensor.Backend](pred *tensor.Tensor[float32, B], targets *tensor.Tensor[int64, B], fromLogits bool, eps float32, reduction ops.Reduction) *tensor.Tensor[float32, B] {
	backend := pred.Backend()
	lb, ok := any(backend).(LossBackend)
	if !ok {
		panic("cross entropy: backend must implement SpatialCrossEntropy (use autodiff.AutodiffBackend)")
	}
	out := lb.SpatialCrossEntropy(pred.Raw(), targets.Raw(), fromLogits, eps, reduction)
	return tensor.New[float32, B](out, backend)
}
