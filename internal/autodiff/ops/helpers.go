package ops

import (
	"fmt"

	"github.com/born-ml/colorize/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
//	Forward: a[1,C,1,1] + b[N,C,H,W] -> c[N,C,H,W]
//	Backward: grad_c[N,C,H,W] -> grad_a[1,C,1,1] (sum over N, H, W)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	gradShape := grad.Shape()
	if gradShape.Equal(targetShape) {
		return grad
	}

	result := grad
	for len(result.Shape()) > len(targetShape) {
		result = backend.SumDim(result, 0, false)
	}

	shape := result.Shape()
	for i := range targetShape {
		if targetShape[i] == 1 && shape[i] > 1 {
			result = backend.SumDim(result, i, true)
		}
	}

	if !result.Shape().Equal(targetShape) {
		if result.NumElements() != targetShape.NumElements() {
			panic(fmt.Sprintf("reduceBroadcast: cannot reduce %v to %v", gradShape, targetShape))
		}
		result = backend.Reshape(result, targetShape)
	}
	return result
}

// scalarGrad returns the value of a one-element output gradient.
func scalarGrad(outputGrad *tensor.RawTensor) float32 {
	if outputGrad.NumElements() != 1 {
		panic(fmt.Sprintf("expected scalar output gradient, got shape %v", outputGrad.Shape()))
	}
	return outputGrad.AsFloat32()[0]
}
