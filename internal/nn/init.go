package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/colorize/internal/tensor"
)

// KaimingUniform initializes a convolution weight the way PyTorch does by
// default (kaiming_uniform with a = √5), which reduces to
//
//	U(-1/sqrt(fan_in), 1/sqrt(fan_in))
//
// The generator is explicit so that a fixed seed reproduces the network.
func KaimingUniform[B tensor.Backend](fanIn int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	bound := float32(1 / math.Sqrt(float64(fanIn)))
	return tensor.Uniform(shape, -bound, bound, rng, backend)
}

// BiasUniform initializes a bias vector from U(-1/sqrt(fan_in), 1/sqrt(fan_in)).
func BiasUniform[B tensor.Backend](fanIn, size int, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	bound := float32(1 / math.Sqrt(float64(fanIn)))
	return tensor.Uniform(tensor.Shape{size}, -bound, bound, rng, backend)
}
