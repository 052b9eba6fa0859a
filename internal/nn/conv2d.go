package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/colorize/internal/tensor"
)

// Conv2D is a 2D convolutional layer.
//
// Applies a 2D convolution over an input signal composed of several input planes.
//
// Input shape: [batch, in_channels, height, width]
// Output shape: [batch, out_channels, out_height, out_width]
//
// where:
//
//	out_height = (height + 2*padding - dilation*(kernel_h-1) - 1) / stride + 1
//
// Example:
//
//	conv := nn.NewConv2D(64, 128, 3, tensor.ConvParams{Stride: 1, Padding: 2, Dilation: 2}, true, rng, backend)
//	output := conv.Forward(input) // [N, 64, H, W] -> [N, 128, H, W]
type Conv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	params      tensor.ConvParams

	weight *Parameter[B] // [out_channels, in_channels, kernel_h, kernel_w]
	bias   *Parameter[B] // [out_channels] or nil
}

// NewConv2D creates a new Conv2D layer with PyTorch default initialization.
func NewConv2D[B tensor.Backend](inChannels, outChannels, kernelSize int, p tensor.ConvParams, useBias bool, rng *rand.Rand, backend B) *Conv2D[B] {
	fanIn := inChannels * kernelSize * kernelSize
	c := &Conv2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		params:      p,
		weight: NewParameter("weight",
			KaimingUniform(fanIn, tensor.Shape{outChannels, inChannels, kernelSize, kernelSize}, rng, backend)),
	}
	if useBias {
		c.bias = NewParameter("bias", BiasUniform(fanIn, outChannels, rng, backend))
	}
	return c
}

// Forward computes the convolution and adds the bias broadcast over [N, C, H, W].
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	out := tensor.New[float32, B](backend.Conv2D(input.Raw(), c.weight.Raw(), c.params), backend)
	if c.bias != nil {
		out = out.Add(c.bias.Tensor().Reshape(1, c.outChannels, 1, 1))
	}
	return out
}

// Parameters returns the weight and, when present, the bias.
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	if c.bias == nil {
		return []*Parameter[B]{c.weight}
	}
	return []*Parameter[B]{c.weight, c.bias}
}

// StateDict returns the live weight and bias tensors.
func (c *Conv2D[B]) StateDict() map[string]*tensor.RawTensor {
	sd := map[string]*tensor.RawTensor{"weight": c.weight.Raw()}
	if c.bias != nil {
		sd["bias"] = c.bias.Raw()
	}
	return sd
}

// Weight returns the weight parameter.
func (c *Conv2D[B]) Weight() *Parameter[B] {
	return c.weight
}

// String returns a PyTorch-style description of the layer.
func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2d(%d, %d, kernel_size=%d, stride=%d, padding=%d, dilation=%d, bias=%t)",
		c.inChannels, c.outChannels, c.kernelSize, c.params.Stride, c.params.Padding, c.params.Dilation, c.bias != nil)
}

// ConvTranspose2D is a 2D transposed convolution (fractionally strided)
// layer, used to upsample feature maps.
//
// Weight shape is [in_channels, out_channels, kernel_h, kernel_w] and
//
//	out_height = (height-1)*stride - 2*padding + dilation*(kernel_h-1) + 1
type ConvTranspose2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	params      tensor.ConvParams

	weight *Parameter[B]
	bias   *Parameter[B]
}

// NewConvTranspose2D creates a transposed convolution with PyTorch default
// initialization (fan_in taken from the weight's second dimension).
func NewConvTranspose2D[B tensor.Backend](inChannels, outChannels, kernelSize int, p tensor.ConvParams, useBias bool, rng *rand.Rand, backend B) *ConvTranspose2D[B] {
	fanIn := outChannels * kernelSize * kernelSize
	c := &ConvTranspose2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		params:      p,
		weight: NewParameter("weight",
			KaimingUniform(fanIn, tensor.Shape{inChannels, outChannels, kernelSize, kernelSize}, rng, backend)),
	}
	if useBias {
		c.bias = NewParameter("bias", BiasUniform(fanIn, outChannels, rng, backend))
	}
	return c
}

// Forward computes the transposed convolution and adds the bias.
func (c *ConvTranspose2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	out := tensor.New[float32, B](backend.ConvTranspose2D(input.Raw(), c.weight.Raw(), c.params), backend)
	if c.bias != nil {
		out = out.Add(c.bias.Tensor().Reshape(1, c.outChannels, 1, 1))
	}
	return out
}

// Parameters returns the weight and, when present, the bias.
func (c *ConvTranspose2D[B]) Parameters() []*Parameter[B] {
	if c.bias == nil {
		return []*Parameter[B]{c.weight}
	}
	return []*Parameter[B]{c.weight, c.bias}
}

// StateDict returns the live weight and bias tensors.
func (c *ConvTranspose2D[B]) StateDict() map[string]*tensor.RawTensor {
	sd := map[string]*tensor.RawTensor{"weight": c.weight.Raw()}
	if c.bias != nil {
		sd["bias"] = c.bias.Raw()
	}
	return sd
}

// String returns a PyTorch-style description of the layer.
func (c *ConvTranspose2D[B]) String() string {
	return fmt.Sprintf("ConvTranspose2d(%d, %d, kernel_size=%d, stride=%d, padding=%d, dilation=%d, bias=%t)",
		c.inChannels, c.outChannels, c.kernelSize, c.params.Stride, c.params.Padding, c.params.Dilation, c.bias != nil)
}
