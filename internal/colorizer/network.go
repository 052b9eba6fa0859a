package colorizer

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/born-ml/colorize/internal/nn"
	"github.com/born-ml/colorize/internal/tensor"
)

// ErrInputShape is returned by CheckInput for inputs the network cannot take.
var ErrInputShape = errors.New("invalid input shape")

// Downsample is the total resolution reduction of the encoder. Input height
// and width must be multiples of it.
const Downsample = 8

type namedBlock[B tensor.Backend] struct {
	name  string
	block *nn.Sequential[B]
}

// Network is the modified colorization network.
//
// Topology for channel multiplier m:
//
//	model1   1 -> 64m -> 64m                 stride [1, 2]
//	model2   64m -> 128m -> 128m             stride [1, 2]
//	model3   128m -> 256m x3                 stride [1, 1, 2]
//	model4   256m -> 512m x3
//	model5   512m x3                         dilation 2, padding 2
//	model6   512m x3                         dilation 2, padding 2
//	model7   512m x3
//	extra    NumExtraBlocks x (512m x3)
//	model8   512m -> 256m x3                 ConvTranspose k4 s2, no norm
//	model9   256m -> 128m x3                 ConvTranspose k4 s2, no norm
//	model10  128m -> 64m x3 + 1x1 -> 313     ConvTranspose k4 s2, no norm
//	softmax  over the bin dimension
type Network[B tensor.Backend] struct {
	BaseColor[B]

	config  Config
	blocks  []namedBlock[B]
	softmax *nn.Softmax[B]
}

// NewNetwork builds the network. Weights are drawn from a generator seeded
// with cfg.Seed, so equal configs give equal networks.
func NewNetwork[B tensor.Backend](cfg Config, backend B) (*Network[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	m := cfg.ChannelMultiplier
	drop := cfg.DropoutLayers

	decoder := func(in, out int, p float32) BlockSpec {
		return BlockSpec{
			Channels:   []int{in, out, out, out},
			KernelSize: PerLayer(4, 3, 3),
			Stride:     PerLayer(2, 1, 1),
			Kind:       PerLayer(ConvTranspose, Conv, Conv),
			Norm:       Scalar(false),
			Dropout:    p,
		}
	}
	wide := []int{512 * m, 512 * m, 512 * m, 512 * m}

	type stage struct {
		name string
		spec BlockSpec
	}
	specs := []stage{
		{"model1", BlockSpec{Channels: []int{1, 64 * m, 64 * m}, Stride: PerLayer(1, 2), Dropout: drop[0]}},
		{"model2", BlockSpec{Channels: []int{64 * m, 128 * m, 128 * m}, Stride: PerLayer(1, 2), Dropout: drop[1]}},
		{"model3", BlockSpec{Channels: []int{128 * m, 256 * m, 256 * m, 256 * m}, Stride: PerLayer(1, 1, 2), Dropout: drop[2]}},
		{"model4", BlockSpec{Channels: []int{256 * m, 512 * m, 512 * m, 512 * m}, Dropout: drop[3]}},
		{"model5", BlockSpec{Channels: wide, Dilation: Scalar(2), Padding: Scalar(2), Dropout: drop[4]}},
		{"model6", BlockSpec{Channels: wide, Dilation: Scalar(2), Padding: Scalar(2), Dropout: drop[5]}},
		{"model7", BlockSpec{Channels: wide, Dropout: drop[6]}},
	}
	for i := 0; i < cfg.NumExtraBlocks; i++ {
		specs = append(specs, stage{fmt.Sprintf("additional_layers.%d", i), BlockSpec{Channels: wide}})
	}
	specs = append(specs,
		stage{"model8", decoder(512*m, 256*m, drop[7])},
		stage{"model9", decoder(256*m, 128*m, drop[8])},
		stage{"model10", decoder(128*m, 64*m, drop[9])},
	)

	net := &Network[B]{
		config:  cfg,
		softmax: nn.NewSoftmax[B](1),
	}
	for i, s := range specs {
		builder, err := BuildBasicBlock(s.spec, rng, backend)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		if i == len(specs)-1 {
			builder.Append(nn.NewConv2D(64*m, NumBins, 1, tensor.ConvParams{Stride: 1, Padding: 0, Dilation: 1}, true, rng, backend))
		}
		net.blocks = append(net.blocks, namedBlock[B]{name: s.name, block: builder.Finalize()})
	}
	return net, nil
}

// Config returns the configuration the network was built from.
func (n *Network[B]) Config() Config {
	return n.config
}

// CheckInput reports whether a batch of the given shape can be colorized.
func CheckInput(shape tensor.Shape) error {
	if len(shape) != 4 || shape[1] != 1 {
		return fmt.Errorf("%w: want [N, 1, H, W], got %v", ErrInputShape, shape)
	}
	if shape[0] <= 0 || shape[2] <= 0 || shape[3] <= 0 {
		return fmt.Errorf("%w: empty dimension in %v", ErrInputShape, shape)
	}
	if shape[2]%Downsample != 0 || shape[3]%Downsample != 0 {
		return fmt.Errorf("%w: H and W must be multiples of %d, got %v", ErrInputShape, Downsample, shape)
	}
	return nil
}

// CheckInput reports whether the network accepts a batch of the given shape.
func (n *Network[B]) CheckInput(shape tensor.Shape) error {
	return CheckInput(shape)
}

// Forward maps raw luminance [N, 1, H, W] (L in [0, 100]) to bin
// probabilities [N, 313, H, W].
//
// Panics if the input shape is rejected by CheckInput.
func (n *Network[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if err := CheckInput(input.Shape()); err != nil {
		panic(err.Error())
	}
	x := n.NormalizeL(input)
	for _, b := range n.blocks {
		x = b.block.Forward(x)
	}
	return n.softmax.Forward(x)
}

// Parameters returns the trainable parameters of every block in forward order.
func (n *Network[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, b := range n.blocks {
		params = append(params, b.block.Parameters()...)
	}
	return params
}

// NumParameters returns the number of trainable scalars.
func (n *Network[B]) NumParameters() int {
	total := 0
	for _, p := range n.Parameters() {
		total += p.Raw().NumElements()
	}
	return total
}

// StateDict returns live parameters and buffers keyed like
// "model1.0.weight" or "additional_layers.0.1.running_mean".
func (n *Network[B]) StateDict() map[string]*tensor.RawTensor {
	sd := make(map[string]*tensor.RawTensor)
	for _, b := range n.blocks {
		nn.PrefixState(sd, b.name, b.block.StateDict())
	}
	return sd
}

// LoadStateDict copies sd into the network's parameters and buffers.
func (n *Network[B]) LoadStateDict(sd map[string]*tensor.RawTensor) error {
	return nn.LoadState(n.StateDict(), sd)
}

// SetTraining switches dropout and batch norm between training and inference.
func (n *Network[B]) SetTraining(training bool) {
	for _, b := range n.blocks {
		b.block.SetTraining(training)
	}
}

// BlockNames returns the block names in forward order.
func (n *Network[B]) BlockNames() []string {
	names := make([]string, len(n.blocks))
	for i, b := range n.blocks {
		names[i] = b.name
	}
	return names
}

// String prints the block structure.
func (n *Network[B]) String() string {
	var sb strings.Builder
	sb.WriteString("ModifiedColorizer(\n")
	for _, b := range n.blocks {
		fmt.Fprintf(&sb, "  (%s): %s\n", b.name, strings.ReplaceAll(b.block.String(), "\n", "\n  "))
	}
	fmt.Fprintf(&sb, "  (softmax): %s\n)", n.softmax)
	return sb.String()
}
