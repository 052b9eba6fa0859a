package colorizer

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/born-ml/colorize/internal/nn"
	"github.com/born-ml/colorize/internal/tensor"
)

// ErrLayerParamLength is returned when a list-valued block parameter does not
// have exactly one entry per layer.
var ErrLayerParamLength = errors.New("layer parameter length mismatch")

// ErrInvalidBlock is returned for block specifications that cannot be built.
var ErrInvalidBlock = errors.New("invalid block")

// ConvKind selects the convolution variant of a layer.
type ConvKind int

// Convolution variants.
const (
	Conv ConvKind = iota
	ConvTranspose
)

// String returns the PyTorch class name of the variant.
func (k ConvKind) String() string {
	if k == ConvTranspose {
		return "ConvTranspose2d"
	}
	return "Conv2d"
}

// Param is a block parameter given either as one value for every layer or
// as one value per layer. The zero Param selects the default.
type Param[T any] struct {
	values []T
	list   bool
}

// Scalar broadcasts v to every layer of the block.
func Scalar[T any](v T) Param[T] {
	return Param[T]{values: []T{v}}
}

// PerLayer assigns vs positionally, one entry per layer.
func PerLayer[T any](vs ...T) Param[T] {
	return Param[T]{values: vs, list: true}
}

func (p Param[T]) resolve(name string, layers int, def T) ([]T, error) {
	out := make([]T, layers)
	switch {
	case len(p.values) == 0 && !p.list:
		for i := range out {
			out[i] = def
		}
	case !p.list:
		for i := range out {
			out[i] = p.values[0]
		}
	case len(p.values) != layers:
		return nil, fmt.Errorf("%w: %s has %d entries for %d layers", ErrLayerParamLength, name, len(p.values), layers)
	default:
		copy(out, p.values)
	}
	return out, nil
}

// LayerSpec describes one convolutional layer of a block.
type LayerSpec struct {
	InChannels  int
	OutChannels int
	KernelSize  int
	Stride      int
	Dilation    int
	Padding     int
	Kind        ConvKind
	Norm        bool
}

// BlockSpec describes a block of k layers mapping Channels[i] to
// Channels[i+1]. Unset parameters default to kernel 3, stride 1,
// dilation 1, padding 1, standard convolution and batch norm on.
type BlockSpec struct {
	Channels   []int
	KernelSize Param[int]
	Stride     Param[int]
	Dilation   Param[int]
	Padding    Param[int]
	Kind       Param[ConvKind]
	Norm       Param[bool]
	Dropout    float32
}

// Layers resolves the spec into one descriptor per layer.
func (s BlockSpec) Layers() ([]LayerSpec, error) {
	if len(s.Channels) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 channel counts, got %d", ErrInvalidBlock, len(s.Channels))
	}
	for i, c := range s.Channels {
		if c <= 0 {
			return nil, fmt.Errorf("%w: channels[%d] = %d", ErrInvalidBlock, i, c)
		}
	}
	if s.Dropout < 0 || s.Dropout >= 1 {
		return nil, fmt.Errorf("%w: dropout %g outside [0, 1)", ErrInvalidBlock, s.Dropout)
	}

	n := len(s.Channels) - 1
	kernels, err := s.KernelSize.resolve("kernel_size", n, 3)
	if err != nil {
		return nil, err
	}
	strides, err := s.Stride.resolve("stride", n, 1)
	if err != nil {
		return nil, err
	}
	dilations, err := s.Dilation.resolve("dilation", n, 1)
	if err != nil {
		return nil, err
	}
	paddings, err := s.Padding.resolve("padding", n, 1)
	if err != nil {
		return nil, err
	}
	kinds, err := s.Kind.resolve("conv_type", n, Conv)
	if err != nil {
		return nil, err
	}
	norms, err := s.Norm.resolve("norm_layer", n, true)
	if err != nil {
		return nil, err
	}

	layers := make([]LayerSpec, n)
	for i := range layers {
		l := LayerSpec{
			InChannels:  s.Channels[i],
			OutChannels: s.Channels[i+1],
			KernelSize:  kernels[i],
			Stride:      strides[i],
			Dilation:    dilations[i],
			Padding:     paddings[i],
			Kind:        kinds[i],
			Norm:        norms[i],
		}
		if l.KernelSize <= 0 || l.Stride <= 0 || l.Dilation <= 0 || l.Padding < 0 {
			return nil, fmt.Errorf("%w: layer %d: %+v", ErrInvalidBlock, i, l)
		}
		layers[i] = l
	}
	return layers, nil
}

// BlockBuilder is the mutable container returned by BuildBasicBlock. More
// layers can be appended until Finalize turns it into an immutable
// Sequential.
type BlockBuilder[B tensor.Backend] struct {
	modules   []nn.Module[B]
	finalized bool
}

// Append adds a module after the existing layers.
//
// Panics if the builder has already been finalized.
func (b *BlockBuilder[B]) Append(m nn.Module[B]) {
	if b.finalized {
		panic("BlockBuilder: Append after Finalize")
	}
	b.modules = append(b.modules, m)
}

// Len returns the number of modules appended so far.
func (b *BlockBuilder[B]) Len() int {
	return len(b.modules)
}

// Finalize returns the block. The builder cannot be used afterwards.
func (b *BlockBuilder[B]) Finalize() *nn.Sequential[B] {
	if b.finalized {
		panic("BlockBuilder: Finalize called twice")
	}
	b.finalized = true
	return nn.NewSequential(b.modules...)
}

// BuildBasicBlock creates conv -> [BatchNorm2D] -> ReLU for every layer of
// spec, followed by Dropout when spec.Dropout > 0.
func BuildBasicBlock[B tensor.Backend](spec BlockSpec, rng *rand.Rand, backend B) (*BlockBuilder[B], error) {
	layers, err := spec.Layers()
	if err != nil {
		return nil, err
	}

	b := &BlockBuilder[B]{}
	for _, l := range layers {
		p := tensor.ConvParams{Stride: l.Stride, Padding: l.Padding, Dilation: l.Dilation}
		if l.Kind == ConvTranspose {
			b.Append(nn.NewConvTranspose2D(l.InChannels, l.OutChannels, l.KernelSize, p, true, rng, backend))
		} else {
			b.Append(nn.NewConv2D(l.InChannels, l.OutChannels, l.KernelSize, p, true, rng, backend))
		}
		if l.Norm {
			b.Append(nn.NewBatchNorm2D(l.OutChannels, backend))
		}
		b.Append(nn.NewReLU[B]())
	}
	if spec.Dropout > 0 {
		b.Append(nn.NewDropout[B](spec.Dropout, rng))
	}
	return b, nil
}
