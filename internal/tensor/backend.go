package tensor

// ConvParams describes the geometry shared by Conv2D and ConvTranspose2D.
// Stride, padding and dilation apply to both spatial axes.
type ConvParams struct {
	Stride   int
	Padding  int
	Dilation int
}

// DefaultConvParams returns stride 1, padding 0, dilation 1.
func DefaultConvParams() ConvParams {
	return ConvParams{Stride: 1, Padding: 0, Dilation: 1}
}

// Backend defines the interface that compute backends implement.
// Backends handle the actual computation for tensor operations and panic
// on shape or dtype misuse.
type Backend interface {
	// Element-wise binary operations with NumPy broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// Scalar operations.
	AddScalar(x *RawTensor, scalar float32) *RawTensor
	MulScalar(x *RawTensor, scalar float32) *RawTensor

	// Shape operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor

	// Reductions.
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor

	// Softmax along a dimension.
	Softmax(x *RawTensor, dim int) *RawTensor

	// Convolution. Kernel layout is [C_out, C_in, K_h, K_w].
	Conv2D(input, kernel *RawTensor, p ConvParams) *RawTensor
	Conv2DInputBackward(input, kernel, grad *RawTensor, p ConvParams) *RawTensor
	Conv2DKernelBackward(input, kernel, grad *RawTensor, p ConvParams) *RawTensor

	// Transposed convolution. Kernel layout is [C_in, C_out, K_h, K_w].
	ConvTranspose2D(input, kernel *RawTensor, p ConvParams) *RawTensor
	ConvTranspose2DInputBackward(input, kernel, grad *RawTensor, p ConvParams) *RawTensor
	ConvTranspose2DKernelBackward(input, kernel, grad *RawTensor, p ConvParams) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
