package cpu

import (
	"fmt"

	"github.com/born-ml/colorize/internal/tensor"
)

// convTranspose2dDims validates input [N, C_in, H, W] and kernel
// [C_in, C_out, K_h, K_w] (the PyTorch layout for transposed convolutions).
func convTranspose2dDims(op string, input, kernel *tensor.RawTensor, p tensor.ConvParams) convDims {
	requireFloat32(op, input, kernel)
	checkConvParams(op, p)
	in, k := input.Shape(), kernel.Shape()
	if len(in) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,C,H,W], got %v", op, in))
	}
	if len(k) != 4 {
		panic(fmt.Sprintf("%s: kernel must be 4D [C_in,C_out,K_h,K_w], got %v", op, k))
	}
	if in[1] != k[0] {
		panic(fmt.Sprintf("%s: input channels %d != kernel input channels %d", op, in[1], k[0]))
	}
	d := convDims{
		n: in[0], cIn: in[1], h: in[2], w: in[3],
		cOut: k[1], kh: k[2], kw: k[3],
		p: p,
	}
	d.hOut = tensor.ConvTransposeOutputSize(d.h, d.kh, p.Stride, p.Padding, p.Dilation)
	d.wOut = tensor.ConvTransposeOutputSize(d.w, d.kw, p.Stride, p.Padding, p.Dilation)
	if d.hOut <= 0 || d.wOut <= 0 {
		panic(fmt.Sprintf("%s: output size %dx%d is empty for input %v kernel %v", op, d.hOut, d.wOut, in, k))
	}
	return d
}

// transposeGeometry lowers the transposed convolution output: the output
// image sampled by the kernel yields exactly the H×W input positions.
func (d convDims) transposeGeometry() patchGeometry {
	return patchGeometry{
		channels: d.cOut, height: d.hOut, width: d.wOut,
		kernelH: d.kh, kernelW: d.kw,
		outH: d.h, outW: d.w,
		p: d.p,
	}
}

// ConvTranspose2D performs a 2D transposed convolution (fractionally strided).
//
// Input shape: [N, C_in, H, W]
// Kernel shape: [C_in, C_out, K_h, K_w]
// Output shape: [N, C_out, H_out, W_out]
//
// where H_out = (H-1)*stride - 2*padding + dilation*(K_h-1) + 1.
// With kernel 4, stride 2 and padding 1 the resolution doubles.
//
// The operation is the adjoint of Conv2D: col = Wᵀ × X, then col2im.
func (cpu *CPUBackend) ConvTranspose2D(input, kernel *tensor.RawTensor, p tensor.ConvParams) *tensor.RawTensor {
	d := convTranspose2dDims("conv_transpose2d", input, kernel, p)
	g := d.transposeGeometry()

	output := tensor.MustNewRaw(tensor.Shape{d.n, d.cOut, d.hOut, d.wOut}, tensor.Float32, cpu.device)
	in, w, out := input.AsFloat32(), kernel.AsFloat32(), output.AsFloat32()

	k, cols := g.rows(), g.cols()
	col := make([]float32, k*cols)
	inPlane, outPlane := d.cIn*cols, d.cOut*d.hOut*d.wOut

	for n := 0; n < d.n; n++ {
		gemm(true, false, k, cols, d.cIn, 1, w, k, in[n*inPlane:(n+1)*inPlane], cols, 0, col, cols)
		col2im(col, out[n*outPlane:(n+1)*outPlane], g, cpu.parallel)
	}
	return output
}

// ConvTranspose2DInputBackward computes ∂L/∂input for ConvTranspose2D,
// which is an ordinary convolution of dY with the same kernel.
func (cpu *CPUBackend) ConvTranspose2DInputBackward(input, kernel, grad *tensor.RawTensor, p tensor.ConvParams) *tensor.RawTensor {
	d := convTranspose2dDims("conv_transpose2d_input_backward", input, kernel, p)
	requireFloat32("conv_transpose2d_input_backward", grad)
	g := d.transposeGeometry()

	inputGrad := tensor.MustNewRaw(input.Shape(), tensor.Float32, cpu.device)
	w, dy, dx := kernel.AsFloat32(), grad.AsFloat32(), inputGrad.AsFloat32()

	k, cols := g.rows(), g.cols()
	col := make([]float32, k*cols)
	inPlane, outPlane := d.cIn*cols, d.cOut*d.hOut*d.wOut

	for n := 0; n < d.n; n++ {
		im2col(dy[n*outPlane:(n+1)*outPlane], col, g, cpu.parallel)
		gemm(false, false, d.cIn, cols, k, 1, w, k, col, cols, 0, dx[n*inPlane:(n+1)*inPlane], cols)
	}
	return inputGrad
}

// ConvTranspose2DKernelBackward computes ∂L/∂kernel for ConvTranspose2D.
//
// Accumulates X × im2col(dY)ᵀ over the batch.
func (cpu *CPUBackend) ConvTranspose2DKernelBackward(input, kernel, grad *tensor.RawTensor, p tensor.ConvParams) *tensor.RawTensor {
	d := convTranspose2dDims("conv_transpose2d_kernel_backward", input, kernel, p)
	requireFloat32("conv_transpose2d_kernel_backward", grad)
	g := d.transposeGeometry()

	kernelGrad := tensor.MustNewRaw(kernel.Shape(), tensor.Float32, cpu.device)
	in, dy, dw := input.AsFloat32(), grad.AsFloat32(), kernelGrad.AsFloat32()

	k, cols := g.rows(), g.cols()
	col := make([]float32, k*cols)
	inPlane, outPlane := d.cIn*cols, d.cOut*d.hOut*d.wOut

	for n := 0; n < d.n; n++ {
		im2col(dy[n*outPlane:(n+1)*outPlane], col, g, cpu.parallel)
		gemm(false, true, d.cIn, k, cols, 1, in[n*inPlane:(n+1)*inPlane], cols, col, cols, 1, dw, k)
	}
	return kernelGrad
}
