package cpu

import (
	"fmt"

	"github.com/born-ml/colorize/internal/tensor"
)

// convDims holds the validated dimensions of a convolution call.
type convDims struct {
	n, cIn, h, w int
	cOut, kh, kw int
	hOut, wOut   int
	p            tensor.ConvParams
}

// checkConvParams panics on geometry that cannot produce an output.
func checkConvParams(op string, p tensor.ConvParams) {
	if p.Stride < 1 || p.Dilation < 1 || p.Padding < 0 {
		panic(fmt.Sprintf("%s: invalid params stride=%d padding=%d dilation=%d", op, p.Stride, p.Padding, p.Dilation))
	}
}

// conv2dDims validates input [N, C_in, H, W] and kernel [C_out, C_in, K_h, K_w].
func conv2dDims(op string, input, kernel *tensor.RawTensor, p tensor.ConvParams) convDims {
	requireFloat32(op, input, kernel)
	checkConvParams(op, p)
	in, k := input.Shape(), kernel.Shape()
	if len(in) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,C,H,W], got %v", op, in))
	}
	if len(k) != 4 {
		panic(fmt.Sprintf("%s: kernel must be 4D [C_out,C_in,K_h,K_w], got %v", op, k))
	}
	if in[1] != k[1] {
		panic(fmt.Sprintf("%s: input channels %d != kernel channels %d", op, in[1], k[1]))
	}
	d := convDims{
		n: in[0], cIn: in[1], h: in[2], w: in[3],
		cOut: k[0], kh: k[2], kw: k[3],
		p: p,
	}
	d.hOut = tensor.ConvOutputSize(d.h, d.kh, p.Stride, p.Padding, p.Dilation)
	d.wOut = tensor.ConvOutputSize(d.w, d.kw, p.Stride, p.Padding, p.Dilation)
	if d.hOut <= 0 || d.wOut <= 0 {
		panic(fmt.Sprintf("%s: output size %dx%d is empty for input %v kernel %v", op, d.hOut, d.wOut, in, k))
	}
	return d
}

// geometry returns the im2col lowering of the convolution input.
func (d convDims) geometry() patchGeometry {
	return patchGeometry{
		channels: d.cIn, height: d.h, width: d.w,
		kernelH: d.kh, kernelW: d.kw,
		outH: d.hOut, outW: d.wOut,
		p: d.p,
	}
}

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape: [N, C_in, H, W]
// Kernel shape: [C_out, C_in, K_h, K_w]
// Output shape: [N, C_out, H_out, W_out]
//
// where H_out = (H + 2*padding - dilation*(K_h-1) - 1)/stride + 1.
//
// Each batch item is unfolded into a [C_in*K_h*K_w, H_out*W_out] column
// matrix and multiplied by the kernel viewed as [C_out, C_in*K_h*K_w].
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, p tensor.ConvParams) *tensor.RawTensor {
	d := conv2dDims("conv2d", input, kernel, p)
	g := d.geometry()

	output := tensor.MustNewRaw(tensor.Shape{d.n, d.cOut, d.hOut, d.wOut}, tensor.Float32, cpu.device)
	in, w, out := input.AsFloat32(), kernel.AsFloat32(), output.AsFloat32()

	k, cols := g.rows(), g.cols()
	col := make([]float32, k*cols)
	inPlane, outPlane := d.cIn*d.h*d.w, d.cOut*cols

	for n := 0; n < d.n; n++ {
		im2col(in[n*inPlane:(n+1)*inPlane], col, g, cpu.parallel)
		gemm(false, false, d.cOut, cols, k, 1, w, k, col, cols, 0, out[n*outPlane:(n+1)*outPlane], cols)
	}
	return output
}

// Conv2DInputBackward computes ∂L/∂input for Conv2D.
//
// For each batch item: dcol = Wᵀ × dY, then col2im folds dcol into ∂L/∂input.
func (cpu *CPUBackend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, p tensor.ConvParams) *tensor.RawTensor {
	d := conv2dDims("conv2d_input_backward", input, kernel, p)
	requireFloat32("conv2d_input_backward", grad)
	g := d.geometry()

	inputGrad := tensor.MustNewRaw(input.Shape(), tensor.Float32, cpu.device)
	w, dy, dx := kernel.AsFloat32(), grad.AsFloat32(), inputGrad.AsFloat32()

	k, cols := g.rows(), g.cols()
	dcol := make([]float32, k*cols)
	inPlane, outPlane := d.cIn*d.h*d.w, d.cOut*cols

	for n := 0; n < d.n; n++ {
		gemm(true, false, k, cols, d.cOut, 1, w, k, dy[n*outPlane:(n+1)*outPlane], cols, 0, dcol, cols)
		col2im(dcol, dx[n*inPlane:(n+1)*inPlane], g, cpu.parallel)
	}
	return inputGrad
}

// Conv2DKernelBackward computes ∂L/∂kernel for Conv2D.
//
// Accumulates dY × colᵀ over the batch.
func (cpu *CPUBackend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, p tensor.ConvParams) *tensor.RawTensor {
	d := conv2dDims("conv2d_kernel_backward", input, kernel, p)
	requireFloat32("conv2d_kernel_backward", grad)
	g := d.geometry()

	kernelGrad := tensor.MustNewRaw(kernel.Shape(), tensor.Float32, cpu.device)
	in, dy, dw := input.AsFloat32(), grad.AsFloat32(), kernelGrad.AsFloat32()

	k, cols := g.rows(), g.cols()
	col := make([]float32, k*cols)
	inPlane, outPlane := d.cIn*d.h*d.w, d.cOut*cols

	for n := 0; n < d.n; n++ {
		im2col(in[n*inPlane:(n+1)*inPlane], col, g, cpu.parallel)
		gemm(false, true, d.cOut, k, cols, 1, dy[n*outPlane:(n+1)*outPlane], cols, col, cols, 1, dw, k)
	}
	return kernelGrad
}
