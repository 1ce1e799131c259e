package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"

	"github.com/mimic-ml/mimic/internal/tensor"
)

// Conv2DInputBackward computes the gradient w.r.t. the input of Conv2D.
//
// With G the output gradient rearranged to [C_out, N*H_out*W_out] and K the
// kernel as [C_out, C_in*K_h*K_w], the column gradient is G^T @ K; col2im
// scatters it back onto [N, C_in, H, W].
//
// References:
//   - "A guide to convolution arithmetic for deep learning" (Dumoulin & Visin, 2016)
func (cpu *CPUBackend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride int, pad tensor.Padding) *tensor.RawTensor {
	d := newConvDims("conv2d input backward", input.Shape(), kernel.Shape(), stride, pad)
	checkConvGrad(grad, d)

	g := make([]float32, d.cOut*d.colLen)
	batchMajorToChannelMajor(g, grad.AsFloat32(), d)

	col := make([]float32, d.colLen*d.colWidth)
	gemm(blas.Trans, blas.NoTrans,
		general(d.cOut, d.colLen, g),
		general(d.cOut, d.colWidth, kernel.AsFloat32()),
		general(d.colLen, d.colWidth, col))

	inputGrad := newRaw("conv2d input backward", input.Shape())
	col2im(inputGrad.AsFloat32(), col, d)
	return inputGrad
}

// Conv2DKernelBackward computes the gradient w.r.t. the kernel of Conv2D as
// G @ im2col(input).
func (cpu *CPUBackend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride int, pad tensor.Padding) *tensor.RawTensor {
	d := newConvDims("conv2d kernel backward", input.Shape(), kernel.Shape(), stride, pad)
	checkConvGrad(grad, d)

	g := make([]float32, d.cOut*d.colLen)
	batchMajorToChannelMajor(g, grad.AsFloat32(), d)

	col := make([]float32, d.colLen*d.colWidth)
	cpu.im2col(col, input.AsFloat32(), d)

	kernelGrad := newRaw("conv2d kernel backward", kernel.Shape())
	gemm(blas.NoTrans, blas.NoTrans,
		general(d.cOut, d.colLen, g),
		general(d.colLen, d.colWidth, col),
		general(d.cOut, d.colWidth, kernelGrad.AsFloat32()))
	return kernelGrad
}

func checkConvGrad(grad *tensor.RawTensor, d convDims) {
	want := tensor.Shape{d.n, d.cOut, d.hOut, d.wOut}
	if !grad.Shape().Equal(want) {
		panic(fmt.Sprintf("conv2d backward: gradient shape %v, want %v", grad.Shape(), want))
	}
}
