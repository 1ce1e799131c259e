package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"

	"github.com/mimic-ml/mimic/internal/parallel"
	"github.com/mimic-ml/mimic/internal/tensor"
)

// convDims holds the extents of one convolution.
type convDims struct {
	n, cIn, h, w     int
	cOut, kH, kW     int
	hOut, wOut       int
	stride           int
	pad              tensor.Padding
	colWidth, colLen int
}

func newConvDims(op string, inputShape, kernelShape tensor.Shape, stride int, pad tensor.Padding) convDims {
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,C,H,W], got %dD", op, len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("%s: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", op, len(kernelShape)))
	}
	if inputShape[1] != kernelShape[1] {
		panic(fmt.Sprintf("%s: input channels %d != kernel channels %d", op, inputShape[1], kernelShape[1]))
	}
	if stride < 1 {
		panic(fmt.Sprintf("%s: stride must be positive, got %d", op, stride))
	}

	d := convDims{
		n: inputShape[0], cIn: inputShape[1], h: inputShape[2], w: inputShape[3],
		cOut: kernelShape[0], kH: kernelShape[2], kW: kernelShape[3],
		stride: stride, pad: pad,
	}
	d.hOut = (d.h+pad.Top+pad.Bottom-d.kH)/stride + 1
	d.wOut = (d.w+pad.Left+pad.Right-d.kW)/stride + 1
	if d.hOut <= 0 || d.wOut <= 0 {
		panic(fmt.Sprintf("%s: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", op, d.hOut, d.wOut))
	}
	d.colWidth = d.cIn * d.kH * d.kW
	d.colLen = d.n * d.hOut * d.wOut
	return d
}

// Conv2D performs 2D convolution using im2col algorithm.
//
// Input shape: [batch, in_channels, height, width]
// Kernel shape: [out_channels, in_channels, kernel_h, kernel_w]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Algorithm: Im2col
//  1. Transform input patches into rows of a column matrix (im2col)
//  2. Multiply [C_out, C_in*K_h*K_w] @ col^T with SGEMM
//  3. Rearrange [C_out, N*H_out*W_out] to [N, C_out, H_out, W_out]
//
// Reference: "High Performance Convolutional Neural Networks for Document Processing"
// (Chellapilla et al., 2006).
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride int, pad tensor.Padding) *tensor.RawTensor {
	d := newConvDims("conv2d", input.Shape(), kernel.Shape(), stride, pad)

	col := make([]float32, d.colLen*d.colWidth)
	cpu.im2col(col, input.AsFloat32(), d)

	// [C_out, colWidth] @ [colLen, colWidth]^T -> [C_out, colLen]
	flat := make([]float32, d.cOut*d.colLen)
	gemm(blas.NoTrans, blas.Trans,
		general(d.cOut, d.colWidth, kernel.AsFloat32()),
		general(d.colLen, d.colWidth, col),
		general(d.cOut, d.colLen, flat))

	output := newRaw("conv2d", tensor.Shape{d.n, d.cOut, d.hOut, d.wOut})
	channelMajorToBatchMajor(output.AsFloat32(), flat, d)
	return output
}

// im2col transforms [N, C, H, W] input into a column matrix
// [N * H_out * W_out, C * K_h * K_w]. Each row holds the patch feeding one
// output position; out-of-bounds taps read zero.
func (cpu *CPUBackend) im2col(col, input []float32, d convDims) {
	plane := d.hOut * d.wOut
	parallel.For(d.colLen, func(row int) {
		n, pos := row/plane, row%plane
		hStart := (pos/d.wOut)*d.stride - d.pad.Top
		wStart := (pos%d.wOut)*d.stride - d.pad.Left

		bufIdx := row * d.colWidth
		for c := range d.cIn {
			for kh := range d.kH {
				for kw := range d.kW {
					h, w := hStart+kh, wStart+kw
					if h >= 0 && h < d.h && w >= 0 && w < d.w {
						col[bufIdx] = input[((n*d.cIn+c)*d.h+h)*d.w+w]
					} else {
						col[bufIdx] = 0
					}
					bufIdx++
				}
			}
		}
	}, cpu.cfg)
}

// col2im is the adjoint of im2col: it accumulates every column entry back
// into the input position it was read from.
func col2im(input, col []float32, d convDims) {
	clear(input)
	plane := d.hOut * d.wOut
	for row := range d.colLen {
		n, pos := row/plane, row%plane
		hStart := (pos/d.wOut)*d.stride - d.pad.Top
		wStart := (pos%d.wOut)*d.stride - d.pad.Left

		bufIdx := row * d.colWidth
		for c := range d.cIn {
			for kh := range d.kH {
				for kw := range d.kW {
					h, w := hStart+kh, wStart+kw
					if h >= 0 && h < d.h && w >= 0 && w < d.w {
						input[((n*d.cIn+c)*d.h+h)*d.w+w] += col[bufIdx]
					}
					bufIdx++
				}
			}
		}
	}
}

// channelMajorToBatchMajor rearranges [C_out, N*H_out*W_out] into
// [N, C_out, H_out, W_out].
func channelMajorToBatchMajor(dst, src []float32, d convDims) {
	plane := d.hOut * d.wOut
	for c := range d.cOut {
		for n := range d.n {
			copy(dst[(n*d.cOut+c)*plane:(n*d.cOut+c+1)*plane], src[c*d.colLen+n*plane:c*d.colLen+(n+1)*plane])
		}
	}
}

// batchMajorToChannelMajor is the inverse of channelMajorToBatchMajor.
func batchMajorToChannelMajor(dst, src []float32, d convDims) {
	plane := d.hOut * d.wOut
	for c := range d.cOut {
		for n := range d.n {
			copy(dst[c*d.colLen+n*plane:c*d.colLen+(n+1)*plane], src[(n*d.cOut+c)*plane:(n*d.cOut+c+1)*plane])
		}
	}
}
