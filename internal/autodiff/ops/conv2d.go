package ops

import "github.com/mimic-ml/mimic/internal/tensor"

// Conv2DOp represents a 2D convolution of [N, C_in, H, W] input with a
// [C_out, C_in, K_h, K_w] kernel.
type Conv2DOp struct {
	input  *tensor.RawTensor
	kernel *tensor.RawTensor
	output *tensor.RawTensor
	stride int
	pad    tensor.Padding
}

// NewConv2DOp creates a new Conv2DOp.
func NewConv2DOp(input, kernel, output *tensor.RawTensor, stride int, pad tensor.Padding) *Conv2DOp {
	return &Conv2DOp{
		input:  input,
		kernel: kernel,
		output: output,
		stride: stride,
		pad:    pad,
	}
}

// Inputs returns [input, kernel].
func (op *Conv2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.kernel}
}

// Output returns the convolution result.
func (op *Conv2DOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes gradients for the input and the kernel.
func (op *Conv2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := backend.Conv2DInputBackward(op.input, op.kernel, outputGrad, op.stride, op.pad)
	kernelGrad := backend.Conv2DKernelBackward(op.input, op.kernel, outputGrad, op.stride, op.pad)

	return []*tensor.RawTensor{inputGrad, kernelGrad}
}
