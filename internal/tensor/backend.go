package tensor

// Backend is the kernel-level interface the autodiff operations and
// optimizers compute through. Kernels panic on shape violations; callers are
// expected to validate shapes before dispatching.
type Backend interface {
	// Element-wise binary operations with broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// MulScalar multiplies every element by s.
	MulScalar(x *RawTensor, s float32) *RawTensor

	// MatMul computes (M, K) @ (K, N) -> (M, N).
	MatMul(a, b *RawTensor) *RawTensor

	// Conv2D and its gradients over [N, C, H, W] inputs and
	// [C_out, C_in, K_h, K_w] kernels.
	Conv2D(input, kernel *RawTensor, stride int, pad Padding) *RawTensor
	Conv2DInputBackward(input, kernel, grad *RawTensor, stride int, pad Padding) *RawTensor
	Conv2DKernelBackward(input, kernel, grad *RawTensor, stride int, pad Padding) *RawTensor

	// Shape operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// SumDim reduces along dim, keeping it with extent 1 when keepDim is set.
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}

// Padding is the number of zero rows and columns added around each spatial
// plane before a convolution.
type Padding struct {
	Top, Bottom, Left, Right int
}

// SamePadding pads a stride-1 convolution so the output keeps the input's
// spatial extent. Odd remainders go to the bottom and right.
func SamePadding(kh, kw int) Padding {
	return Padding{
		Top:    (kh - 1) / 2,
		Bottom: kh - 1 - (kh-1)/2,
		Left:   (kw - 1) / 2,
		Right:  kw - 1 - (kw-1)/2,
	}
}
