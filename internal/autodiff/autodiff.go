// Package autodiff implements reverse-mode automatic differentiation using
// the decorator pattern.
//
// AutodiffBackend wraps any Backend implementation and records every kernel
// it dispatches on a GradientTape while recording is enabled.
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	y := backend.MatMul(x, w)
//	loss := backend.MSELoss(y, labels)
//	grads := autodiff.Backward(loss, backend)
//	gw := grads[w]
package autodiff

import (
	"github.com/mimic-ml/mimic/internal/autodiff/ops"
	"github.com/mimic-ml/mimic/internal/tensor"
)

// AutodiffBackend wraps a Backend and adds automatic differentiation.
// It implements the tensor.Backend interface and records operations in a GradientTape.
//
// Type parameter B must satisfy the tensor.Backend interface.
type AutodiffBackend[B tensor.Backend] struct {
	inner B             // Wrapped backend
	tape  *GradientTape // Records operations for backpropagation
}

// New creates a new AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend for direct access.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Add(a, c)
	b.tape.Record(ops.NewAddOp(a, c, result))
	return result
}

// Sub performs element-wise subtraction and records the operation.
func (b *AutodiffBackend[B]) Sub(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sub(a, c)
	b.tape.Record(ops.NewSubOp(a, c, result))
	return result
}

// Mul performs element-wise multiplication and records the operation.
func (b *AutodiffBackend[B]) Mul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Mul(a, c)
	b.tape.Record(ops.NewMulOp(a, c, result))
	return result
}

// Div performs element-wise division and records the operation.
func (b *AutodiffBackend[B]) Div(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Div(a, c)
	b.tape.Record(ops.NewDivOp(a, c, result))
	return result
}

// MulScalar multiplies by a constant and records the operation.
func (b *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, s float32) *tensor.RawTensor {
	result := b.inner.MulScalar(x, s)
	b.tape.Record(ops.NewMulScalarOp(x, result, s))
	return result
}

// MatMul performs matrix multiplication and records the operation.
func (b *AutodiffBackend[B]) MatMul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.MatMul(a, c)
	b.tape.Record(ops.NewMatMulOp(a, c, result))
	return result
}

// Reshape reshapes a tensor and records the operation.
//
// Reshape must be recorded: a bias parameter [C] reshaped to [1, C, 1, 1]
// for broadcasting only receives its gradient through the ReshapeOp.
func (b *AutodiffBackend[B]) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Reshape(t, newShape)
	b.tape.Record(ops.NewReshapeOp(t, result))
	return result
}

// Transpose permutes dimensions and records the operation.
func (b *AutodiffBackend[B]) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	result := b.inner.Transpose(t, axes...)
	if len(axes) == 0 {
		n := len(t.Shape())
		axes = make([]int, n)
		for i := range axes {
			axes[i] = n - 1 - i
		}
	}
	b.tape.Record(ops.NewTransposeOp(t, result, axes))
	return result
}

// SumDim reduces along dim and records the operation.
func (b *AutodiffBackend[B]) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	result := b.inner.SumDim(x, dim, keepDim)
	if dim < 0 {
		dim += len(x.Shape())
	}
	b.tape.Record(ops.NewSumDimOp(x, result, dim, keepDim))
	return result
}

// Conv2D performs 2D convolution and records the operation.
func (b *AutodiffBackend[B]) Conv2D(input, kernel *tensor.RawTensor, stride int, pad tensor.Padding) *tensor.RawTensor {
	result := b.inner.Conv2D(input, kernel, stride, pad)
	b.tape.Record(ops.NewConv2DOp(input, kernel, result, stride, pad))
	return result
}

// Conv2DInputBackward delegates to the wrapped backend without recording.
func (b *AutodiffBackend[B]) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride int, pad tensor.Padding) *tensor.RawTensor {
	return b.inner.Conv2DInputBackward(input, kernel, grad, stride, pad)
}

// Conv2DKernelBackward delegates to the wrapped backend without recording.
func (b *AutodiffBackend[B]) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride int, pad tensor.Padding) *tensor.RawTensor {
	return b.inner.Conv2DKernelBackward(input, kernel, grad, stride, pad)
}

// MSELoss computes mean((pred - target)²) and records the operation.
func (b *AutodiffBackend[B]) MSELoss(pred, target *tensor.RawTensor) *tensor.RawTensor {
	op := ops.NewLossOp(ops.SquaredError, pred, target)
	b.tape.Record(op)
	return op.Output()
}

// MAELoss computes mean(|pred - target|) and records the operation.
func (b *AutodiffBackend[B]) MAELoss(pred, target *tensor.RawTensor) *tensor.RawTensor {
	op := ops.NewLossOp(ops.AbsoluteError, pred, target)
	b.tape.Record(op)
	return op.Output()
}
