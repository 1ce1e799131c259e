package ops

import (
	"fmt"

	"github.com/mimic-ml/mimic/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	// Clone so accumulated gradients never alias each other.
	if grad.Shape().Equal(targetShape) {
		return grad.Clone()
	}

	result := grad
	// NumPy broadcasting aligns shapes from the right: sum away the extra
	// leading dimensions first.
	for len(result.Shape()) > len(targetShape) {
		result = backend.SumDim(result, 0, false)
	}

	// Now sum along dimensions where target is 1
	shape := result.Shape()
	for i := range targetShape {
		if targetShape[i] == 1 && shape[i] > 1 {
			result = backend.SumDim(result, i, true)
		}
	}

	if !result.Shape().Equal(targetShape) {
		if result.NumElements() != targetShape.NumElements() {
			panic(fmt.Sprintf("reduceBroadcast: cannot reduce %v to %v", grad.Shape(), targetShape))
		}
		result = backend.Reshape(result, targetShape)
	}
	if result == grad {
		result = grad.Clone()
	}
	return result
}

// broadcastTo expands grad to shape by adding it onto zeros.
func broadcastTo(grad *tensor.RawTensor, shape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	zeros, err := tensor.NewRaw(shape)
	if err != nil {
		panic(fmt.Sprintf("broadcastTo: %v", err))
	}
	return backend.Add(zeros, grad)
}
