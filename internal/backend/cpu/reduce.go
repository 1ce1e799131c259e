package cpu

import (
	"fmt"

	"github.com/mimic-ml/mimic/internal/tensor"
)

// SumDim sums tensor elements along the specified dimension.
//
// Parameters:
//   - dim: dimension to reduce (supports negative indexing: -1 = last dim)
//   - keepDim: if true, keep the reduced dimension with size 1; if false, remove it
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("sumdim: dimension %d out of range for %dD tensor", dim, ndim))
	}

	var outShape tensor.Shape
	if keepDim {
		outShape = shape.Clone()
		outShape[dim] = 1
	} else {
		outShape = make(tensor.Shape, 0, ndim-1)
		for i := range ndim {
			if i != dim {
				outShape = append(outShape, shape[i])
			}
		}
	}

	result := newRaw("sumdim", outShape)
	sumDimFloat32(x.AsFloat32(), result.AsFloat32(), shape, dim)
	return result
}

// sumDimFloat32 accumulates every element into the output slot that shares
// all coordinates except dim.
func sumDimFloat32(data, result []float32, shape tensor.Shape, dim int) {
	clear(result)

	strides := shape.ComputeStrides()
	outShape := shape.Clone()
	outShape[dim] = 1
	outStrides := outShape.ComputeStrides()

	for i := range data {
		outIdx := 0
		temp := i
		for d := range shape {
			coord := temp / strides[d]
			temp %= strides[d]
			if d != dim {
				outIdx += coord * outStrides[d]
			}
		}
		result[outIdx] += data[i]
	}
}
