package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/mimic-ml/mimic/internal/tensor"
)

// MatMul performs matrix multiplication.
// For 2D tensors: (M, K) @ (K, N) -> (M, N)
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]

	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}

	result := newRaw("matmul", tensor.Shape{m, n})
	gemm(blas.NoTrans, blas.NoTrans, general(m, k, a.AsFloat32()), general(k, n, b.AsFloat32()), general(m, n, result.AsFloat32()))
	return result
}

// general wraps a dense row-major buffer as a BLAS matrix.
func general(rows, cols int, data []float32) blas32.General {
	return blas32.General{Rows: rows, Cols: cols, Stride: cols, Data: data}
}

// gemm computes c = op(a) @ op(b), overwriting c.
func gemm(tA, tB blas.Transpose, a, b, c blas32.General) {
	blas32.Gemm(tA, tB, 1, a, b, 0, c)
}
