// Package cpu implements the reference CPU execution backend: float32
// kernels with BLAS-backed matrix products, and a graph builder that lowers
// transferable graphs onto them.
package cpu

import (
	"fmt"

	"github.com/mimic-ml/mimic/internal/parallel"
	"github.com/mimic-ml/mimic/internal/tensor"
)

// CPUBackend implements tensor kernels on the CPU.
type CPUBackend struct {
	device tensor.Device
	cfg    parallel.Config
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		cfg:    parallel.DefaultConfig(),
	}
}

// NewWithConfig creates a CPU backend with explicit parallelism settings.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{device: tensor.CPU, cfg: cfg}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

func newRaw(op string, shape tensor.Shape) *tensor.RawTensor {
	r, err := tensor.NewRaw(shape)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return r
}

// Reshape returns a copy of t with a different shape of equal element count.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if err := newShape.Validate(); err != nil {
		panic(fmt.Sprintf("reshape: invalid shape: %v", err))
	}

	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("reshape: incompatible shapes: %v -> %v (different number of elements)",
			t.Shape(), newShape))
	}

	result := newRaw("reshape", newShape)
	copy(result.AsFloat32(), t.AsFloat32())
	return result
}

// Transpose transposes the tensor by permuting its dimensions.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	// Default: reverse all dimensions
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: axes length %d != ndim %d", len(axes), ndim))
	}

	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			panic(fmt.Sprintf("transpose: invalid axis %d for %dD tensor", ax, ndim))
		}
		if seen[ax] {
			panic(fmt.Sprintf("transpose: duplicate axis %d", ax))
		}
		seen[ax] = true
	}

	result := newRaw("transpose", shape.Permute(axes))
	transposeFloat32(result.AsFloat32(), t.AsFloat32(), shape, axes)
	return result
}

// transposeFloat32 scatters src into dst so that dst's dimension i is src's
// dimension axes[i].
func transposeFloat32(dst, src []float32, shape tensor.Shape, axes []int) {
	ndim := len(shape)
	srcStrides := shape.ComputeStrides()
	dstStrides := shape.Permute(axes).ComputeStrides()

	// Stride in dst of each src dimension.
	scatter := make([]int, ndim)
	for dstDim, srcDim := range axes {
		scatter[srcDim] = dstStrides[dstDim]
	}

	for i := range src {
		idx := i
		dstIdx := 0
		for dim := range ndim {
			coord := idx / srcStrides[dim]
			idx %= srcStrides[dim]
			dstIdx += coord * scatter[dim]
		}
		dst[dstIdx] = src[i]
	}
}
