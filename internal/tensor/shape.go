package tensor

import (
	"fmt"
	"slices"
)

// MaxRank is the highest rank a transferable tensor may carry.
const MaxRank = 4

// Shape represents the dimensions of a tensor. An empty shape is a scalar.
type Shape []int

// NumElements returns the total number of elements described by the shape.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Rank returns the number of dimensions.
func (s Shape) Rank() int {
	return len(s)
}

// Validate checks that the rank is within MaxRank and every dimension is positive.
func (s Shape) Validate() error {
	if len(s) > MaxRank {
		return fmt.Errorf("%w: rank %d exceeds %d", ErrRankMismatch, len(s), MaxRank)
	}
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("%w: dimension %d is %d (must be > 0)", ErrShapeMismatch, i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	return slices.Equal(s, other)
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	if s == nil {
		return Shape{}
	}
	return slices.Clone(s)
}

// Leading returns the extent of the first dimension, or 0 for a scalar.
func (s Shape) Leading() int {
	if len(s) == 0 {
		return 0
	}
	return s[0]
}

// Trailing returns every dimension after the first.
func (s Shape) Trailing() Shape {
	if len(s) == 0 {
		return Shape{}
	}
	return s[1:].Clone()
}

// Permute reorders the dimensions so that result[i] = s[perm[i]].
func (s Shape) Permute(perm []int) Shape {
	out := make(Shape, len(perm))
	for i, ax := range perm {
		out[i] = s[ax]
	}
	return out
}

// ComputeStrides calculates row-major strides for the shape.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	stride := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= s[i]
	}
	return strides
}

// BroadcastShapes applies NumPy-style broadcasting from the trailing dimension.
// It returns the result shape and whether either side had to be expanded.
//
//	(3, 1) + (3, 5) → (3, 5), true
//	(3, 5) + (3, 5) → (3, 5), false
//	(3, 4) + (3, 5) → error
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	n := max(len(a), len(b))
	out := make(Shape, n)
	expanded := len(a) != len(b)

	for i := 1; i <= n; i++ {
		aDim, bDim := 1, 1
		if i <= len(a) {
			aDim = a[len(a)-i]
		}
		if i <= len(b) {
			bDim = b[len(b)-i]
		}

		switch {
		case aDim == bDim:
			out[n-i] = aDim
		case aDim == 1:
			out[n-i] = bDim
			expanded = true
		case bDim == 1:
			out[n-i] = aDim
			expanded = true
		default:
			return nil, false, fmt.Errorf("%w: cannot broadcast %v with %v at dimension %d (%d vs %d)",
				ErrShapeMismatch, a, b, n-i, aDim, bDim)
		}
	}
	return out, expanded, nil
}
