package tensor

import (
	"fmt"
	"slices"
)

// Append returns t with other joined along the leading dimension.
//
// A rank-0 tensor without data acts as an empty accumulator. The shape rules
// are:
//
//	scalar + scalar            → [2]
//	empty + scalar             → scalar
//	empty + rank 1..3          → [1] + other
//	empty + rank 4             → other (channel position adopted)
//	vector[n] + scalar         → [n+1]
//	vector[n] + vector[n]      → [1, n] when t has no data, else [2, n]
//	rank r + rank r-1 (r=2,3)  → one more row along dim 0
//	rank r + rank r (r=2..4)   → concatenation along dim 0
//
// Every other combination, and every trailing-shape mismatch, returns
// ErrShapeMismatch.
func (t Tensor) Append(other Tensor) (Tensor, error) {
	if t.DataType != other.DataType {
		return Tensor{}, fmt.Errorf("%w: %s and %s", ErrTypeMismatch, t.DataType, other.DataType)
	}

	shape, pos, err := appendedShape(t, other)
	if err != nil {
		return Tensor{}, err
	}

	out := Tensor{
		Shape:                  shape,
		Data:                   slices.Concat(t.Data, other.Data),
		DataType:               t.DataType,
		FeatureChannelPosition: channelPositionFor(shape, pos),
	}
	if err := out.Validate(); err != nil {
		return Tensor{}, fmt.Errorf("append %v to %v: %w", other.Shape, t.Shape, err)
	}
	return out, nil
}

func appendedShape(t, other Tensor) (Shape, FeatureChannelPosition, error) {
	r0, r1 := t.Rank(), other.Rank()
	empty, otherEmpty := t.IsPlaceholder(), other.IsPlaceholder()
	mismatch := func() (Shape, FeatureChannelPosition, error) {
		return nil, NotApplicable, fmt.Errorf("%w: cannot append %v to %v", ErrShapeMismatch, other.Shape, t.Shape)
	}

	switch {
	case r0 == 0 && r1 == 0:
		switch {
		case empty && otherEmpty:
			return mismatch()
		case empty != otherEmpty:
			return Shape{}, NotApplicable, nil
		default:
			return Shape{2}, NotApplicable, nil
		}

	case r0 == 0:
		if !empty || otherEmpty {
			return mismatch()
		}
		if r1 == 4 {
			return other.Shape.Clone(), other.FeatureChannelPosition, nil
		}
		return slices.Concat(Shape{1}, other.Shape), NotApplicable, nil

	case r0 == 1 && r1 == 0:
		if empty || otherEmpty {
			return mismatch()
		}
		return Shape{t.Shape[0] + 1}, NotApplicable, nil

	case r0 == 1 && r1 == 1:
		if t.Shape[0] != other.Shape[0] {
			return mismatch()
		}
		if empty {
			return Shape{1, t.Shape[0]}, NotApplicable, nil
		}
		return Shape{2, t.Shape[0]}, NotApplicable, nil

	case (r0 == 2 || r0 == 3) && r1 == r0-1:
		if !t.Shape.Trailing().Equal(other.Shape) {
			return mismatch()
		}
		return slices.Concat(Shape{t.Shape[0] + 1}, t.Shape.Trailing()), NotApplicable, nil

	case r0 >= 2 && r0 == r1:
		if !t.Shape.Trailing().Equal(other.Shape.Trailing()) {
			return mismatch()
		}
		if r0 == 4 && t.FeatureChannelPosition != other.FeatureChannelPosition {
			return nil, NotApplicable, fmt.Errorf("%w: channel position %s vs %s",
				ErrShapeMismatch, t.FeatureChannelPosition, other.FeatureChannelPosition)
		}
		leading := t.Shape[0] + other.Shape[0]
		if empty {
			leading = other.Shape[0]
		}
		return slices.Concat(Shape{leading}, t.Shape.Trailing()), t.FeatureChannelPosition, nil

	default:
		return mismatch()
	}
}

// Concat joins tensors in order, starting from an empty accumulator of dt.
func Concat(dt DataType, tensors ...Tensor) (Tensor, error) {
	acc := Placeholder(Shape{}, dt, NotApplicable)
	for i, t := range tensors {
		var err error
		if acc, err = acc.Append(t); err != nil {
			return Tensor{}, fmt.Errorf("concat item %d: %w", i, err)
		}
	}
	return acc, nil
}
