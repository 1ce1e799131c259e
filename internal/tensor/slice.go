package tensor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Slice returns rows [start, end) of the leading dimension. Trailing
// dimensions and the channel position are preserved. Slicing a placeholder
// yields a placeholder of the sliced shape.
func (t Tensor) Slice(start, end int) (Tensor, error) {
	if t.Rank() == 0 {
		return Tensor{}, fmt.Errorf("%w: cannot slice a scalar", ErrRankMismatch)
	}
	if start < 0 || end < start || end > t.Shape[0] {
		return Tensor{}, fmt.Errorf("%w: [%d, %d) of leading dimension %d", ErrOutOfRange, start, end, t.Shape[0])
	}

	shape := slices.Concat(Shape{end - start}, t.Shape.Trailing())
	out := Tensor{
		Shape:                  shape,
		DataType:               t.DataType,
		FeatureChannelPosition: t.FeatureChannelPosition,
	}
	if len(t.Data) > 0 {
		row := t.Shape.Trailing().NumElements() * t.DataType.Size()
		out.Data = bytes.Clone(t.Data[start*row : end*row])
	}
	return out, nil
}

// Array is a virtual concatenation of tensors along the leading dimension.
// Every member is a batch of rows; members share their trailing shape, data
// type and channel position. Slicing copies only the rows it returns.
type Array struct {
	Tensors []Tensor
}

// ArrayOf wraps already batched tensors.
func ArrayOf(ts ...Tensor) Array {
	return Array{Tensors: ts}
}

// SampleArray builds an array from single samples without concatenating
// them. Each sample below rank 4 becomes one row: a scalar becomes [1] and a
// rank 1..3 sample gains a leading dimension of 1. Rank-4 samples already
// carry their rows.
func SampleArray(samples []Tensor) (Array, error) {
	rows := make([]Tensor, len(samples))
	for i, s := range samples {
		if s.Rank() == 4 {
			rows[i] = s
			continue
		}
		r, err := s.WithShape(slices.Concat(Shape{1}, s.Shape), NotApplicable)
		if err != nil {
			return Array{}, fmt.Errorf("sample %d: %w", i, err)
		}
		rows[i] = r
	}
	a := Array{Tensors: rows}
	if err := a.Validate(); err != nil {
		return Array{}, err
	}
	return a, nil
}

// Len returns the number of members.
func (a Array) Len() int {
	return len(a.Tensors)
}

// Rank returns the rank of the members, or -1 when empty.
func (a Array) Rank() int {
	if len(a.Tensors) == 0 {
		return -1
	}
	return a.Tensors[0].Rank()
}

// DataType returns the members' element type.
func (a Array) DataType() DataType {
	if len(a.Tensors) == 0 {
		return Float32
	}
	return a.Tensors[0].DataType
}

// EndIndex returns the total number of rows, the exclusive upper bound
// accepted by Slice.
func (a Array) EndIndex() int {
	n := 0
	for _, t := range a.Tensors {
		if t.Rank() > 0 {
			n += t.Shape[0]
		}
	}
	return n
}

// Validate checks that the array has members and that every member is a
// batch of rows with data and the same row layout as the first.
func (a Array) Validate() error {
	if len(a.Tensors) == 0 {
		return fmt.Errorf("%w: empty array", ErrInvalidData)
	}
	first := a.Tensors[0]
	for i, t := range a.Tensors {
		if t.Rank() == 0 || t.IsPlaceholder() {
			return fmt.Errorf("%w: member %d (%v) is not a batch of rows with data", ErrInvalidData, i, t.Shape)
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("member %d: %w", i, err)
		}
		if t.DataType != first.DataType {
			return fmt.Errorf("%w: member %d is %s, want %s", ErrTypeMismatch, i, t.DataType, first.DataType)
		}
		if !t.Shape.Trailing().Equal(first.Shape.Trailing()) || t.FeatureChannelPosition != first.FeatureChannelPosition {
			return fmt.Errorf("%w: member %d rows %v (%s), want %v (%s)", ErrShapeMismatch, i,
				t.Shape.Trailing(), t.FeatureChannelPosition, first.Shape.Trailing(), first.FeatureChannelPosition)
		}
	}
	return nil
}

// Placeholder returns a placeholder of n rows in the members' layout.
func (a Array) Placeholder(n int) Tensor {
	if len(a.Tensors) == 0 {
		return Placeholder(Shape{n}, Float32, NotApplicable)
	}
	first := a.Tensors[0]
	return Placeholder(slices.Concat(Shape{n}, first.Shape.Trailing()), first.DataType, first.FeatureChannelPosition)
}

// Slice joins rows [start, end) across members. Members outside the range
// are not touched.
func (a Array) Slice(start, end int) (Tensor, error) {
	if len(a.Tensors) == 0 {
		return Tensor{}, fmt.Errorf("%w: empty array", ErrOutOfRange)
	}
	if start < 0 || end < start || end > a.EndIndex() {
		return Tensor{}, fmt.Errorf("%w: [%d, %d) of %d", ErrOutOfRange, start, end, a.EndIndex())
	}

	first := a.Tensors[0]
	out := a.Placeholder(end - start)
	offset := 0
	for _, t := range a.Tensors {
		lo, hi := offset, offset+t.Shape[0]
		offset = hi
		if hi <= start || lo >= end {
			continue
		}
		if t.DataType != first.DataType || !t.Shape.Trailing().Equal(first.Shape.Trailing()) {
			return Tensor{}, fmt.Errorf("%w: member rows %v do not match %v", ErrShapeMismatch, t.Shape.Trailing(), first.Shape.Trailing())
		}
		part, err := t.Slice(max(start, lo)-lo, min(end, hi)-lo)
		if err != nil {
			return Tensor{}, err
		}
		out.Data = append(out.Data, part.Data...)
	}
	return out, nil
}

// MarshalJSON encodes the array as a list of its members.
func (a Array) MarshalJSON() ([]byte, error) {
	if a.Tensors == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a.Tensors)
}

// UnmarshalJSON accepts a list of members or a single batched tensor.
func (a *Array) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var t Tensor
		if err := json.Unmarshal(b, &t); err != nil {
			return err
		}
		a.Tensors = []Tensor{t}
		return nil
	}
	return json.Unmarshal(b, &a.Tensors)
}
