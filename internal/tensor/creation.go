package tensor

import "fmt"

// Scalar creates a rank-0 tensor holding v.
func Scalar[T Native](v T) Tensor {
	dt := nativeDataType[T]()
	return Tensor{
		Shape:    Shape{},
		Data:     dt.Encode([]float32{nativeFloat32(v)}),
		DataType: dt,
	}
}

// Vector creates a rank-1 tensor.
func Vector[T Native](values []T) Tensor {
	dt := nativeDataType[T]()
	return Tensor{
		Shape:    Shape{len(values)},
		Data:     dt.Encode(flatten1(values)),
		DataType: dt,
	}
}

// Matrix creates a rank-2 tensor. Every row must have the same length.
func Matrix[T Native](rows [][]T) (Tensor, error) {
	shape := Shape{len(rows), 0}
	if len(rows) > 0 {
		shape[1] = len(rows[0])
	}

	flat := make([]float32, 0, shape.NumElements())
	for i, row := range rows {
		if len(row) != shape[1] {
			return Tensor{}, fmt.Errorf("%w: row %d has %d values, want %d", ErrShapeMismatch, i, len(row), shape[1])
		}
		flat = append(flat, flatten1(row)...)
	}
	return literal(shape, nativeDataType[T](), flat, NotApplicable)
}

// Tensor3 creates a rank-3 tensor from a regular nested slice.
func Tensor3[T Native](values [][][]T) (Tensor, error) {
	shape := Shape{len(values), 0, 0}
	if len(values) > 0 {
		shape[1] = len(values[0])
		if len(values[0]) > 0 {
			shape[2] = len(values[0][0])
		}
	}

	flat := make([]float32, 0, shape.NumElements())
	for i, plane := range values {
		if len(plane) != shape[1] {
			return Tensor{}, fmt.Errorf("%w: plane %d has %d rows, want %d", ErrShapeMismatch, i, len(plane), shape[1])
		}
		for j, row := range plane {
			if len(row) != shape[2] {
				return Tensor{}, fmt.Errorf("%w: row [%d][%d] has %d values, want %d", ErrShapeMismatch, i, j, len(row), shape[2])
			}
			flat = append(flat, flatten1(row)...)
		}
	}
	return literal(shape, nativeDataType[T](), flat, NotApplicable)
}

// Tensor4 creates a rank-4 tensor from a regular nested slice laid out with
// the given channel convention.
func Tensor4[T Native](values [][][][]T, pos FeatureChannelPosition) (Tensor, error) {
	shape := Shape{len(values), 0, 0, 0}
	if len(values) > 0 {
		shape[1] = len(values[0])
		if len(values[0]) > 0 {
			shape[2] = len(values[0][0])
			if len(values[0][0]) > 0 {
				shape[3] = len(values[0][0][0])
			}
		}
	}
	if pos == NotApplicable {
		pos = Last
	}

	flat := make([]float32, 0, shape.NumElements())
	for i, cube := range values {
		if len(cube) != shape[1] {
			return Tensor{}, fmt.Errorf("%w: item %d has extent %d, want %d", ErrShapeMismatch, i, len(cube), shape[1])
		}
		for j, plane := range cube {
			if len(plane) != shape[2] {
				return Tensor{}, fmt.Errorf("%w: plane [%d][%d] has %d rows, want %d", ErrShapeMismatch, i, j, len(plane), shape[2])
			}
			for k, row := range plane {
				if len(row) != shape[3] {
					return Tensor{}, fmt.Errorf("%w: row [%d][%d][%d] has %d values, want %d",
						ErrShapeMismatch, i, j, k, len(row), shape[3])
				}
				flat = append(flat, flatten1(row)...)
			}
		}
	}
	return literal(shape, nativeDataType[T](), flat, pos)
}

func literal(shape Shape, dt DataType, flat []float32, pos FeatureChannelPosition) (Tensor, error) {
	if err := shape.Validate(); err != nil {
		return Tensor{}, err
	}
	return Tensor{
		Shape:                  shape,
		Data:                   dt.Encode(flat),
		DataType:               dt,
		FeatureChannelPosition: channelPositionFor(shape, pos),
	}, nil
}

func flatten1[T Native](values []T) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = nativeFloat32(v)
	}
	return out
}
