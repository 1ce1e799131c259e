package tensor

import "fmt"

// Float32s decodes the data into a flat float32 slice in row-major order.
func (t Tensor) Float32s() ([]float32, error) {
	if len(t.Data) == 0 {
		return nil, fmt.Errorf("%w: tensor %v has no data", ErrInvalidData, t.Shape)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t.DataType.Decode(t.Data)
}

// ScalarValue returns the value of a rank-0 tensor.
func (t Tensor) ScalarValue() (float32, error) {
	flat, err := t.ranked(0)
	if err != nil {
		return 0, err
	}
	return flat[0], nil
}

// Vector returns the values of a rank-1 tensor.
func (t Tensor) Vector() ([]float32, error) {
	return t.ranked(1)
}

// Matrix returns the values of a rank-2 tensor as rows.
func (t Tensor) Matrix() ([][]float32, error) {
	flat, err := t.ranked(2)
	if err != nil {
		return nil, err
	}
	return split2(flat, t.Shape[0], t.Shape[1]), nil
}

// Tensor3 returns the values of a rank-3 tensor.
func (t Tensor) Tensor3() ([][][]float32, error) {
	flat, err := t.ranked(3)
	if err != nil {
		return nil, err
	}
	d0, d1, d2 := t.Shape[0], t.Shape[1], t.Shape[2]
	out := make([][][]float32, d0)
	for i := range out {
		out[i] = split2(flat[i*d1*d2:(i+1)*d1*d2], d1, d2)
	}
	return out, nil
}

// Tensor4 returns the values of a rank-4 tensor in its own channel layout.
func (t Tensor) Tensor4() ([][][][]float32, error) {
	flat, err := t.ranked(4)
	if err != nil {
		return nil, err
	}
	d0, d1, d2, d3 := t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3]
	plane := d2 * d3
	out := make([][][][]float32, d0)
	for i := range out {
		out[i] = make([][][]float32, d1)
		for j := range out[i] {
			off := (i*d1 + j) * plane
			out[i][j] = split2(flat[off:off+plane], d2, d3)
		}
	}
	return out, nil
}

func (t Tensor) ranked(rank int) ([]float32, error) {
	if t.Rank() != rank {
		return nil, fmt.Errorf("%w: want rank %d, tensor has shape %v", ErrRankMismatch, rank, t.Shape)
	}
	return t.Float32s()
}

func split2(flat []float32, rows, cols int) [][]float32 {
	out := make([][]float32, rows)
	for i := range out {
		out[i] = flat[i*cols : (i+1)*cols]
	}
	return out
}
