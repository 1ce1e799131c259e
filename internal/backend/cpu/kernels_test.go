package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mimic-ml/mimic/internal/parallel"
	"github.com/mimic-ml/mimic/internal/tensor"
)

func values(t *testing.T, shape tensor.Shape, v ...float32) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.RawFromFloat32s(shape, v)
	require.NoError(t, err)
	return r
}

func TestElementwise(t *testing.T) {
	backend := New()
	a := values(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	row := values(t, tensor.Shape{3}, 10, 20, 30)
	col := values(t, tensor.Shape{2, 1}, 2, 4)

	tests := []struct {
		name  string
		got   *tensor.RawTensor
		shape tensor.Shape
		want  []float32
	}{
		{"add same shape", backend.Add(a, a), tensor.Shape{2, 3}, []float32{2, 4, 6, 8, 10, 12}},
		{"add row", backend.Add(a, row), tensor.Shape{2, 3}, []float32{11, 22, 33, 14, 25, 36}},
		{"sub column", backend.Sub(a, col), tensor.Shape{2, 3}, []float32{-1, 0, 1, 0, 1, 2}},
		{"mul column", backend.Mul(a, col), tensor.Shape{2, 3}, []float32{2, 4, 6, 16, 20, 24}},
		{"div row", backend.Div(row, a), tensor.Shape{2, 3}, []float32{10, 10, 10, 2.5, 4, 5}},
		{"mul scalar", backend.MulScalar(a, -0.5), tensor.Shape{2, 3}, []float32{-0.5, -1, -1.5, -2, -2.5, -3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.shape, tt.got.Shape())
			assert.InDeltaSlice(t, tt.want, tt.got.AsFloat32(), 1e-6)
		})
	}
}

func TestElementwiseIncompatiblePanics(t *testing.T) {
	backend := New()
	assert.Panics(t, func() {
		backend.Add(values(t, tensor.Shape{2}, 1, 2), values(t, tensor.Shape{3}, 1, 2, 3))
	})
}

func TestElementwiseSequentialMatchesParallel(t *testing.T) {
	n := 4096
	a := raw(t, tensor.Shape{n}, func(i int) float32 { return float32(i) })
	b := raw(t, tensor.Shape{n}, func(i int) float32 { return float32(n - i) })

	seq := NewWithConfig(parallel.Sequential()).Mul(a, b)
	par := NewWithConfig(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 16}).Mul(a, b)
	assert.Equal(t, seq.AsFloat32(), par.AsFloat32())
}

func TestMatMul(t *testing.T) {
	backend := New()
	a := values(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	b := values(t, tensor.Shape{3, 2}, 7, 8, 9, 10, 11, 12)

	got := backend.MatMul(a, b)
	assert.Equal(t, tensor.Shape{2, 2}, got.Shape())
	assert.Equal(t, []float32{58, 64, 139, 154}, got.AsFloat32())

	assert.Panics(t, func() { backend.MatMul(a, a) })
}

func TestTranspose(t *testing.T) {
	backend := New()
	m := values(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)

	got := backend.Transpose(m)
	assert.Equal(t, tensor.Shape{3, 2}, got.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, got.AsFloat32())

	// [1, 2, 2, 3] channel-last image to channel-first and back.
	img := raw(t, tensor.Shape{1, 2, 2, 3}, func(i int) float32 { return float32(i) })
	first := backend.Transpose(img, tensor.ToFirst...)
	assert.Equal(t, tensor.Shape{1, 3, 2, 2}, first.Shape())
	assert.Equal(t, []float32{0, 3, 6, 9, 1, 4, 7, 10, 2, 5, 8, 11}, first.AsFloat32())

	back := backend.Transpose(first, tensor.ToLast...)
	assert.Equal(t, img.Shape(), back.Shape())
	assert.Equal(t, img.AsFloat32(), back.AsFloat32())
}

func TestReshapeCopies(t *testing.T) {
	backend := New()
	m := values(t, tensor.Shape{2, 2}, 1, 2, 3, 4)

	got := backend.Reshape(m, tensor.Shape{4})
	assert.Equal(t, tensor.Shape{4}, got.Shape())
	got.AsFloat32()[0] = 9
	assert.Equal(t, float32(1), m.AsFloat32()[0])

	assert.Panics(t, func() { backend.Reshape(m, tensor.Shape{3}) })
}

func TestSumDim(t *testing.T) {
	backend := New()
	m := values(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)

	tests := []struct {
		name    string
		dim     int
		keepDim bool
		shape   tensor.Shape
		want    []float32
	}{
		{"rows", 0, false, tensor.Shape{3}, []float32{5, 7, 9}},
		{"rows keep", 0, true, tensor.Shape{1, 3}, []float32{5, 7, 9}},
		{"columns", 1, false, tensor.Shape{2}, []float32{6, 15}},
		{"negative", -1, true, tensor.Shape{2, 1}, []float32{6, 15}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := backend.SumDim(m, tt.dim, tt.keepDim)
			assert.Equal(t, tt.shape, got.Shape())
			assert.Equal(t, tt.want, got.AsFloat32())
		})
	}
}
