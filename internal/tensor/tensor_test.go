package tensor

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestLiteralShapes(t *testing.T) {
	tests := []struct {
		name  string
		t     Tensor
		shape Shape
		pos   FeatureChannelPosition
	}{
		{"scalar", Scalar[float32](3), Shape{}, NotApplicable},
		{"vector", Vector([]float32{1, 2, 3}), Shape{3}, NotApplicable},
		{"matrix", Must(Matrix([][]float32{{1, 2}, {3, 4}, {5, 6}})), Shape{3, 2}, NotApplicable},
		{"tensor3", Must(Tensor3([][][]float32{{{1}, {2}}})), Shape{1, 2, 1}, NotApplicable},
		{"tensor4 default last", Must(Tensor4([][][][]float32{{{{1, 2, 3}}}}, NotApplicable)), Shape{1, 1, 1, 3}, Last},
		{"tensor4 first", Must(Tensor4([][][][]float32{{{{1}}, {{2}}}}, First)), Shape{1, 2, 1, 1}, First},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.shape, tt.t.Shape)
			assert.Equal(t, tt.pos, tt.t.FeatureChannelPosition)
			assert.Equal(t, Float32, tt.t.DataType)
			assert.Len(t, tt.t.Data, tt.shape.NumElements()*4)
			require.NoError(t, tt.t.Validate())
		})
	}
}

func TestMatrixRagged(t *testing.T) {
	_, err := Matrix([][]float32{{1, 2}, {3}})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestChannelPositionForcedForNonRank4(t *testing.T) {
	p := Placeholder(Shape{2, 3}, Float32, Last)
	assert.Equal(t, NotApplicable, p.FeatureChannelPosition)

	n, err := New(Shape{3}, Float32, Vector([]float32{1, 2, 3}).Data, First)
	require.NoError(t, err)
	assert.Equal(t, NotApplicable, n.FeatureChannelPosition)
}

func TestValidateDataLength(t *testing.T) {
	_, err := New(Shape{2, 2}, Float32, make([]byte, 12), NotApplicable)
	assert.ErrorIs(t, err, ErrInvalidData)

	p, err := New(Shape{2, 2}, Float32, nil, NotApplicable)
	require.NoError(t, err)
	assert.True(t, p.IsPlaceholder())
	assert.False(t, p.IsScalar())

	bad := Tensor{Shape: Shape{2}, DataType: Float32, FeatureChannelPosition: Last}
	assert.ErrorIs(t, bad.Validate(), ErrShapeMismatch)

	tooDeep := Placeholder(Shape{1, 1, 1, 1, 1}, Float32, NotApplicable)
	assert.ErrorIs(t, tooDeep.Validate(), ErrRankMismatch)
}

func TestIsScalar(t *testing.T) {
	assert.True(t, Scalar[float32](1).IsScalar())
	assert.False(t, Placeholder(Shape{}, Float32, NotApplicable).IsScalar())
	assert.False(t, Vector([]float32{1}).IsScalar())
}

func TestFeatureChannelCount(t *testing.T) {
	assert.Equal(t, 3, Placeholder(Shape{1, 3, 4, 5}, Float32, First).FeatureChannelCount())
	assert.Equal(t, 5, Placeholder(Shape{1, 3, 4, 5}, Float32, Last).FeatureChannelCount())
	assert.Equal(t, 0, Placeholder(Shape{3, 4}, Float32, Last).FeatureChannelCount())
}

func TestByteCount(t *testing.T) {
	assert.Equal(t, 24, Placeholder(Shape{2, 3}, Float32, NotApplicable).ByteCount())
	assert.Equal(t, 12, Placeholder(Shape{2, 3}, Float16, NotApplicable).ByteCount())
	assert.Equal(t, 4, Placeholder(Shape{}, Float32, NotApplicable).ByteCount())
}

func TestConvertHalfPrecision(t *testing.T) {
	src := Vector([]float32{0.5, -1.25, 2, 1024})

	for _, dt := range []DataType{Float16, BFloat16} {
		t.Run(dt.String(), func(t *testing.T) {
			half, err := src.Convert(dt)
			require.NoError(t, err)
			assert.Equal(t, dt, half.DataType)
			assert.Len(t, half.Data, 8)

			back, err := half.Convert(Float32)
			require.NoError(t, err)
			assert.True(t, src.Equal(back), "values are exactly representable")
		})
	}
}

func TestFloat16Literal(t *testing.T) {
	v := Vector([]float16.Float16{float16.Fromfloat32(1.5), float16.Fromfloat32(-2)})
	assert.Equal(t, Float16, v.DataType)

	got, err := v.Vector()
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, -2}, got)
}

func TestCloneIsDeep(t *testing.T) {
	a := Vector([]float32{1, 2})
	b := a.Clone()
	b.Data[0] = 0xff
	assert.NotEqual(t, a.Data[0], b.Data[0])
}

func TestWithShape(t *testing.T) {
	a := Vector([]float32{1, 2, 3, 4, 5, 6})
	b, err := a.WithShape(Shape{1, 2, 3, 1}, First)
	require.NoError(t, err)
	assert.Equal(t, First, b.FeatureChannelPosition)

	_, err = a.WithShape(Shape{4}, NotApplicable)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestRandomTensor(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	rangeDesc := NewRange[float32](HalfOpen, -0.5, 0.5)

	now, err := RandomFrom(rng, Shape{4, 4}, Float32, RandomDescriptor{Type: UniformNow, Range: rangeDesc}, NotApplicable)
	require.NoError(t, err)
	assert.Nil(t, now.Random)
	values, err := now.Float32s()
	require.NoError(t, err)
	for _, v := range values {
		assert.GreaterOrEqual(t, v, float32(-0.5))
		assert.Less(t, v, float32(0.5))
	}

	deferred, err := RandomFrom(rng, Shape{4, 4}, Float32, RandomDescriptor{Type: Uniform, Range: rangeDesc}, NotApplicable)
	require.NoError(t, err)
	assert.True(t, deferred.IsPlaceholder())
	require.NotNil(t, deferred.Random)
	assert.Equal(t, Uniform, deferred.Random.Type)
}

func TestRangeBounds(t *testing.T) {
	lo, hi, err := NewRange[float64](Closed, 1, 2).Bounds()
	require.NoError(t, err)
	assert.Equal(t, float32(1), lo)
	assert.Equal(t, float32(2), hi)

	_, _, err = NewRange[float32](Closed, 3, 2).Bounds()
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, _, err = Range{LowerBound: []byte{1}, UpperBound: []byte{1, 2, 3, 4}}.Bounds()
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestClosedRangeDegenerate(t *testing.T) {
	r := NewRange[float32](Closed, 0.25, 0.25)
	v, err := r.Sample(rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, float32(0.25), v)
}

func TestParseNames(t *testing.T) {
	dt, err := ParseDataType("bf16")
	require.NoError(t, err)
	assert.Equal(t, BFloat16, dt)

	_, err = ParseDataType("int8")
	assert.ErrorIs(t, err, ErrInvalidData)

	pos, err := ParseFeatureChannelPosition("nhwc")
	require.NoError(t, err)
	assert.Equal(t, Last, pos)

	dev, err := ParseDevice("GPU")
	require.NoError(t, err)
	assert.Equal(t, GPU, dev)
}

func TestRandomRangeValidation(t *testing.T) {
	unknownType := NewRange[float32](HalfOpen, -1, 1)
	unknownType.DataType = DataType(9)

	shortBound := NewRange[float32](Closed, 0, 1)
	shortBound.UpperBound = shortBound.UpperBound[:2]

	tests := []struct {
		name string
		desc RandomDescriptor
	}{
		{"unknown bound type", RandomDescriptor{Type: Uniform, Range: unknownType}},
		{"short bound", RandomDescriptor{Type: Uniform, Range: shortBound}},
		{"inverted", RandomDescriptor{Type: Uniform, Range: NewRange[float32](Closed, 1, 0)}},
		{"unknown initializer", RandomDescriptor{Type: RandomInitializerType(7), Range: NewRange[float32](Closed, 0, 1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Placeholder(Shape{2, 2}, Float32, NotApplicable)
			p.Random = &tt.desc
			assert.ErrorIs(t, p.Validate(), ErrInvalidRange)

			_, err := tt.desc.Fill(rand.New(rand.NewSource(1)), 4)
			assert.ErrorIs(t, err, ErrInvalidRange)
		})
	}
}

func TestUnknownDataType(t *testing.T) {
	dt := DataType(9)
	assert.Zero(t, dt.Size())

	_, err := dt.Decode([]byte{1, 2, 3, 4})
	assert.ErrorIs(t, err, ErrInvalidData)

	_, err = Vector([]float32{1}).Convert(dt)
	assert.ErrorIs(t, err, ErrInvalidData)
}
