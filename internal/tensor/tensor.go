package tensor

import (
	"bytes"
	"fmt"
	"math/rand"
	"time"
)

// Tensor is a shape-tagged byte buffer that can cross a process boundary by
// value. An empty Data buffer makes the tensor a placeholder that only
// declares its shape.
//
// Tensors are values: every constructor and operation copies the buffer, so a
// Tensor never aliases a caller's slice.
type Tensor struct {
	Shape                  Shape                  `json:"shape"`
	Data                   []byte                 `json:"data,omitempty"`
	DataType               DataType               `json:"dataType"`
	FeatureChannelPosition FeatureChannelPosition `json:"featureChannelPosition"`
	Random                 *RandomDescriptor      `json:"random,omitempty"`
}

// New creates a tensor from raw bytes. The channel position is dropped to
// NotApplicable unless the shape has rank 4.
func New(shape Shape, dt DataType, data []byte, pos FeatureChannelPosition) (Tensor, error) {
	t := Tensor{
		Shape:                  shape.Clone(),
		Data:                   bytes.Clone(data),
		DataType:               dt,
		FeatureChannelPosition: channelPositionFor(shape, pos),
	}
	if err := t.Validate(); err != nil {
		return Tensor{}, err
	}
	return t, nil
}

// Placeholder creates a data-less tensor declaring an expected input shape.
func Placeholder(shape Shape, dt DataType, pos FeatureChannelPosition) Tensor {
	return Tensor{
		Shape:                  shape.Clone(),
		DataType:               dt,
		FeatureChannelPosition: channelPositionFor(shape, pos),
	}
}

// FromFloat32s encodes values as dt with the given shape.
func FromFloat32s(shape Shape, dt DataType, values []float32, pos FeatureChannelPosition) (Tensor, error) {
	if shape.NumElements() != len(values) {
		return Tensor{}, fmt.Errorf("%w: shape %v requires %d elements, got %d",
			ErrInvalidData, shape, shape.NumElements(), len(values))
	}
	return Tensor{
		Shape:                  shape.Clone(),
		Data:                   dt.Encode(values),
		DataType:               dt,
		FeatureChannelPosition: channelPositionFor(shape, pos),
	}, nil
}

// Random creates a tensor described by a random descriptor. UniformNow
// descriptors are materialised immediately; Uniform descriptors leave the data
// empty for the execution backend to fill.
func Random(shape Shape, dt DataType, desc RandomDescriptor, pos FeatureChannelPosition) (Tensor, error) {
	//nolint:gosec // weight initialisation is not security sensitive
	return RandomFrom(rand.New(rand.NewSource(time.Now().UnixNano())), shape, dt, desc, pos)
}

// RandomFrom is Random with an explicit source.
func RandomFrom(rng *rand.Rand, shape Shape, dt DataType, desc RandomDescriptor, pos FeatureChannelPosition) (Tensor, error) {
	if err := shape.Validate(); err != nil {
		return Tensor{}, err
	}
	if !dt.Valid() {
		return Tensor{}, fmt.Errorf("%w: unknown data type %d", ErrInvalidData, int(dt))
	}
	if err := desc.Validate(); err != nil {
		return Tensor{}, err
	}

	t := Placeholder(shape, dt, pos)
	if desc.Type == Uniform {
		d := desc
		t.Random = &d
		return t, nil
	}

	values, err := desc.Fill(rng, shape.NumElements())
	if err != nil {
		return Tensor{}, err
	}
	t.Data = dt.Encode(values)
	return t, nil
}

// Must panics when err is non-nil. It is meant for literals in tests and
// examples.
func Must(t Tensor, err error) Tensor {
	if err != nil {
		panic(err)
	}
	return t
}

// Rank returns the number of dimensions.
func (t Tensor) Rank() int {
	return len(t.Shape)
}

// IsScalar reports whether the tensor is a rank-0 tensor carrying a value.
func (t Tensor) IsScalar() bool {
	return len(t.Shape) == 0 && len(t.Data) > 0
}

// IsPlaceholder reports whether the tensor carries no data.
func (t Tensor) IsPlaceholder() bool {
	return len(t.Data) == 0
}

// ElementCount returns the number of elements the shape describes.
func (t Tensor) ElementCount() int {
	return t.Shape.NumElements()
}

// ByteCount returns the number of bytes the shape describes.
func (t Tensor) ByteCount() int {
	return t.ElementCount() * t.DataType.Size()
}

// FeatureChannelCount returns the channel extent of a rank-4 tensor, 0 otherwise.
func (t Tensor) FeatureChannelCount() int {
	if len(t.Shape) != 4 {
		return 0
	}
	if t.FeatureChannelPosition == First {
		return t.Shape[1]
	}
	return t.Shape[3]
}

// Validate checks the tensor invariants.
func (t Tensor) Validate() error {
	if !t.DataType.Valid() {
		return fmt.Errorf("%w: unknown data type %d", ErrInvalidData, int(t.DataType))
	}
	if err := t.Shape.Validate(); err != nil {
		return err
	}
	if len(t.Shape) != 4 && t.FeatureChannelPosition != NotApplicable {
		return fmt.Errorf("%w: rank %d tensor has channel position %s", ErrShapeMismatch, len(t.Shape), t.FeatureChannelPosition)
	}
	if len(t.Data) != 0 && len(t.Data) != t.ByteCount() {
		return fmt.Errorf("%w: shape %v of %s needs %d bytes, have %d",
			ErrInvalidData, t.Shape, t.DataType, t.ByteCount(), len(t.Data))
	}
	if t.Random != nil {
		if err := t.Random.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy.
func (t Tensor) Clone() Tensor {
	c := Tensor{
		Shape:                  t.Shape.Clone(),
		Data:                   bytes.Clone(t.Data),
		DataType:               t.DataType,
		FeatureChannelPosition: t.FeatureChannelPosition,
	}
	if t.Random != nil {
		r := *t.Random
		r.Range.LowerBound = bytes.Clone(r.Range.LowerBound)
		r.Range.UpperBound = bytes.Clone(r.Range.UpperBound)
		c.Random = &r
	}
	return c
}

// Equal reports whether two tensors have the same shape, type, channel
// position and bytes.
func (t Tensor) Equal(other Tensor) bool {
	return t.Shape.Equal(other.Shape) &&
		t.DataType == other.DataType &&
		t.FeatureChannelPosition == other.FeatureChannelPosition &&
		bytes.Equal(t.Data, other.Data)
}

// WithShape returns a copy of the tensor reinterpreted with a new shape of
// the same element count.
func (t Tensor) WithShape(shape Shape, pos FeatureChannelPosition) (Tensor, error) {
	if shape.NumElements() != t.ElementCount() {
		return Tensor{}, fmt.Errorf("%w: cannot view %v as %v", ErrShapeMismatch, t.Shape, shape)
	}
	c := t.Clone()
	c.Shape = shape.Clone()
	c.FeatureChannelPosition = channelPositionFor(shape, pos)
	return c, nil
}

// Convert re-encodes the tensor's data as dt.
func (t Tensor) Convert(dt DataType) (Tensor, error) {
	if !dt.Valid() {
		return Tensor{}, fmt.Errorf("%w: unknown data type %d", ErrInvalidData, int(dt))
	}
	if t.DataType == dt {
		return t.Clone(), nil
	}
	c := t.Clone()
	c.DataType = dt
	if len(t.Data) == 0 {
		return c, nil
	}
	values, err := t.DataType.Decode(t.Data)
	if err != nil {
		return Tensor{}, err
	}
	c.Data = dt.Encode(values)
	return c, nil
}

// String renders a short description for logs.
func (t Tensor) String() string {
	state := "placeholder"
	if len(t.Data) > 0 {
		state = fmt.Sprintf("%dB", len(t.Data))
	}
	if len(t.Shape) == 4 {
		return fmt.Sprintf("Tensor(%v %s %s channels=%s)", []int(t.Shape), t.DataType, state, t.FeatureChannelPosition)
	}
	return fmt.Sprintf("Tensor(%v %s %s)", []int(t.Shape), t.DataType, state)
}
