package tensor

import (
	"fmt"
	"slices"
	"strings"
)

// Device represents the compute device a session is compiled for.
type Device int

// Supported devices.
const (
	AnyDevice Device = iota
	CPU
	GPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "cpu"
	case GPU:
		return "gpu"
	default:
		return "any"
	}
}

// ParseDevice parses the names produced by String.
func ParseDevice(s string) (Device, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "any", "":
		return AnyDevice, nil
	case "cpu":
		return CPU, nil
	case "gpu":
		return GPU, nil
	default:
		return 0, fmt.Errorf("unknown device %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Device) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Device) UnmarshalText(b []byte) error {
	v, err := ParseDevice(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// RawTensor is the host float32 buffer execution backends compute on. Unlike
// Tensor it is mutable and shared by pointer, so optimizers can update
// parameters in place and the autodiff tape can key gradients by identity.
type RawTensor struct {
	shape Shape
	data  []float32
}

// NewRaw allocates a zero-filled RawTensor.
func NewRaw(shape Shape) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &RawTensor{
		shape: shape.Clone(),
		data:  make([]float32, shape.NumElements()),
	}, nil
}

// RawFromFloat32s copies values into a new RawTensor.
func RawFromFloat32s(shape Shape, values []float32) (*RawTensor, error) {
	r, err := NewRaw(shape)
	if err != nil {
		return nil, err
	}
	if len(values) != len(r.data) {
		return nil, fmt.Errorf("%w: shape %v requires %d elements, got %d", ErrInvalidData, shape, len(r.data), len(values))
	}
	copy(r.data, values)
	return r, nil
}

// RawFromTensor decodes a transferable tensor. Placeholders are rejected.
func RawFromTensor(t Tensor) (*RawTensor, error) {
	values, err := t.Float32s()
	if err != nil {
		return nil, err
	}
	return RawFromFloat32s(t.Shape, values)
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return len(r.data)
}

// AsFloat32 returns the backing slice. Writes are visible to every holder.
func (r *RawTensor) AsFloat32() []float32 {
	return r.data
}

// Clone returns a deep copy.
func (r *RawTensor) Clone() *RawTensor {
	return &RawTensor{
		shape: r.shape.Clone(),
		data:  slices.Clone(r.data),
	}
}

// View returns a tensor sharing r's data under another shape with the same
// element count.
func (r *RawTensor) View(shape Shape) (*RawTensor, error) {
	if shape.NumElements() != len(r.data) {
		return nil, fmt.Errorf("%w: cannot view %v as %v", ErrShapeMismatch, r.shape, shape)
	}
	return &RawTensor{shape: shape.Clone(), data: r.data}, nil
}

// CopyFrom overwrites r's data with src's. Shapes must hold the same count.
func (r *RawTensor) CopyFrom(src *RawTensor) error {
	if len(src.data) != len(r.data) {
		return fmt.Errorf("%w: copy %v into %v", ErrShapeMismatch, src.shape, r.shape)
	}
	copy(r.data, src.data)
	return nil
}

// ToTensor encodes the buffer as a transferable tensor.
func (r *RawTensor) ToTensor(dt DataType, pos FeatureChannelPosition) Tensor {
	return Tensor{
		Shape:                  r.shape.Clone(),
		Data:                   dt.Encode(r.data),
		DataType:               dt,
		FeatureChannelPosition: channelPositionFor(r.shape, pos),
	}
}
