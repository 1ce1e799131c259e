// Package tensor provides the transferable tensor value type and the host
// buffers the execution backends compute on.
package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// Native is a constraint for Go element types that literal constructors accept.
type Native interface {
	float32 | float64 | float16.Float16
}

// DataType is the element type of a tensor's byte buffer.
type DataType int

// Supported element types.
const (
	Float32 DataType = iota
	Float16
	BFloat16
)

// Size returns the byte size of one element, or 0 for an unknown type.
func (dt DataType) Size() int {
	switch dt {
	case Float32:
		return 4
	case Float16, BFloat16:
		return 2
	default:
		return 0
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float16:
		return "float16"
	case BFloat16:
		return "bfloat16"
	default:
		return "unknown"
	}
}

// Valid reports whether dt is one of the supported element types.
func (dt DataType) Valid() bool {
	return dt >= Float32 && dt <= BFloat16
}

// ParseDataType parses the names produced by String.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float32", "f32", "":
		return Float32, nil
	case "float16", "f16", "half":
		return Float16, nil
	case "bfloat16", "bf16":
		return BFloat16, nil
	default:
		return 0, fmt.Errorf("%w: unknown data type %q", ErrInvalidData, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (dt DataType) MarshalText() ([]byte, error) {
	if !dt.Valid() {
		return nil, fmt.Errorf("%w: unknown data type %d", ErrInvalidData, int(dt))
	}
	return []byte(dt.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (dt *DataType) UnmarshalText(b []byte) error {
	v, err := ParseDataType(string(b))
	if err != nil {
		return err
	}
	*dt = v
	return nil
}

// Encode converts float32 values into the little-endian byte layout of dt.
// dt must be valid.
func (dt DataType) Encode(values []float32) []byte {
	switch dt {
	case Float32:
		buf := make([]byte, len(values)*4)
		for i, v := range values {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		return buf
	case Float16:
		buf := make([]byte, len(values)*2)
		for i, v := range values {
			binary.LittleEndian.PutUint16(buf[i*2:], float16.Fromfloat32(v).Bits())
		}
		return buf
	case BFloat16:
		return bfloat16.EncodeFloat32(values)
	default:
		panic(fmt.Sprintf("encode: unknown data type %d", int(dt)))
	}
}

// Decode converts a byte buffer laid out as dt into float32 values.
// A trailing partial element is an error.
func (dt DataType) Decode(data []byte) ([]float32, error) {
	if !dt.Valid() {
		return nil, fmt.Errorf("%w: unknown data type %d", ErrInvalidData, int(dt))
	}
	size := dt.Size()
	if len(data)%size != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %s element size %d",
			ErrInvalidData, len(data), dt, size)
	}

	switch dt {
	case Float32:
		out := make([]float32, len(data)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
		return out, nil
	case Float16:
		out := make([]float32, len(data)/2)
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(data[i*2:])).Float32()
		}
		return out, nil
	default:
		return bfloat16.DecodeFloat32(data), nil
	}
}

// nativeFloat32 widens or narrows a Native value to float32.
func nativeFloat32[T Native](v T) float32 {
	switch x := any(v).(type) {
	case float32:
		return x
	case float64:
		return float32(x)
	case float16.Float16:
		return x.Float32()
	default:
		panic("unsupported native type")
	}
}

// nativeDataType reports the DataType matching a Native type parameter.
func nativeDataType[T Native]() DataType {
	var zero T
	switch any(zero).(type) {
	case float16.Float16:
		return Float16
	default:
		return Float32
	}
}
