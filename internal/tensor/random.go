package tensor

import (
	"fmt"
	"math/rand"
)

// RandomInitializerType selects when random data is generated.
type RandomInitializerType int

const (
	// Uniform defers generation to the execution backend.
	Uniform RandomInitializerType = iota
	// UniformNow generates the data when the tensor is created.
	UniformNow
)

func (t RandomInitializerType) String() string {
	if t == UniformNow {
		return "uniformNow"
	}
	return "uniform"
}

// MarshalText implements encoding.TextMarshaler.
func (t RandomInitializerType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *RandomInitializerType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "uniform", "":
		*t = Uniform
	case "uniformNow":
		*t = UniformNow
	default:
		return fmt.Errorf("unknown random initializer %q", b)
	}
	return nil
}

// RangeKind tells whether the upper bound of a Range is included.
type RangeKind int

const (
	// HalfOpen is [lower, upper).
	HalfOpen RangeKind = iota
	// Closed is [lower, upper].
	Closed
)

func (k RangeKind) String() string {
	if k == Closed {
		return "closed"
	}
	return "halfOpen"
}

// MarshalText implements encoding.TextMarshaler.
func (k RangeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *RangeKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "halfOpen", "":
		*k = HalfOpen
	case "closed":
		*k = Closed
	default:
		return fmt.Errorf("unknown range kind %q", b)
	}
	return nil
}

// Range is a transferable numeric interval. The bounds are kept in the byte
// layout of DataType so they survive a process boundary unchanged.
type Range struct {
	Kind       RangeKind `json:"kind"`
	LowerBound []byte    `json:"lowerBound"`
	UpperBound []byte    `json:"upperBound"`
	DataType   DataType  `json:"dataType"`
}

// NewRange encodes lower and upper using the data type matching T.
func NewRange[T Native](kind RangeKind, lower, upper T) Range {
	dt := nativeDataType[T]()
	return Range{
		Kind:       kind,
		LowerBound: dt.Encode([]float32{nativeFloat32(lower)}),
		UpperBound: dt.Encode([]float32{nativeFloat32(upper)}),
		DataType:   dt,
	}
}

// Bounds decodes the lower and upper bounds.
func (r Range) Bounds() (lower, upper float32, err error) {
	if !r.DataType.Valid() {
		return 0, 0, fmt.Errorf("%w: unknown bound data type %d", ErrInvalidRange, int(r.DataType))
	}
	if r.Kind != HalfOpen && r.Kind != Closed {
		return 0, 0, fmt.Errorf("%w: unknown range kind %d", ErrInvalidRange, int(r.Kind))
	}
	lo, err := r.DataType.Decode(r.LowerBound)
	if err != nil || len(lo) != 1 {
		return 0, 0, fmt.Errorf("%w: lower bound", ErrInvalidRange)
	}
	hi, err := r.DataType.Decode(r.UpperBound)
	if err != nil || len(hi) != 1 {
		return 0, 0, fmt.Errorf("%w: upper bound", ErrInvalidRange)
	}
	if lo[0] > hi[0] {
		return 0, 0, fmt.Errorf("%w: lower bound %g above upper bound %g", ErrInvalidRange, lo[0], hi[0])
	}
	return lo[0], hi[0], nil
}

// Sample draws one value from the range.
func (r Range) Sample(rng *rand.Rand) (float32, error) {
	lo, hi, err := r.Bounds()
	if err != nil {
		return 0, err
	}

	var u float64
	if r.Kind == Closed {
		// 53 random bits scaled so that 1.0 is reachable.
		u = float64(rng.Int63()>>10) / float64(1<<53-1)
	} else {
		u = rng.Float64()
	}

	v := lo + float32(u)*(hi-lo)
	if r.Kind == HalfOpen && v >= hi && hi > lo {
		v = lo
	}
	return v, nil
}

// RandomDescriptor describes how a tensor's data is randomly generated.
type RandomDescriptor struct {
	Type  RandomInitializerType `json:"type"`
	Range Range                 `json:"range"`
}

// Validate checks the initializer type and that the range bounds decode in
// order.
func (d RandomDescriptor) Validate() error {
	if d.Type != Uniform && d.Type != UniformNow {
		return fmt.Errorf("%w: unknown random initializer %d", ErrInvalidRange, int(d.Type))
	}
	_, _, err := d.Range.Bounds()
	return err
}

// Fill draws n values from the descriptor's range.
func (d RandomDescriptor) Fill(rng *rand.Rand, n int) ([]float32, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	out := make([]float32, n)
	for i := range out {
		v, err := d.Range.Sample(rng)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
