package tensor

import "errors"

var (
	// ErrInvalidData reports a byte buffer that does not match its declared shape and type.
	ErrInvalidData = errors.New("invalid tensor data")
	// ErrShapeMismatch reports operands whose shapes cannot be combined.
	ErrShapeMismatch = errors.New("tensor shape mismatch")
	// ErrRankMismatch reports an accessor used on a tensor of a different rank.
	ErrRankMismatch = errors.New("tensor rank mismatch")
	// ErrTypeMismatch reports operands with different element types.
	ErrTypeMismatch = errors.New("tensor data type mismatch")
	// ErrOutOfRange reports a slice or index outside the leading dimension.
	ErrOutOfRange = errors.New("index out of range")
	// ErrInvalidRange reports a random range whose bounds are inverted or unreadable.
	ErrInvalidRange = errors.New("invalid random range")
)
