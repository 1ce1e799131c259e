package tensor

import (
	"fmt"
	"strings"
)

// FeatureChannelPosition tells which axis of a rank-4 tensor holds the
// feature channels.
type FeatureChannelPosition int

// Feature channel positions.
const (
	// NotApplicable is used by every tensor whose rank is not 4.
	NotApplicable FeatureChannelPosition = iota
	// First places channels at axis 1: [N, C, H, W].
	First
	// Last places channels at axis 3: [N, H, W, C].
	Last
)

func (p FeatureChannelPosition) String() string {
	switch p {
	case First:
		return "first"
	case Last:
		return "last"
	default:
		return "notApplicable"
	}
}

// ParseFeatureChannelPosition parses the names produced by String.
func ParseFeatureChannelPosition(s string) (FeatureChannelPosition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "first", "nchw":
		return First, nil
	case "last", "nhwc":
		return Last, nil
	case "notapplicable", "none", "":
		return NotApplicable, nil
	default:
		return 0, fmt.Errorf("unknown feature channel position %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p FeatureChannelPosition) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *FeatureChannelPosition) UnmarshalText(b []byte) error {
	v, err := ParseFeatureChannelPosition(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// channelPositionFor forces NotApplicable for every rank other than 4.
func channelPositionFor(shape Shape, p FeatureChannelPosition) FeatureChannelPosition {
	if len(shape) != 4 {
		return NotApplicable
	}
	return p
}

// ToFirst is the permutation that moves a trailing channel axis to axis 1.
var ToFirst = []int{0, 3, 1, 2}

// ToLast is the inverse of ToFirst.
var ToLast = []int{0, 2, 3, 1}
