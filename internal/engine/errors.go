package engine

import (
	"errors"
	"fmt"

	"github.com/mimic-ml/mimic/internal/dataset"
	"github.com/mimic-ml/mimic/internal/graph"
)

// Errors reported by sessions and backends.
var (
	ErrLayerConversion    = errors.New("layer conversion failed")
	ErrInvalidWeights     = errors.New("invalid weights")
	ErrMissingLabels      = errors.New("missing labels")
	ErrDeviceNotAvailable = errors.New("device not available")
	ErrInvalidOutput      = errors.New("invalid output")
	ErrNotCompiled        = errors.New("session not compiled")
	ErrUnknownBackend     = errors.New("unknown backend")

	ErrMissingData   = dataset.ErrMissingData
	ErrLayerNotFound = graph.ErrLayerNotFound
)

// GraphConversionError reports the layer a backend could not build. Index is
// -1 when the failure is not tied to a single layer.
type GraphConversionError struct {
	Index int
	Label string
	Kind  graph.LayerKind
	Err   error
}

func (e *GraphConversionError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%v: %v", ErrLayerConversion, e.Err)
	}
	name := e.Label
	if name == "" {
		name = fmt.Sprintf("%s.%d", e.Kind, e.Index)
	}
	return fmt.Sprintf("%v: layer %d (%s): %v", ErrLayerConversion, e.Index, name, e.Err)
}

// Unwrap exposes both ErrLayerConversion and the underlying cause to
// errors.Is and errors.As.
func (e *GraphConversionError) Unwrap() []error {
	return []error{ErrLayerConversion, e.Err}
}

func conversionError(index int, l graph.Layer, err error) error {
	return &GraphConversionError{Index: index, Label: l.Label, Kind: l.Kind, Err: err}
}
