// Package graph describes layers and sequential graphs as transferable values.
package graph

import (
	"errors"
	"fmt"

	"github.com/mimic-ml/mimic/internal/tensor"
)

// ErrInvalidLayer reports a layer missing fields its kind requires.
var ErrInvalidLayer = errors.New("invalid layer")

// LayerKind identifies the computation a layer performs.
type LayerKind string

// Supported layer kinds.
const (
	Arithmetic     LayerKind = "arithmetic"
	Convolution    LayerKind = "convolution"
	FullyConnected LayerKind = "fullyConnected"
)

// ArithmeticOperation is the element-wise operation of an arithmetic layer.
type ArithmeticOperation string

// Supported arithmetic operations.
const (
	Add      ArithmeticOperation = "add"
	Subtract ArithmeticOperation = "subtract"
	Multiply ArithmeticOperation = "multiply"
	Divide   ArithmeticOperation = "divide"
)

// Valid reports whether op is a known operation.
func (op ArithmeticOperation) Valid() bool {
	switch op {
	case Add, Subtract, Multiply, Divide:
		return true
	}
	return false
}

// KernelSize is the spatial extent of a convolution kernel.
type KernelSize struct {
	Height int `json:"height"`
	Width  int `json:"width"`
}

// Layer is a declarative description of one computation node. Which optional
// fields must be set depends on Kind; Validate checks them.
type Layer struct {
	Label    string          `json:"label,omitempty"`
	Kind     LayerKind       `json:"kind"`
	DataType tensor.DataType `json:"dataType"`

	ArithmeticOperation ArithmeticOperation `json:"arithmeticOperation,omitempty"`

	KernelSize                *KernelSize    `json:"kernelSize,omitempty"`
	InputFeatureChannelCount  int            `json:"inputFeatureChannelCount,omitempty"`
	OutputFeatureChannelCount int            `json:"outputFeatureChannelCount,omitempty"`
	Weights                   *tensor.Tensor `json:"weights,omitempty"`
	Biases                    *tensor.Tensor `json:"biases,omitempty"`
}

// Validate checks that the fields required by the layer's kind are present.
func (l Layer) Validate() error {
	switch l.Kind {
	case Arithmetic:
		if !l.ArithmeticOperation.Valid() {
			return fmt.Errorf("%w: arithmetic layer needs an operation, got %q", ErrInvalidLayer, l.ArithmeticOperation)
		}
		return nil

	case Convolution:
		if l.KernelSize == nil || l.KernelSize.Height <= 0 || l.KernelSize.Width <= 0 {
			return fmt.Errorf("%w: convolution layer needs a positive kernel size", ErrInvalidLayer)
		}
		return l.validateParameters()

	case FullyConnected:
		return l.validateParameters()

	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidLayer, l.Kind)
	}
}

func (l Layer) validateParameters() error {
	if l.InputFeatureChannelCount <= 0 || l.OutputFeatureChannelCount <= 0 {
		return fmt.Errorf("%w: %s layer needs input and output channel counts", ErrInvalidLayer, l.Kind)
	}
	if l.Weights == nil {
		return fmt.Errorf("%w: %s layer needs weights", ErrInvalidLayer, l.Kind)
	}
	if err := l.Weights.Validate(); err != nil {
		return fmt.Errorf("%w: weights: %w", ErrInvalidLayer, err)
	}
	if l.Biases != nil {
		if err := l.Biases.Validate(); err != nil {
			return fmt.Errorf("%w: biases: %w", ErrInvalidLayer, err)
		}
	}
	return nil
}

// WeightsShape is the parameter shape the layer's weights describe:
// [out, in] for fully connected and [out, in, kh, kw] for convolution.
func (l Layer) WeightsShape() tensor.Shape {
	switch l.Kind {
	case FullyConnected:
		return tensor.Shape{l.OutputFeatureChannelCount, l.InputFeatureChannelCount}
	case Convolution:
		if l.KernelSize == nil {
			return nil
		}
		return tensor.Shape{l.OutputFeatureChannelCount, l.InputFeatureChannelCount, l.KernelSize.Height, l.KernelSize.Width}
	default:
		return nil
	}
}

// BiasesShape is [out] for parameterised layers.
func (l Layer) BiasesShape() tensor.Shape {
	if l.Kind == Arithmetic {
		return nil
	}
	return tensor.Shape{l.OutputFeatureChannelCount}
}

// Name returns the label, or a positional fallback for unlabelled layers.
func (l Layer) Name(index int) string {
	if l.Label != "" {
		return l.Label
	}
	return fmt.Sprintf("%s.%d", l.Kind, index)
}
