package nn

import (
	"fmt"

	"github.com/mimic-ml/mimic/internal/tensor"
)

// LossBackend is a backend that can compute and record the supported losses.
type LossBackend interface {
	tensor.Backend
	MSELoss(pred, target *tensor.RawTensor) *tensor.RawTensor
	MAELoss(pred, target *tensor.RawTensor) *tensor.RawTensor
}

// Loss computes a scalar training objective.
type Loss interface {
	Forward(pred, target *tensor.RawTensor) (*tensor.RawTensor, error)
}

// MSELoss is the mean squared error: mean((pred - target)²).
type MSELoss struct {
	backend LossBackend
}

// NewMSELoss creates a mean squared error loss.
func NewMSELoss(backend LossBackend) *MSELoss {
	return &MSELoss{backend: backend}
}

// Forward computes the loss. pred and target must hold the same number of
// elements; target is reshaped to pred's shape.
func (l *MSELoss) Forward(pred, target *tensor.RawTensor) (*tensor.RawTensor, error) {
	target, err := alignTarget(pred, target)
	if err != nil {
		return nil, err
	}
	return l.backend.MSELoss(pred, target), nil
}

// MAELoss is the mean absolute error: mean(|pred - target|).
type MAELoss struct {
	backend LossBackend
}

// NewMAELoss creates a mean absolute error loss.
func NewMAELoss(backend LossBackend) *MAELoss {
	return &MAELoss{backend: backend}
}

// Forward computes the loss.
func (l *MAELoss) Forward(pred, target *tensor.RawTensor) (*tensor.RawTensor, error) {
	target, err := alignTarget(pred, target)
	if err != nil {
		return nil, err
	}
	return l.backend.MAELoss(pred, target), nil
}

func alignTarget(pred, target *tensor.RawTensor) (*tensor.RawTensor, error) {
	if pred.Shape().Equal(target.Shape()) {
		return target, nil
	}
	v, err := target.View(pred.Shape())
	if err != nil {
		return nil, fmt.Errorf("loss: labels %v do not match predictions %v: %w", target.Shape(), pred.Shape(), err)
	}
	return v, nil
}
