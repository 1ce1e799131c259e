package optim

import (
	"math"

	"github.com/mimic-ml/mimic/internal/nn"
)

// RMSProp scales each step by a running average of squared gradients.
//
// Update rule:
//
//	s_t = alpha * s_{t-1} + (1-alpha) * gradient²
//	param = param - lr * gradient / (sqrt(s_t) + eps)
type RMSProp struct {
	params []*nn.Parameter
	lr     float32
	alpha  float32
	eps    float32
	sq     map[*nn.Parameter][]float32
}

// RMSPropConfig holds configuration for RMSProp optimizer.
type RMSPropConfig struct {
	LR    float32 // Learning rate (default: 0.001)
	Alpha float32 // Smoothing constant (default: 0.9)
	Eps   float32 // Term for numerical stability (default: 1e-7)
}

// NewRMSProp creates a new RMSProp optimizer.
func NewRMSProp(params []*nn.Parameter, config RMSPropConfig) *RMSProp {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Alpha == 0 {
		config.Alpha = 0.9
	}
	if config.Eps == 0 {
		config.Eps = 1e-7
	}
	return &RMSProp{
		params: params,
		lr:     config.LR,
		alpha:  config.Alpha,
		eps:    config.Eps,
		sq:     make(map[*nn.Parameter][]float32),
	}
}

// Step performs a single optimization step.
func (r *RMSProp) Step(grads GradientMap) {
	for _, param := range r.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		sq := state(r.sq, param)
		data := param.Value().AsFloat32()
		for i := range data {
			g := grad[i]
			sq[i] = r.alpha*sq[i] + (1-r.alpha)*g*g
			data[i] -= r.lr * g / (float32(math.Sqrt(float64(sq[i]))) + r.eps)
		}
	}
}

// ZeroGrad clears all parameter gradients.
func (r *RMSProp) ZeroGrad() {
	zeroGrads(r.params)
}

// GetLR returns the current learning rate.
func (r *RMSProp) GetLR() float32 {
	return r.lr
}
