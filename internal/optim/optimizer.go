// Package optim implements optimization algorithms for training neural networks.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//   - RMSProp: Root mean square propagation
//
// Example usage:
//
//	optimizer := optim.NewAdam(params, optim.AdamConfig{LR: 0.001})
//
//	backend.Tape().StartRecording()
//	output, _ := model.Forward(input)
//	loss, _ := lossFunc.Forward(output, targets)
//	grads := autodiff.Backward(loss, backend)
//
//	optimizer.Step(grads)
//	optimizer.ZeroGrad()
package optim

import (
	"github.com/mimic-ml/mimic/internal/nn"
	"github.com/mimic-ml/mimic/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
//
// Optimizers update model parameters in place based on computed gradients
// to minimize the loss function during training.
type Optimizer interface {
	// Step applies gradient updates to all parameters.
	//
	// Takes a gradient map from Backward() and updates parameters in-place.
	// Parameters absent from the map are left untouched.
	Step(grads GradientMap)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32
}

// GradientMap maps each tensor recorded on a tape to its gradient, as
// returned by autodiff.Backward.
type GradientMap = map[*tensor.RawTensor]*tensor.RawTensor

// getGradient retrieves the gradient for a parameter and remembers it on the
// parameter.
//
// Returns nil if no gradient is found (parameter wasn't part of computation graph).
func getGradient(param *nn.Parameter, grads GradientMap) []float32 {
	if param == nil {
		return nil
	}
	grad, ok := grads[param.Value()]
	if !ok {
		return nil
	}
	param.SetGrad(grad)
	return grad.AsFloat32()
}

func zeroGrads(params []*nn.Parameter) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// state returns the per-parameter buffer stored in m, allocating zeros on
// first use.
func state(m map[*nn.Parameter][]float32, p *nn.Parameter) []float32 {
	buf, ok := m[p]
	if !ok {
		buf = make([]float32, p.Value().NumElements())
		m[p] = buf
	}
	return buf
}
