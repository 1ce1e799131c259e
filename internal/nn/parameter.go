package nn

import "github.com/mimic-ml/mimic/internal/tensor"

// Parameter represents a trainable parameter in a neural network.
//
// Parameters are tensors that require gradient computation during training.
// They typically represent weights and biases of layers. The value is
// updated in place by optimizers, so gradients recorded against it on a
// tape are found by pointer identity.
//
// Example:
//
//	weight := nn.NewParameter("dense.weight", w)
//	grads := autodiff.Backward(loss, backend)
//	g := grads[weight.Value()]
type Parameter struct {
	name  string            // Parameter name (e.g., "dense.weight")
	value *tensor.RawTensor // The parameter tensor
	grad  *tensor.RawTensor // Gradient tensor (computed during backward pass)
}

// NewParameter creates a new trainable parameter.
func NewParameter(name string, value *tensor.RawTensor) *Parameter {
	return &Parameter{name: name, value: value}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Value returns the parameter tensor.
func (p *Parameter) Value() *tensor.RawTensor {
	return p.value
}

// Grad returns the gradient tensor, or nil before a backward pass.
func (p *Parameter) Grad() *tensor.RawTensor {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter) SetGrad(grad *tensor.RawTensor) {
	p.grad = grad
}

// ZeroGrad clears the gradient tensor.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}
