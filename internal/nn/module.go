// Package nn implements the neural network layers a lowered graph is built
// from, over host float32 tensors.
//
// This package provides:
//   - Module interface: Base interface for all NN components
//   - Parameter: Trainable parameters with gradient tracking
//   - Linear: Fully connected layer
//   - Conv2D: 2D convolution with same padding
//   - Arithmetic: Element-wise combination of several inputs
//   - Loss functions: MSE, MAE
package nn

import "github.com/mimic-ml/mimic/internal/tensor"

// Module is the base interface for all neural network components.
//
// Modules run their kernels through the backend they were built with, so a
// module built on an autodiff backend records itself on that backend's tape.
type Module interface {
	// Forward computes the output of the module from its inputs. The first
	// input is the running activation; the rest are extra operands.
	Forward(inputs ...*tensor.RawTensor) (*tensor.RawTensor, error)

	// Parameters returns all trainable parameters of this module.
	// Returns an empty slice for modules without trainable parameters.
	Parameters() []*Parameter
}
