package autodiff

import (
	"fmt"

	"github.com/mimic-ml/mimic/internal/tensor"
)

// BackwardCapable is an interface for backends that support backward pass.
// AutodiffBackend implements this interface.
type BackwardCapable interface {
	tensor.Backend

	// Tape returns the gradient tape for backward computation.
	Tape() *GradientTape
}

// Backward computes gradients of out with respect to every tensor recorded
// on the backend's tape, seeding the pass with ones.
//
// Backward does not run the backward kernels through the tape: gradient
// operations are never recorded.
func Backward(out *tensor.RawTensor, backend BackwardCapable) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.Tape()
	if tape.NumOps() == 0 {
		panic("backward: no operations recorded (did you forget to call Tape().StartRecording()?)")
	}

	outputGrad, err := tensor.NewRaw(out.Shape())
	if err != nil {
		panic(fmt.Sprintf("backward: failed to create output gradient: %v", err))
	}
	data := outputGrad.AsFloat32()
	for i := range data {
		data[i] = 1.0
	}

	return tape.Backward(outputGrad, backend)
}
