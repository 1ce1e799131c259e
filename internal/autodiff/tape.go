package autodiff

import (
	"github.com/mimic-ml/mimic/internal/autodiff/ops"
	"github.com/mimic-ml/mimic/internal/tensor"
)

// GradientTape is the ordered record of one training step's forward pass.
// The cpu training graph clears it before every batch, records the network
// and its loss, and walks it backwards once to obtain parameter gradients.
type GradientTape struct {
	operations []ops.Operation
	recording  bool
}

// NewGradientTape creates an empty tape that is not recording.
func NewGradientTape() *GradientTape {
	return &GradientTape{operations: make([]ops.Operation, 0, 16)}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() { t.recording = true }

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() { t.recording = false }

// IsRecording reports whether Record currently appends.
func (t *GradientTape) IsRecording() bool { return t.recording }

// Record appends op when the tape is recording.
func (t *GradientTape) Record(op ops.Operation) {
	if !t.recording {
		return
	}
	t.operations = append(t.operations, op)
}

// Clear drops every recorded operation and keeps the recording state.
func (t *GradientTape) Clear() {
	clear(t.operations)
	t.operations = t.operations[:0]
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int {
	return len(t.operations)
}

// Backward seeds the last recorded output with outputGrad and propagates
// gradients to every tensor the tape has seen. A tensor used by several
// operations receives the sum of its gradients. The result is keyed by
// tensor identity, which is how parameters find their gradients.
func (t *GradientTape) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) map[*tensor.RawTensor]*tensor.RawTensor {
	grads := make(map[*tensor.RawTensor]*tensor.RawTensor, len(t.operations)+1)
	if len(t.operations) == 0 {
		return grads
	}

	// Gradient kernels run through the same backend and must not be taped.
	saved := t.recording
	t.recording = false
	defer func() { t.recording = saved }()

	grads[t.operations[len(t.operations)-1].Output()] = outputGrad
	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		upstream, ok := grads[op.Output()]
		if !ok {
			continue
		}
		inputs := op.Inputs()
		for j, g := range op.Backward(upstream, backend) {
			if g == nil || j >= len(inputs) {
				continue
			}
			if prev, seen := grads[inputs[j]]; seen {
				g = backend.Add(prev, g)
			}
			grads[inputs[j]] = g
		}
	}
	return grads
}
