package engine

import "fmt"

// LossFunction selects the training objective.
type LossFunction string

// Supported loss functions.
const (
	MeanSquaredError  LossFunction = "meanSquaredError"
	MeanAbsoluteError LossFunction = "meanAbsoluteError"
)

// Valid reports whether l names a supported loss.
func (l LossFunction) Valid() bool {
	return l == MeanSquaredError || l == MeanAbsoluteError
}

// OptimizerKind names a parameter update rule.
type OptimizerKind string

// Supported optimizers.
const (
	SGD            OptimizerKind = "sgd"
	Adam           OptimizerKind = "adam"
	RootMeanSquare OptimizerKind = "rootMeanSquare"
)

// Optimizer configures the update rule applied after every training batch.
type Optimizer struct {
	Kind         OptimizerKind `json:"kind"`
	LearningRate float32       `json:"learningRate"`
}

// Validate checks the kind and learning rate.
func (o Optimizer) Validate() error {
	switch o.Kind {
	case SGD, Adam, RootMeanSquare:
	default:
		return fmt.Errorf("unknown optimizer %q", o.Kind)
	}
	if o.LearningRate <= 0 {
		return fmt.Errorf("optimizer %s: learning rate must be positive, got %g", o.Kind, o.LearningRate)
	}
	return nil
}

// Mode distinguishes inference sessions from training sessions.
type Mode string

// Session modes.
const (
	Inference Mode = "inference"
	Training  Mode = "training"
)

// Kind describes what a session does with its graph.
type Kind struct {
	Mode         Mode         `json:"mode"`
	LossFunction LossFunction `json:"lossFunction,omitempty"`
	Optimizer    Optimizer    `json:"optimizer,omitzero"`
}

// InferenceKind returns the kind of a session that only runs forward passes.
func InferenceKind() Kind {
	return Kind{Mode: Inference}
}

// TrainingKind returns the kind of a session that updates parameters after
// every batch.
func TrainingKind(loss LossFunction, opt Optimizer) Kind {
	return Kind{Mode: Training, LossFunction: loss, Optimizer: opt}
}

// Validate checks the loss and optimizer of training kinds.
func (k Kind) Validate() error {
	switch k.Mode {
	case Inference:
		return nil
	case Training:
		if !k.LossFunction.Valid() {
			return fmt.Errorf("unknown loss function %q", k.LossFunction)
		}
		return k.Optimizer.Validate()
	default:
		return fmt.Errorf("unknown session mode %q", k.Mode)
	}
}

func (k Kind) String() string {
	if k.Mode != Training {
		return string(k.Mode)
	}
	return fmt.Sprintf("training(%s, %s lr=%g)", k.LossFunction, k.Optimizer.Kind, k.Optimizer.LearningRate)
}
