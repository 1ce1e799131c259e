package engine

import (
	"context"
	"fmt"

	"github.com/mimic-ml/mimic/internal/graph"
	"github.com/mimic-ml/mimic/internal/tensor"
)

// Batch is one slice of a dataset ready for execution.
type Batch struct {
	Index  int
	Inputs []tensor.Tensor
	Labels []tensor.Tensor
	Size   int
}

// Operation executes batches against a compiled backend graph.
type Operation interface {
	Compile(ctx context.Context, device tensor.Device) error
	Execute(ctx context.Context, b Batch) ([]tensor.Tensor, error)

	// RetrieveGraph returns the graph with its current parameters.
	RetrieveGraph(ctx context.Context) (graph.Graph, error)
}

// InferenceOperation runs forward passes only. The parameters never change,
// so the graph it was built from is the graph it reports.
type InferenceOperation struct {
	graph    graph.Graph
	platform InferenceGraph
	compiled bool
}

// NewInferenceOperation lowers g on backend.
func NewInferenceOperation(backend Backend, g graph.Graph) (*InferenceOperation, error) {
	platform, err := backend.NewInferenceGraph(g)
	if err != nil {
		return nil, err
	}
	return &InferenceOperation{graph: g, platform: platform}, nil
}

// Compile compiles the backend graph once.
func (op *InferenceOperation) Compile(ctx context.Context, device tensor.Device) error {
	if op.compiled {
		return nil
	}
	if err := op.platform.Compile(ctx, device); err != nil {
		return err
	}
	op.compiled = true
	return nil
}

// Execute runs the forward pass for one batch.
func (op *InferenceOperation) Execute(ctx context.Context, b Batch) ([]tensor.Tensor, error) {
	if !op.compiled {
		return nil, ErrNotCompiled
	}
	out, err := op.platform.Execute(ctx, b.Inputs, b.Size)
	if err != nil {
		return nil, fmt.Errorf("batch %d: %w", b.Index, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("batch %d: %w: backend returned no tensors", b.Index, ErrInvalidOutput)
	}
	return out, nil
}

// RetrieveGraph returns the graph the operation was built from.
func (op *InferenceOperation) RetrieveGraph(context.Context) (graph.Graph, error) {
	return op.graph, nil
}

// TrainingOperation runs one optimizer step per batch.
type TrainingOperation struct {
	platform TrainingGraph
	compiled bool
}

// NewTrainingOperation lowers g on backend with a loss over labels and an
// optimizer. labels are the per-batch label placeholders.
func NewTrainingOperation(backend Backend, g graph.Graph, labels []tensor.Tensor, loss LossFunction, opt Optimizer) (*TrainingOperation, error) {
	if len(labels) == 0 {
		return nil, ErrMissingLabels
	}
	platform, err := backend.NewTrainingGraph(g, labels, loss, opt)
	if err != nil {
		return nil, err
	}
	return &TrainingOperation{platform: platform}, nil
}

// Compile compiles the backend graph once.
func (op *TrainingOperation) Compile(ctx context.Context, device tensor.Device) error {
	if op.compiled {
		return nil
	}
	if err := op.platform.Compile(ctx, device); err != nil {
		return err
	}
	op.compiled = true
	return nil
}

// Execute trains on one batch and returns its forward outputs.
func (op *TrainingOperation) Execute(ctx context.Context, b Batch) ([]tensor.Tensor, error) {
	if !op.compiled {
		return nil, ErrNotCompiled
	}
	if len(b.Labels) == 0 {
		return nil, fmt.Errorf("batch %d: %w", b.Index, ErrMissingLabels)
	}
	out, err := op.platform.ExecuteTraining(ctx, b.Inputs, b.Labels, b.Size)
	if err != nil {
		return nil, fmt.Errorf("batch %d: %w", b.Index, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("batch %d: %w: backend returned no tensors", b.Index, ErrInvalidOutput)
	}
	return out, nil
}

// RetrieveGraph synchronises the trained parameters and reconstructs the
// graph.
func (op *TrainingOperation) RetrieveGraph(ctx context.Context) (graph.Graph, error) {
	if err := op.platform.Synchronize(ctx); err != nil {
		return graph.Graph{}, fmt.Errorf("synchronize: %w", err)
	}
	return op.platform.Graph()
}

// RetrieveLayer synchronises and returns the layer carrying label.
func (op *TrainingOperation) RetrieveLayer(ctx context.Context, label string) (graph.Layer, error) {
	g, err := op.RetrieveGraph(ctx)
	if err != nil {
		return graph.Layer{}, err
	}
	return g.Layer(label)
}
