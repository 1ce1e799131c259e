// Package engine turns transferable graphs and datasets into executing
// sessions on a pluggable backend.
package engine

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/mimic-ml/mimic/internal/graph"
	"github.com/mimic-ml/mimic/internal/tensor"
)

// Backend builds executable graphs from transferable descriptions.
type Backend interface {
	Name() string
	NewInferenceGraph(g graph.Graph) (InferenceGraph, error)
	NewTrainingGraph(g graph.Graph, labels []tensor.Tensor, loss LossFunction, opt Optimizer) (TrainingGraph, error)
}

// InferenceGraph is a lowered graph that runs forward passes.
type InferenceGraph interface {
	// Compile prepares the graph for device. Repeated calls are no-ops.
	Compile(ctx context.Context, device tensor.Device) error
	Execute(ctx context.Context, inputs []tensor.Tensor, batchSize int) ([]tensor.Tensor, error)
}

// TrainingGraph is a lowered graph with a loss and an optimizer attached.
type TrainingGraph interface {
	Compile(ctx context.Context, device tensor.Device) error

	// ExecuteTraining runs one forward and backward pass and applies one
	// optimizer step. It returns the forward outputs of the batch.
	ExecuteTraining(ctx context.Context, inputs, labels []tensor.Tensor, batchSize int) ([]tensor.Tensor, error)

	// Synchronize makes the trained parameters readable by Graph.
	Synchronize(ctx context.Context) error

	// Graph reconstructs the transferable graph with the current parameters.
	Graph() (graph.Graph, error)
}

var backends = make(map[string]func() (Backend, error))

// RegisterBackend makes a backend available by name. It panics when name is
// registered twice.
func RegisterBackend(name string, f func() (Backend, error)) {
	if _, ok := backends[name]; ok {
		panic("backend: backend already registered")
	}

	backends[name] = f
}

// NewBackend instantiates the backend registered under name.
func NewBackend(name string) (Backend, error) {
	if f, ok := backends[name]; ok {
		return f()
	}

	return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownBackend, name, Backends())
}

// Backends lists the registered backend names in order.
func Backends() []string {
	return slices.Sorted(maps.Keys(backends))
}
