package graph

import (
	"errors"
	"fmt"

	"github.com/mimic-ml/mimic/internal/tensor"
)

// ErrLayerNotFound reports a label that matches no layer.
var ErrLayerNotFound = errors.New("layer not found")

// Kind is the topology of a graph.
type Kind string

// Sequential graphs feed each layer's output into the next layer.
const Sequential Kind = "sequential"

// Graph is an ordered list of layers plus the extra input tensors each layer
// consumes. InputTensors[0] holds the placeholders the dataset feeds; later
// entries hold additional operands for their layer.
type Graph struct {
	Kind                   Kind                          `json:"kind"`
	DataType               tensor.DataType               `json:"dataType"`
	InputTensors           [][]tensor.Tensor             `json:"inputTensors"`
	Layers                 []Layer                       `json:"layers"`
	FeatureChannelPosition tensor.FeatureChannelPosition `json:"featureChannelPosition"`
}

// New creates a sequential graph.
func New(dt tensor.DataType, inputs [][]tensor.Tensor, layers []Layer, pos tensor.FeatureChannelPosition) Graph {
	return Graph{
		Kind:                   Sequential,
		DataType:               dt,
		InputTensors:           inputs,
		Layers:                 layers,
		FeatureChannelPosition: pos,
	}
}

// LayerInputTensors returns the extra inputs of layer i, or nil when none
// were declared.
func (g Graph) LayerInputTensors(i int) []tensor.Tensor {
	if i < 0 || i >= len(g.InputTensors) {
		return nil
	}
	return g.InputTensors[i]
}

// Placeholders flattens every declared input tensor in layer order.
func (g Graph) Placeholders() []tensor.Tensor {
	var out []tensor.Tensor
	for _, inputs := range g.InputTensors {
		out = append(out, inputs...)
	}
	return out
}

// Layer returns the first layer carrying label.
func (g Graph) Layer(label string) (Layer, error) {
	for _, l := range g.Layers {
		if l.Label != "" && l.Label == label {
			return l, nil
		}
	}
	return Layer{}, fmt.Errorf("%w: %q", ErrLayerNotFound, label)
}

// WithLayers returns a copy of the graph with its layers replaced.
func (g Graph) WithLayers(layers []Layer) Graph {
	out := g
	out.Layers = layers
	return out
}
