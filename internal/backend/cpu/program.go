package cpu

import (
	"fmt"
	"slices"

	"github.com/mimic-ml/mimic/internal/engine"
	"github.com/mimic-ml/mimic/internal/graph"
	"github.com/mimic-ml/mimic/internal/tensor"
)

// program is a lowered graph ready to evaluate on one kernel backend.
type program struct {
	graph   graph.Graph
	backend tensor.Backend
	nodes   []*node
	feeds   []tensor.Tensor
	modules []layerModule
	output  int
}

func lower(g graph.Graph, b *builder) (*program, error) {
	lowered, err := engine.Lower(g, b)
	if err != nil {
		return nil, err
	}
	return &program{
		graph:   g,
		backend: b.backend,
		nodes:   b.nodes,
		feeds:   b.feeds,
		modules: b.modules,
		output:  lowered.Output.id,
	}, nil
}

// outputShape is the declared shape of the program's result.
func (p *program) outputShape() tensor.Shape {
	return p.nodes[p.output].shape
}

// forward evaluates every node and returns the output.
func (p *program) forward(inputs []tensor.Tensor, batchSize int) (*tensor.RawTensor, error) {
	fed, err := decodeBatch("input", p.feeds, inputs, batchSize)
	if err != nil {
		return nil, err
	}

	values := make([]*tensor.RawTensor, len(p.nodes))
	for _, n := range p.nodes {
		switch n.kind {
		case feedNode:
			values[n.id] = fed[n.feed]
		case constNode:
			values[n.id] = n.value
		case transposeNode:
			values[n.id] = p.backend.Transpose(values[n.sources[0]], n.perm...)
		case moduleNode:
			args := make([]*tensor.RawTensor, len(n.sources))
			for i, s := range n.sources {
				args[i] = values[s]
			}
			out, err := n.module.Forward(args...)
			if err != nil {
				return nil, fmt.Errorf("layer %d: %w", n.layer, err)
			}
			values[n.id] = out
		}
	}
	return values[p.output], nil
}

// encode converts a result back into the graph's element type and layout.
func (p *program) encode(out *tensor.RawTensor) tensor.Tensor {
	return out.ToTensor(p.graph.DataType, p.graph.FeatureChannelPosition)
}

// rebuild returns the graph with every parameterised layer carrying its
// current weights and biases.
func (p *program) rebuild() graph.Graph {
	layers := slices.Clone(p.graph.Layers)
	for _, lm := range p.modules {
		params := lm.module.Parameters()
		if len(params) == 0 {
			continue
		}

		l := &layers[lm.index]
		w := params[0].Value().ToTensor(l.Weights.DataType, l.Weights.FeatureChannelPosition)
		l.Weights = &w
		if len(params) > 1 && l.Biases != nil {
			b := params[1].Value().ToTensor(l.Biases.DataType, tensor.NotApplicable)
			l.Biases = &b
		}
	}
	return p.graph.WithLayers(layers)
}

// decodeBatch checks every tensor against its placeholder, allowing the
// leading extent to follow the batch size, and decodes it.
func decodeBatch(what string, placeholders, tensors []tensor.Tensor, batchSize int) ([]*tensor.RawTensor, error) {
	if len(tensors) != len(placeholders) {
		return nil, fmt.Errorf("%w: %d %s tensors for %d placeholders", tensor.ErrShapeMismatch, len(tensors), what, len(placeholders))
	}
	out := make([]*tensor.RawTensor, len(tensors))
	for i, t := range tensors {
		want := placeholders[i].Shape
		if t.Rank() != len(want) || !t.Shape.Trailing().Equal(want.Trailing()) {
			return nil, fmt.Errorf("%w: %s %d has shape %v, placeholder is %v", tensor.ErrShapeMismatch, what, i, t.Shape, want)
		}
		if t.Rank() > 0 && batchSize > 0 && t.Shape[0] != batchSize {
			return nil, fmt.Errorf("%w: %s %d has %d rows, batch size is %d", tensor.ErrShapeMismatch, what, i, t.Shape[0], batchSize)
		}
		r, err := tensor.RawFromTensor(t)
		if err != nil {
			return nil, fmt.Errorf("%s %d: %w", what, i, err)
		}
		out[i] = r
	}
	return out, nil
}
