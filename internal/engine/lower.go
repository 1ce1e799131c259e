package engine

import (
	"errors"
	"fmt"

	"github.com/mimic-ml/mimic/internal/graph"
	"github.com/mimic-ml/mimic/internal/tensor"
)

// GraphBuilder is implemented by backends to receive the nodes of a lowered
// graph. N is the backend's node handle. Backends compute channel-first, so
// the builder only ever sees [N, C, H, W] image tensors.
type GraphBuilder[N any] interface {
	Placeholder(t tensor.Tensor) (N, error)
	Transpose(src N, perm []int) (N, error)
	Layer(index int, l graph.Layer, sources []N) (N, error)
	Rank(n N) int
}

// Lowered is the result of walking a graph into a builder.
type Lowered[N any] struct {
	// Inputs holds one node per declared input tensor in layer order. These
	// are the untransposed placeholders the caller feeds.
	Inputs []N
	Output N

	// ChannelLast is set when inputs and outputs are exchanged in
	// [N, H, W, C] layout.
	ChannelLast bool
}

// Lower walks g layer by layer, materialising placeholders and layers into b.
// For channel-last graphs every rank-4 placeholder is transposed to
// channel-first before use and a rank-4 output is transposed back.
func Lower[N any](g graph.Graph, b GraphBuilder[N]) (*Lowered[N], error) {
	if len(g.Layers) == 0 {
		return nil, &GraphConversionError{Index: -1, Err: errors.New("graph has no layers")}
	}
	if !g.DataType.Valid() {
		return nil, &GraphConversionError{Index: -1, Err: fmt.Errorf("%w: graph data type %d", tensor.ErrInvalidData, int(g.DataType))}
	}

	out := &Lowered[N]{ChannelLast: g.FeatureChannelPosition == tensor.Last}

	var (
		running N
		have    bool
	)
	for i, l := range g.Layers {
		if err := l.Validate(); err != nil {
			return nil, conversionError(i, l, err)
		}

		var sources []N
		if have {
			sources = append(sources, running)
		}
		for _, t := range g.LayerInputTensors(i) {
			p, err := b.Placeholder(t)
			if err != nil {
				return nil, conversionError(i, l, err)
			}
			out.Inputs = append(out.Inputs, p)

			if out.ChannelLast && t.Rank() == 4 {
				if p, err = b.Transpose(p, tensor.ToFirst); err != nil {
					return nil, conversionError(i, l, err)
				}
			}
			sources = append(sources, p)
		}

		n, err := b.Layer(i, l, sources)
		if err != nil {
			return nil, conversionError(i, l, err)
		}
		running, have = n, true
	}

	if out.ChannelLast && b.Rank(running) == 4 {
		last := len(g.Layers) - 1
		n, err := b.Transpose(running, tensor.ToLast)
		if err != nil {
			return nil, conversionError(last, g.Layers[last], err)
		}
		running = n
	}
	out.Output = running
	return out, nil
}
