package cpu

import (
	"fmt"
	"math/rand"

	"github.com/mimic-ml/mimic/internal/engine"
	"github.com/mimic-ml/mimic/internal/graph"
	"github.com/mimic-ml/mimic/internal/nn"
	"github.com/mimic-ml/mimic/internal/tensor"
)

type nodeKind int

const (
	feedNode nodeKind = iota
	constNode
	transposeNode
	moduleNode
)

// node is one step of a lowered program. Nodes are evaluated in creation
// order, so every source index is smaller than the node's own.
type node struct {
	id      int
	kind    nodeKind
	shape   tensor.Shape // declared shape; the leading extent follows the batch
	feed    int          // position among fed placeholders
	value   *tensor.RawTensor
	perm    []int
	sources []int
	layer   int
	module  nn.Module
}

// builder implements engine.GraphBuilder over nodes, building nn modules on
// one kernel backend.
type builder struct {
	backend tensor.Backend
	rng     *rand.Rand
	nodes   []*node
	feeds   []tensor.Tensor
	modules []layerModule
}

// layerModule ties a built module to the layer it came from.
type layerModule struct {
	index  int
	module nn.Module
}

var _ engine.GraphBuilder[*node] = (*builder)(nil)

func newBuilder(backend tensor.Backend, rng *rand.Rand) *builder {
	return &builder{backend: backend, rng: rng}
}

func (b *builder) add(n *node) *node {
	n.id = len(b.nodes)
	b.nodes = append(b.nodes, n)
	return n
}

// Placeholder registers a fed input, or a constant when t carries data.
func (b *builder) Placeholder(t tensor.Tensor) (*node, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.IsPlaceholder() {
		b.feeds = append(b.feeds, t)
		return b.add(&node{kind: feedNode, shape: t.Shape.Clone(), feed: len(b.feeds) - 1}), nil
	}
	value, err := tensor.RawFromTensor(t)
	if err != nil {
		return nil, err
	}
	return b.add(&node{kind: constNode, shape: t.Shape.Clone(), value: value}), nil
}

// Transpose permutes the dimensions of src.
func (b *builder) Transpose(src *node, perm []int) (*node, error) {
	if len(perm) != len(src.shape) {
		return nil, fmt.Errorf("%w: permutation %v for shape %v", tensor.ErrRankMismatch, perm, src.shape)
	}
	return b.add(&node{kind: transposeNode, shape: src.shape.Permute(perm), perm: perm, sources: []int{src.id}}), nil
}

// Rank returns the declared rank of n.
func (b *builder) Rank(n *node) int {
	return len(n.shape)
}

// Layer builds the nn module for l and infers its output shape.
func (b *builder) Layer(index int, l graph.Layer, sources []*node) (*node, error) {
	ids := make([]int, len(sources))
	for i, s := range sources {
		ids[i] = s.id
	}

	var (
		module nn.Module
		shape  tensor.Shape
		err    error
	)
	switch l.Kind {
	case graph.Arithmetic:
		module, shape, err = b.arithmetic(l, sources)
	case graph.FullyConnected:
		module, shape, err = b.fullyConnected(index, l, sources)
	case graph.Convolution:
		module, shape, err = b.convolution(index, l, sources)
	default:
		err = fmt.Errorf("%w: unknown kind %q", graph.ErrInvalidLayer, l.Kind)
	}
	if err != nil {
		return nil, err
	}

	b.modules = append(b.modules, layerModule{index: index, module: module})
	return b.add(&node{kind: moduleNode, shape: shape, sources: ids, layer: index, module: module}), nil
}

var operators = map[graph.ArithmeticOperation]nn.Operator{
	graph.Add:      nn.OpAdd,
	graph.Subtract: nn.OpSub,
	graph.Multiply: nn.OpMul,
	graph.Divide:   nn.OpDiv,
}

func (b *builder) arithmetic(l graph.Layer, sources []*node) (nn.Module, tensor.Shape, error) {
	if len(sources) < 2 {
		return nil, nil, fmt.Errorf("arithmetic layer needs at least 2 operands, got %d", len(sources))
	}
	shape := sources[0].shape
	for _, s := range sources[1:] {
		out, _, err := tensor.BroadcastShapes(shape, s.shape)
		if err != nil {
			return nil, nil, err
		}
		shape = out
	}
	return nn.NewArithmetic(operators[l.ArithmeticOperation], b.backend), shape, nil
}

func (b *builder) fullyConnected(index int, l graph.Layer, sources []*node) (nn.Module, tensor.Shape, error) {
	x, err := single(sources)
	if err != nil {
		return nil, nil, err
	}
	if len(x.shape) == 0 {
		return nil, nil, fmt.Errorf("%w: fully connected layer on a scalar", tensor.ErrRankMismatch)
	}
	if features := x.shape.NumElements() / x.shape[0]; features != l.InputFeatureChannelCount {
		return nil, nil, fmt.Errorf("%w: input %v has %d features, layer expects %d",
			tensor.ErrShapeMismatch, x.shape, features, l.InputFeatureChannelCount)
	}

	weight, bias, err := b.parameters(l)
	if err != nil {
		return nil, nil, err
	}
	module, err := nn.NewLinear(l.Name(index), weight, bias, b.backend)
	if err != nil {
		return nil, nil, err
	}
	return module, tensor.Shape{x.shape[0], l.OutputFeatureChannelCount}, nil
}

func (b *builder) convolution(index int, l graph.Layer, sources []*node) (nn.Module, tensor.Shape, error) {
	x, err := single(sources)
	if err != nil {
		return nil, nil, err
	}
	if len(x.shape) != 4 || x.shape[1] != l.InputFeatureChannelCount {
		return nil, nil, fmt.Errorf("%w: convolution input %v, want [N, %d, H, W]",
			tensor.ErrShapeMismatch, x.shape, l.InputFeatureChannelCount)
	}

	weight, bias, err := b.parameters(l)
	if err != nil {
		return nil, nil, err
	}
	module, err := nn.NewConv2D(l.Name(index), weight, bias, b.backend)
	if err != nil {
		return nil, nil, err
	}
	return module, tensor.Shape{x.shape[0], l.OutputFeatureChannelCount, x.shape[2], x.shape[3]}, nil
}

// parameters materialises the layer's weights and optional biases.
func (b *builder) parameters(l graph.Layer) (weight, bias *tensor.RawTensor, err error) {
	if weight, err = b.materialize(*l.Weights, l.WeightsShape()); err != nil {
		return nil, nil, fmt.Errorf("weights: %w", err)
	}
	if l.Biases != nil {
		if bias, err = b.materialize(*l.Biases, l.BiasesShape()); err != nil {
			return nil, nil, fmt.Errorf("biases: %w", err)
		}
	}
	return weight, bias, nil
}

func (b *builder) materialize(t tensor.Tensor, shape tensor.Shape) (*tensor.RawTensor, error) {
	values, err := engine.MaterializeWeights(t, shape, b.rng)
	if err != nil {
		return nil, err
	}
	return tensor.RawFromFloat32s(shape, values)
}

func single(sources []*node) (*node, error) {
	if len(sources) != 1 {
		return nil, fmt.Errorf("layer takes exactly 1 input, got %d", len(sources))
	}
	return sources[0], nil
}
