package nn

import (
	"fmt"

	"github.com/mimic-ml/mimic/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [batch_size, in_features]; higher
//     rank inputs are flattened to that shape first
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the optional bias vector with shape [out_features]
//   - y is the output tensor with shape [batch_size, out_features]
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter // [out_features, in_features]
	bias        *Parameter // [out_features], nil when the layer has none
	backend     tensor.Backend
}

// NewLinear creates a Linear layer from existing parameters. bias may be nil.
func NewLinear(name string, weight, bias *tensor.RawTensor, backend tensor.Backend) (*Linear, error) {
	ws := weight.Shape()
	if len(ws) != 2 {
		return nil, fmt.Errorf("linear %s: weight must be [out, in], got %v", name, ws)
	}
	l := &Linear{
		inFeatures:  ws[1],
		outFeatures: ws[0],
		weight:      NewParameter(name+".weight", weight),
		backend:     backend,
	}
	if bias != nil {
		if !bias.Shape().Equal(tensor.Shape{ws[0]}) {
			return nil, fmt.Errorf("linear %s: bias must be [%d], got %v", name, ws[0], bias.Shape())
		}
		l.bias = NewParameter(name+".bias", bias)
	}
	return l, nil
}

// Forward computes the output of the linear layer.
func (l *Linear) Forward(inputs ...*tensor.RawTensor) (*tensor.RawTensor, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("linear: want 1 input, got %d", len(inputs))
	}
	x := inputs[0]

	shape := x.Shape()
	if len(shape) == 0 {
		return nil, fmt.Errorf("linear: scalar input")
	}
	batch := shape[0]
	if features := x.NumElements() / batch; features != l.inFeatures {
		return nil, fmt.Errorf("linear: input %v has %d features per sample, want %d", shape, features, l.inFeatures)
	}
	if len(shape) != 2 {
		x = l.backend.Reshape(x, tensor.Shape{batch, l.inFeatures})
	}

	// y = x @ W.T
	out := l.backend.MatMul(x, l.backend.Transpose(l.weight.Value(), 1, 0))
	if l.bias != nil {
		out = l.backend.Add(out, l.bias.Value())
	}
	return out, nil
}

// Parameters returns [weight] or [weight, bias].
func (l *Linear) Parameters() []*Parameter {
	if l.bias == nil {
		return []*Parameter{l.weight}
	}
	return []*Parameter{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter, or nil.
func (l *Linear) Bias() *Parameter {
	return l.bias
}
