package nn

import (
	"fmt"

	"github.com/mimic-ml/mimic/internal/tensor"
)

// Conv2D implements a stride-1 2D convolution with same padding, so the
// spatial extent of the output equals the input's.
//
// Input shape: [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels, kernel_h, kernel_w]
// Output shape: [batch, out_channels, height, width]
type Conv2D struct {
	weight  *Parameter
	bias    *Parameter // [out_channels], nil when the layer has none
	pad     tensor.Padding
	backend tensor.Backend
}

// NewConv2D creates a Conv2D layer from existing parameters. bias may be nil.
func NewConv2D(name string, weight, bias *tensor.RawTensor, backend tensor.Backend) (*Conv2D, error) {
	ws := weight.Shape()
	if len(ws) != 4 {
		return nil, fmt.Errorf("conv2d %s: weight must be [out, in, kh, kw], got %v", name, ws)
	}
	c := &Conv2D{
		weight:  NewParameter(name+".weight", weight),
		pad:     tensor.SamePadding(ws[2], ws[3]),
		backend: backend,
	}
	if bias != nil {
		if !bias.Shape().Equal(tensor.Shape{ws[0]}) {
			return nil, fmt.Errorf("conv2d %s: bias must be [%d], got %v", name, ws[0], bias.Shape())
		}
		c.bias = NewParameter(name+".bias", bias)
	}
	return c, nil
}

// Forward convolves the input and adds the bias per output channel.
func (c *Conv2D) Forward(inputs ...*tensor.RawTensor) (*tensor.RawTensor, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("conv2d: want 1 input, got %d", len(inputs))
	}
	x := inputs[0]
	ws := c.weight.Value().Shape()
	if len(x.Shape()) != 4 || x.Shape()[1] != ws[1] {
		return nil, fmt.Errorf("conv2d: input %v does not match [N, %d, H, W]", x.Shape(), ws[1])
	}

	out := c.backend.Conv2D(x, c.weight.Value(), 1, c.pad)
	if c.bias != nil {
		out = c.backend.Add(out, c.backend.Reshape(c.bias.Value(), tensor.Shape{1, ws[0], 1, 1}))
	}
	return out, nil
}

// Parameters returns [weight] or [weight, bias].
func (c *Conv2D) Parameters() []*Parameter {
	if c.bias == nil {
		return []*Parameter{c.weight}
	}
	return []*Parameter{c.weight, c.bias}
}

// Weight returns the weight parameter.
func (c *Conv2D) Weight() *Parameter {
	return c.weight
}

// Bias returns the bias parameter, or nil.
func (c *Conv2D) Bias() *Parameter {
	return c.bias
}
