package nn

import (
	"fmt"

	"github.com/mimic-ml/mimic/internal/tensor"
)

// Operator selects the element-wise function an Arithmetic module applies.
type Operator int

// Element-wise operators.
const (
	OpAdd Operator = iota
	OpSub
	OpMul
	OpDiv
)

// Arithmetic folds its inputs left to right with one broadcasting
// element-wise operator: ((x0 op x1) op x2) ...
type Arithmetic struct {
	op      Operator
	backend tensor.Backend
}

// NewArithmetic creates an Arithmetic module.
func NewArithmetic(op Operator, backend tensor.Backend) *Arithmetic {
	return &Arithmetic{op: op, backend: backend}
}

// Forward combines the inputs. At least two are required.
func (a *Arithmetic) Forward(inputs ...*tensor.RawTensor) (*tensor.RawTensor, error) {
	if len(inputs) < 2 {
		return nil, fmt.Errorf("arithmetic: want at least 2 inputs, got %d", len(inputs))
	}

	out := inputs[0]
	for _, x := range inputs[1:] {
		if _, _, err := tensor.BroadcastShapes(out.Shape(), x.Shape()); err != nil {
			return nil, fmt.Errorf("arithmetic: %w", err)
		}
		switch a.op {
		case OpAdd:
			out = a.backend.Add(out, x)
		case OpSub:
			out = a.backend.Sub(out, x)
		case OpMul:
			out = a.backend.Mul(out, x)
		case OpDiv:
			out = a.backend.Div(out, x)
		default:
			return nil, fmt.Errorf("arithmetic: unknown operator %d", a.op)
		}
	}
	return out, nil
}

// Parameters returns nothing; arithmetic layers are not trainable.
func (a *Arithmetic) Parameters() []*Parameter {
	return nil
}
