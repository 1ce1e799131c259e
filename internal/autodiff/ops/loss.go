package ops

import (
	"fmt"

	"github.com/mimic-ml/mimic/internal/tensor"
)

// LossKind selects the reduction a LossOp applies.
type LossKind int

// Supported losses.
const (
	SquaredError LossKind = iota
	AbsoluteError
)

// LossOp is the mean over all elements of (pred - target)² or |pred - target|.
// The output is a scalar. Targets are constants: no gradient flows to them.
type LossOp struct {
	kind   LossKind
	pred   *tensor.RawTensor
	target *tensor.RawTensor
	output *tensor.RawTensor
}

// NewLossOp computes the loss and returns the recorded operation.
func NewLossOp(kind LossKind, pred, target *tensor.RawTensor) *LossOp {
	if !pred.Shape().Equal(target.Shape()) {
		panic(fmt.Sprintf("loss: prediction %v and target %v differ in shape", pred.Shape(), target.Shape()))
	}

	output, err := tensor.NewRaw(tensor.Shape{})
	if err != nil {
		panic(fmt.Sprintf("loss: %v", err))
	}

	p, t := pred.AsFloat32(), target.AsFloat32()
	var sum float32
	for i := range p {
		d := p[i] - t[i]
		if kind == SquaredError {
			sum += d * d
		} else {
			sum += max(d, -d)
		}
	}
	output.AsFloat32()[0] = sum / float32(len(p))

	return &LossOp{kind: kind, pred: pred, target: target, output: output}
}

// Backward computes grad_pred = 2(pred - target)/n for squared error and
// sign(pred - target)/n for absolute error, scaled by the scalar outputGrad.
func (op *LossOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad, err := tensor.NewRaw(op.pred.Shape())
	if err != nil {
		panic(fmt.Sprintf("loss backward: %v", err))
	}

	scale := outputGrad.AsFloat32()[0] / float32(op.pred.NumElements())
	p, t, g := op.pred.AsFloat32(), op.target.AsFloat32(), grad.AsFloat32()
	for i := range p {
		d := p[i] - t[i]
		switch {
		case op.kind == SquaredError:
			g[i] = 2 * d * scale
		case d > 0:
			g[i] = scale
		case d < 0:
			g[i] = -scale
		}
	}
	return []*tensor.RawTensor{grad, nil}
}

// Inputs returns [pred, target].
func (op *LossOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.pred, op.target}
}

// Output returns the scalar loss.
func (op *LossOp) Output() *tensor.RawTensor {
	return op.output
}
