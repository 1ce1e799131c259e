package wire

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/mimic-ml/mimic/internal/dataset"
	"github.com/mimic-ml/mimic/internal/engine"
	"github.com/mimic-ml/mimic/internal/graph"
	"github.com/mimic-ml/mimic/internal/tensor"
)

// MarshalGraph encodes a graph.
func MarshalGraph(g graph.Graph) []byte {
	return appendGraph(nil, g)
}

// UnmarshalGraph decodes a graph.
func UnmarshalGraph(b []byte) (graph.Graph, error) {
	return readGraph(b)
}

// MarshalLayer encodes a single layer.
func MarshalLayer(l graph.Layer) []byte {
	return appendLayer(nil, l)
}

// UnmarshalLayer decodes a single layer.
func UnmarshalLayer(b []byte) (graph.Layer, error) {
	return readLayer(b)
}

// MarshalDataSet encodes a dataset.
func MarshalDataSet(ds dataset.DataSet) []byte {
	return appendDataSet(nil, ds)
}

// UnmarshalDataSet decodes a dataset. It is not validated.
func UnmarshalDataSet(b []byte) (dataset.DataSet, error) {
	return readDataSet(b)
}

// Session is everything needed to start a session in another process.
type Session struct {
	Kind    engine.Kind
	Graph   graph.Graph
	DataSet dataset.DataSet
	Epochs  int
	Device  tensor.Device
}

// MarshalSession encodes a session description.
func MarshalSession(s Session) []byte {
	b := appendMessage(nil, 1, func(b []byte) []byte { return appendKind(b, s.Kind) })
	b = appendMessage(b, 2, func(b []byte) []byte { return appendGraph(b, s.Graph) })
	b = appendMessage(b, 3, func(b []byte) []byte { return appendDataSet(b, s.DataSet) })
	b = appendInt(b, 4, s.Epochs)
	return appendInt(b, 5, int(s.Device))
}

// UnmarshalSession decodes a session description.
func UnmarshalSession(b []byte) (Session, error) {
	var s Session
	d := &decoder{data: b}
	for d.more() {
		num, typ, err := d.next()
		if err != nil {
			return s, err
		}
		var body []byte
		switch num {
		case 1:
			if body, err = d.bytes(typ); err == nil {
				s.Kind, err = readKind(body)
			}
		case 2:
			if body, err = d.bytes(typ); err == nil {
				s.Graph, err = readGraph(body)
			}
		case 3:
			if body, err = d.bytes(typ); err == nil {
				s.DataSet, err = readDataSet(body)
			}
		case 4:
			s.Epochs, err = d.int(typ)
		case 5:
			var v int
			v, err = d.int(typ)
			s.Device = tensor.Device(v)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return s, err
		}
	}
	return s, nil
}

func appendLayer(b []byte, l graph.Layer) []byte {
	b = appendString(b, 1, l.Label)
	b = appendString(b, 2, string(l.Kind))
	b = appendInt(b, 3, int(l.DataType))
	b = appendString(b, 4, string(l.ArithmeticOperation))
	if l.KernelSize != nil {
		b = appendMessage(b, 5, func(b []byte) []byte {
			b = appendInt(b, 1, l.KernelSize.Height)
			return appendInt(b, 2, l.KernelSize.Width)
		})
	}
	b = appendInt(b, 6, l.InputFeatureChannelCount)
	b = appendInt(b, 7, l.OutputFeatureChannelCount)
	if l.Weights != nil {
		b = appendMessage(b, 8, func(b []byte) []byte { return appendTensor(b, *l.Weights) })
	}
	if l.Biases != nil {
		b = appendMessage(b, 9, func(b []byte) []byte { return appendTensor(b, *l.Biases) })
	}
	return b
}

func readLayer(b []byte) (graph.Layer, error) {
	var l graph.Layer
	d := &decoder{data: b}
	for d.more() {
		num, typ, err := d.next()
		if err != nil {
			return l, err
		}
		var (
			s    string
			v    int
			body []byte
		)
		switch num {
		case 1:
			l.Label, err = d.string(typ)
		case 2:
			s, err = d.string(typ)
			l.Kind = graph.LayerKind(s)
		case 3:
			v, err = d.int(typ)
			l.DataType = tensor.DataType(v)
		case 4:
			s, err = d.string(typ)
			l.ArithmeticOperation = graph.ArithmeticOperation(s)
		case 5:
			if body, err = d.bytes(typ); err == nil {
				l.KernelSize, err = readKernelSize(body)
			}
		case 6:
			l.InputFeatureChannelCount, err = d.int(typ)
		case 7:
			l.OutputFeatureChannelCount, err = d.int(typ)
		case 8, 9:
			if body, err = d.bytes(typ); err == nil {
				var t tensor.Tensor
				if t, err = readTensor(body); err == nil {
					if num == 8 {
						l.Weights = &t
					} else {
						l.Biases = &t
					}
				}
			}
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return l, err
		}
	}
	return l, nil
}

func readKernelSize(b []byte) (*graph.KernelSize, error) {
	k := &graph.KernelSize{}
	d := &decoder{data: b}
	for d.more() {
		num, typ, err := d.next()
		if err != nil {
			return nil, err
		}
		switch num {
		case 1:
			k.Height, err = d.int(typ)
		case 2:
			k.Width, err = d.int(typ)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return nil, err
		}
	}
	return k, nil
}

func appendGraph(b []byte, g graph.Graph) []byte {
	b = appendString(b, 1, string(g.Kind))
	b = appendInt(b, 2, int(g.DataType))
	for _, inputs := range g.InputTensors {
		b = appendMessage(b, 3, func(b []byte) []byte { return appendTensorList(b, inputs) })
	}
	for _, l := range g.Layers {
		b = appendMessage(b, 4, func(b []byte) []byte { return appendLayer(b, l) })
	}
	return appendInt(b, 5, int(g.FeatureChannelPosition))
}

func readGraph(b []byte) (graph.Graph, error) {
	var g graph.Graph
	d := &decoder{data: b}
	for d.more() {
		num, typ, err := d.next()
		if err != nil {
			return g, err
		}
		var (
			s    string
			v    int
			body []byte
		)
		switch num {
		case 1:
			s, err = d.string(typ)
			g.Kind = graph.Kind(s)
		case 2:
			v, err = d.int(typ)
			g.DataType = tensor.DataType(v)
		case 3:
			if body, err = d.bytes(typ); err == nil {
				var inputs []tensor.Tensor
				if inputs, err = readTensorList(body); err == nil {
					g.InputTensors = append(g.InputTensors, inputs)
				}
			}
		case 4:
			if body, err = d.bytes(typ); err == nil {
				var l graph.Layer
				if l, err = readLayer(body); err == nil {
					g.Layers = append(g.Layers, l)
				}
			}
		case 5:
			v, err = d.int(typ)
			g.FeatureChannelPosition = tensor.FeatureChannelPosition(v)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return g, err
		}
	}
	return g, nil
}

func appendDataSet(b []byte, ds dataset.DataSet) []byte {
	for _, a := range ds.Tensors {
		b = appendMessage(b, 1, func(b []byte) []byte { return appendTensorList(b, a.Tensors) })
	}
	for _, a := range ds.Labels {
		b = appendMessage(b, 2, func(b []byte) []byte { return appendTensorList(b, a.Tensors) })
	}
	return appendInt(b, 3, ds.BatchSize)
}

func readDataSet(b []byte) (dataset.DataSet, error) {
	var ds dataset.DataSet
	d := &decoder{data: b}
	for d.more() {
		num, typ, err := d.next()
		if err != nil {
			return ds, err
		}
		switch num {
		case 1, 2:
			var body []byte
			if body, err = d.bytes(typ); err == nil {
				var ts []tensor.Tensor
				if ts, err = readTensorList(body); err == nil {
					if num == 1 {
						ds.Tensors = append(ds.Tensors, tensor.ArrayOf(ts...))
					} else {
						ds.Labels = append(ds.Labels, tensor.ArrayOf(ts...))
					}
				}
			}
		case 3:
			ds.BatchSize, err = d.int(typ)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return ds, err
		}
	}
	return ds, nil
}

func appendKind(b []byte, k engine.Kind) []byte {
	b = appendString(b, 1, string(k.Mode))
	b = appendString(b, 2, string(k.LossFunction))
	if k.Optimizer.Kind != "" {
		b = appendMessage(b, 3, func(b []byte) []byte {
			b = appendString(b, 1, string(k.Optimizer.Kind))
			b = protowire.AppendTag(b, 2, protowire.Fixed32Type)
			return protowire.AppendFixed32(b, math.Float32bits(k.Optimizer.LearningRate))
		})
	}
	return b
}

func readKind(b []byte) (engine.Kind, error) {
	var k engine.Kind
	d := &decoder{data: b}
	for d.more() {
		num, typ, err := d.next()
		if err != nil {
			return k, err
		}
		var s string
		switch num {
		case 1:
			s, err = d.string(typ)
			k.Mode = engine.Mode(s)
		case 2:
			s, err = d.string(typ)
			k.LossFunction = engine.LossFunction(s)
		case 3:
			var body []byte
			if body, err = d.bytes(typ); err == nil {
				k.Optimizer, err = readOptimizer(body)
			}
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return k, err
		}
	}
	return k, nil
}

func readOptimizer(b []byte) (engine.Optimizer, error) {
	var o engine.Optimizer
	d := &decoder{data: b}
	for d.more() {
		num, typ, err := d.next()
		if err != nil {
			return o, err
		}
		switch num {
		case 1:
			var s string
			s, err = d.string(typ)
			o.Kind = engine.OptimizerKind(s)
		case 2:
			var bits uint32
			bits, err = d.fixed32(typ)
			o.LearningRate = math.Float32frombits(bits)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return o, err
		}
	}
	return o, nil
}
