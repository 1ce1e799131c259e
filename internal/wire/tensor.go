package wire

import (
	"bytes"

	"github.com/mimic-ml/mimic/internal/tensor"
)

// MarshalTensor encodes a tensor.
func MarshalTensor(t tensor.Tensor) []byte {
	return appendTensor(nil, t)
}

// UnmarshalTensor decodes a tensor and validates it.
func UnmarshalTensor(b []byte) (tensor.Tensor, error) {
	t, err := readTensor(b)
	if err != nil {
		return tensor.Tensor{}, err
	}
	return t, t.Validate()
}

// MarshalTensors encodes a list of tensors, such as one batch's outputs.
func MarshalTensors(ts []tensor.Tensor) []byte {
	return appendTensorList(nil, ts)
}

// UnmarshalTensors decodes a list written by MarshalTensors.
func UnmarshalTensors(b []byte) ([]tensor.Tensor, error) {
	return readTensorList(b)
}

func appendTensor(b []byte, t tensor.Tensor) []byte {
	b = appendPacked(b, 1, t.Shape)
	b = appendBytes(b, 2, t.Data)
	b = appendInt(b, 3, int(t.DataType))
	b = appendInt(b, 4, int(t.FeatureChannelPosition))
	if t.Random != nil {
		b = appendMessage(b, 5, func(b []byte) []byte { return appendRandom(b, *t.Random) })
	}
	return b
}

func readTensor(b []byte) (tensor.Tensor, error) {
	t := tensor.Tensor{Shape: tensor.Shape{}}
	d := &decoder{data: b}
	for d.more() {
		num, typ, err := d.next()
		if err != nil {
			return t, err
		}
		switch num {
		case 1:
			var dims []int
			dims, err = d.packed(typ)
			t.Shape = append(t.Shape, dims...)
		case 2:
			var data []byte
			data, err = d.bytes(typ)
			t.Data = bytes.Clone(data)
		case 3:
			var v int
			v, err = d.int(typ)
			t.DataType = tensor.DataType(v)
		case 4:
			var v int
			v, err = d.int(typ)
			t.FeatureChannelPosition = tensor.FeatureChannelPosition(v)
		case 5:
			var body []byte
			if body, err = d.bytes(typ); err == nil {
				var r tensor.RandomDescriptor
				if r, err = readRandom(body); err == nil {
					err = r.Validate()
				}
				t.Random = &r
			}
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return t, err
		}
	}
	return t, nil
}

func appendRandom(b []byte, r tensor.RandomDescriptor) []byte {
	b = appendInt(b, 1, int(r.Type))
	return appendMessage(b, 2, func(b []byte) []byte {
		b = appendInt(b, 1, int(r.Range.Kind))
		b = appendBytes(b, 2, r.Range.LowerBound)
		b = appendBytes(b, 3, r.Range.UpperBound)
		return appendInt(b, 4, int(r.Range.DataType))
	})
}

func readRandom(b []byte) (tensor.RandomDescriptor, error) {
	var r tensor.RandomDescriptor
	d := &decoder{data: b}
	for d.more() {
		num, typ, err := d.next()
		if err != nil {
			return r, err
		}
		switch num {
		case 1:
			var v int
			v, err = d.int(typ)
			r.Type = tensor.RandomInitializerType(v)
		case 2:
			var body []byte
			if body, err = d.bytes(typ); err == nil {
				r.Range, err = readRange(body)
			}
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return r, err
		}
	}
	return r, nil
}

func readRange(b []byte) (tensor.Range, error) {
	var r tensor.Range
	d := &decoder{data: b}
	for d.more() {
		num, typ, err := d.next()
		if err != nil {
			return r, err
		}
		switch num {
		case 1:
			var v int
			v, err = d.int(typ)
			r.Kind = tensor.RangeKind(v)
		case 2:
			var v []byte
			v, err = d.bytes(typ)
			r.LowerBound = bytes.Clone(v)
		case 3:
			var v []byte
			v, err = d.bytes(typ)
			r.UpperBound = bytes.Clone(v)
		case 4:
			var v int
			v, err = d.int(typ)
			r.DataType = tensor.DataType(v)
		default:
			err = d.skip(num, typ)
		}
		if err != nil {
			return r, err
		}
	}
	return r, nil
}

func appendTensorList(b []byte, ts []tensor.Tensor) []byte {
	for _, t := range ts {
		b = appendMessage(b, 1, func(b []byte) []byte { return appendTensor(b, t) })
	}
	return b
}

func readTensorList(b []byte) ([]tensor.Tensor, error) {
	out := []tensor.Tensor{}
	d := &decoder{data: b}
	for d.more() {
		num, typ, err := d.next()
		if err != nil {
			return nil, err
		}
		if num != 1 {
			if err := d.skip(num, typ); err != nil {
				return nil, err
			}
			continue
		}
		body, err := d.bytes(typ)
		if err != nil {
			return nil, err
		}
		t, err := readTensor(body)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
