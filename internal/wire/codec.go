// Package wire encodes tensors, graphs and datasets in the protobuf wire
// format so they cross process boundaries without loss.
//
// Messages (field numbers in parentheses):
//
//	Tensor      shape(1, packed) data(2) data_type(3) channel_position(4) random(5)
//	Random      type(1) range(2)
//	Range       kind(1) lower(2) upper(3) data_type(4)
//	Layer       label(1) kind(2) data_type(3) operation(4) kernel(5)
//	            in_channels(6) out_channels(7) weights(8) biases(9)
//	Kernel      height(1) width(2)
//	TensorList  tensors(1)
//	Graph       kind(1) data_type(2) inputs(3, TensorList) layers(4) channel_position(5)
//	DataSet     tensors(1, TensorList) labels(2, TensorList) batch_size(3)
//	Session     kind(1) graph(2) dataset(3) epochs(4) device(5)
//	Kind        mode(1) loss(2) optimizer(3)
//	Optimizer   kind(1) learning_rate(2, fixed32)
package wire

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ContentType is the media type of wire-encoded payloads.
const ContentType = "application/x-protobuf"

// ErrMalformed reports bytes that are not a valid encoding.
var ErrMalformed = errors.New("wire: malformed message")

// decoder walks the fields of one message.
type decoder struct {
	data []byte
}

func (d *decoder) more() bool {
	return len(d.data) > 0
}

// next reads a field tag.
func (d *decoder) next() (protowire.Number, protowire.Type, error) {
	num, typ, n := protowire.ConsumeTag(d.data)
	if n < 0 {
		return 0, 0, fmt.Errorf("%w: tag: %w", ErrMalformed, protowire.ParseError(n))
	}
	d.data = d.data[n:]
	return num, typ, nil
}

func (d *decoder) varint(typ protowire.Type) (uint64, error) {
	if typ != protowire.VarintType {
		return 0, fmt.Errorf("%w: want varint, got wire type %d", ErrMalformed, typ)
	}
	v, n := protowire.ConsumeVarint(d.data)
	if n < 0 {
		return 0, fmt.Errorf("%w: varint: %w", ErrMalformed, protowire.ParseError(n))
	}
	d.data = d.data[n:]
	return v, nil
}

func (d *decoder) int(typ protowire.Type) (int, error) {
	v, err := d.varint(typ)
	return int(v), err
}

func (d *decoder) fixed32(typ protowire.Type) (uint32, error) {
	if typ != protowire.Fixed32Type {
		return 0, fmt.Errorf("%w: want fixed32, got wire type %d", ErrMalformed, typ)
	}
	v, n := protowire.ConsumeFixed32(d.data)
	if n < 0 {
		return 0, fmt.Errorf("%w: fixed32: %w", ErrMalformed, protowire.ParseError(n))
	}
	d.data = d.data[n:]
	return v, nil
}

// bytes reads a length-delimited field. The result aliases the input.
func (d *decoder) bytes(typ protowire.Type) ([]byte, error) {
	if typ != protowire.BytesType {
		return nil, fmt.Errorf("%w: want bytes, got wire type %d", ErrMalformed, typ)
	}
	v, n := protowire.ConsumeBytes(d.data)
	if n < 0 {
		return nil, fmt.Errorf("%w: bytes: %w", ErrMalformed, protowire.ParseError(n))
	}
	d.data = d.data[n:]
	return v, nil
}

func (d *decoder) string(typ protowire.Type) (string, error) {
	b, err := d.bytes(typ)
	return string(b), err
}

// packed reads a packed repeated varint field, also accepting a single
// unpacked element.
func (d *decoder) packed(typ protowire.Type) ([]int, error) {
	if typ == protowire.VarintType {
		v, err := d.int(typ)
		return []int{v}, err
	}
	b, err := d.bytes(typ)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(b))
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: packed varint: %w", ErrMalformed, protowire.ParseError(n))
		}
		out = append(out, int(v))
		b = b[n:]
	}
	return out, nil
}

// skip discards an unknown field.
func (d *decoder) skip(num protowire.Number, typ protowire.Type) error {
	n := protowire.ConsumeFieldValue(num, typ, d.data)
	if n < 0 {
		return fmt.Errorf("%w: field %d: %w", ErrMalformed, num, protowire.ParseError(n))
	}
	d.data = d.data[n:]
	return nil
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt(b []byte, num protowire.Number, v int) []byte {
	return appendVarint(b, num, uint64(v))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// appendMessage writes an embedded message, even when it is empty, so
// repeated messages keep their count.
func appendMessage(b []byte, num protowire.Number, body func([]byte) []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body(nil))
}

func appendPacked(b []byte, num protowire.Number, values []int) []byte {
	if len(values) == 0 {
		return b
	}
	var body []byte
	for _, v := range values {
		body = protowire.AppendVarint(body, uint64(v))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body)
}
