// Package dataset slices input and label tensors into fixed-size batches.
package dataset

import (
	"errors"
	"fmt"
	"slices"

	"github.com/mimic-ml/mimic/internal/tensor"
)

// ErrMissingData reports a dataset without materialised input tensors.
var ErrMissingData = errors.New("missing data")

// DataSet holds one tensor array per model input, optional label arrays and
// the batch size. All arrays share their row count. Batches are cut from the
// arrays directly, so a dataset built from single samples is never
// concatenated as a whole.
type DataSet struct {
	Tensors   []tensor.Array `json:"tensors"`
	Labels    []tensor.Array `json:"labels,omitempty"`
	BatchSize int            `json:"batchSize"`
}

// New creates and validates a dataset from one batched tensor per input and
// per label.
func New(tensors, labels []tensor.Tensor, batchSize int) (DataSet, error) {
	ds := DataSet{Tensors: wrap(tensors), Labels: wrap(labels), BatchSize: batchSize}
	if err := ds.Validate(); err != nil {
		return DataSet{}, err
	}
	return ds, nil
}

func wrap(ts []tensor.Tensor) []tensor.Array {
	if len(ts) == 0 {
		return nil
	}
	out := make([]tensor.Array, len(ts))
	for i, t := range ts {
		out[i] = tensor.ArrayOf(t)
	}
	return out
}

// FromSamples builds a dataset from per-input lists of single-sample
// tensors. labels may be nil.
func FromSamples(samples, labels [][]tensor.Tensor, batchSize int) (DataSet, error) {
	inputs, err := sampleArrays(samples)
	if err != nil {
		return DataSet{}, fmt.Errorf("inputs: %w", err)
	}
	outputs, err := sampleArrays(labels)
	if err != nil {
		return DataSet{}, fmt.Errorf("labels: %w", err)
	}
	ds := DataSet{Tensors: inputs, Labels: outputs, BatchSize: batchSize}
	if err := ds.Validate(); err != nil {
		return DataSet{}, err
	}
	return ds, nil
}

func sampleArrays(lists [][]tensor.Tensor) ([]tensor.Array, error) {
	if len(lists) == 0 {
		return nil, nil
	}
	out := make([]tensor.Array, len(lists))
	for i, list := range lists {
		if len(list) == 0 {
			return nil, fmt.Errorf("%w: input %d has no samples", ErrMissingData, i)
		}
		a, err := tensor.SampleArray(list)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		out[i] = a
	}
	return out, nil
}

// Validate checks that every array carries rows with data and that all
// arrays share the row count.
func (ds DataSet) Validate() error {
	if len(ds.Tensors) == 0 {
		return fmt.Errorf("%w: dataset has no input tensors", ErrMissingData)
	}
	if ds.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size %d", ErrMissingData, ds.BatchSize)
	}

	rows := ds.Tensors[0].EndIndex()
	for i, a := range slices.Concat(ds.Tensors, ds.Labels) {
		if a.Len() == 0 {
			return fmt.Errorf("%w: tensor %d has no members", ErrMissingData, i)
		}
		for _, t := range a.Tensors {
			if t.IsPlaceholder() || t.Rank() == 0 {
				return fmt.Errorf("%w: tensor %d (%v) is not a batched tensor with data", ErrMissingData, i, t.Shape)
			}
		}
		if err := a.Validate(); err != nil {
			return fmt.Errorf("tensor %d: %w", i, err)
		}
		if n := a.EndIndex(); n != rows {
			return fmt.Errorf("%w: tensor %d has %d rows, want %d", tensor.ErrShapeMismatch, i, n, rows)
		}
	}
	return nil
}

// HasLabels reports whether the dataset carries label tensors.
func (ds DataSet) HasLabels() bool {
	return len(ds.Labels) > 0
}

// BatchCount is floor(leading extent / batch size).
func (ds DataSet) BatchCount() int {
	if len(ds.Tensors) == 0 || ds.BatchSize <= 0 {
		return 0
	}
	return ds.Tensors[0].EndIndex() / ds.BatchSize
}

// MakeBatch slices rows [i*B, i*B+B) out of every input tensor.
func (ds DataSet) MakeBatch(i int) ([]tensor.Tensor, error) {
	return ds.batch(ds.Tensors, i)
}

// MakeBatchLabels slices the same rows out of the labels, or returns nil when
// the dataset has none.
func (ds DataSet) MakeBatchLabels(i int) ([]tensor.Tensor, error) {
	if !ds.HasLabels() {
		return nil, nil
	}
	return ds.batch(ds.Labels, i)
}

func (ds DataSet) batch(arrays []tensor.Array, i int) ([]tensor.Tensor, error) {
	if i < 0 || i >= ds.BatchCount() {
		return nil, fmt.Errorf("%w: batch %d of %d", tensor.ErrOutOfRange, i, ds.BatchCount())
	}
	start := i * ds.BatchSize
	out := make([]tensor.Tensor, len(arrays))
	for j, a := range arrays {
		s, err := a.Slice(start, start+ds.BatchSize)
		if err != nil {
			return nil, err
		}
		out[j] = s
	}
	return out, nil
}

// InputPlaceholders returns [B] + shape[1:] placeholders for every input.
func (ds DataSet) InputPlaceholders() []tensor.Tensor {
	return ds.placeholders(ds.Tensors)
}

// LabelPlaceholders returns [B] + shape[1:] placeholders for every label.
func (ds DataSet) LabelPlaceholders() []tensor.Tensor {
	return ds.placeholders(ds.Labels)
}

func (ds DataSet) placeholders(arrays []tensor.Array) []tensor.Tensor {
	if len(arrays) == 0 {
		return nil
	}
	out := make([]tensor.Tensor, len(arrays))
	for i, a := range arrays {
		out[i] = a.Placeholder(ds.BatchSize)
	}
	return out
}
