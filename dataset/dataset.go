// Copyright 2025 The Mimic Authors. All rights reserved.
// Use of this source code is governed by the Apache License, Version 2.0.

// Package dataset holds the input and label tensors a session executes in
// fixed-size batches.
package dataset

import (
	"github.com/mimic-ml/mimic/internal/dataset"
	"github.com/mimic-ml/mimic/tensor"
)

// DataSet holds one tensor array per model input, optional label arrays and
// the batch size.
type DataSet = dataset.DataSet

// ErrMissingData reports a dataset without materialised inputs.
var ErrMissingData = dataset.ErrMissingData

// New creates and validates a dataset.
func New(tensors, labels []tensor.Tensor, batchSize int) (DataSet, error) {
	return dataset.New(tensors, labels, batchSize)
}

// FromSamples builds a dataset from per-input lists of single samples.
func FromSamples(samples, labels [][]tensor.Tensor, batchSize int) (DataSet, error) {
	return dataset.FromSamples(samples, labels, batchSize)
}
