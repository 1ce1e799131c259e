// Copyright 2025 The Mimic Authors. All rights reserved.
// Use of this source code is governed by the Apache License, Version 2.0.

// Package graph describes sequential neural network graphs declaratively so
// they can be sent to another process and rebuilt there.
package graph

import (
	"github.com/mimic-ml/mimic/internal/graph"
	"github.com/mimic-ml/mimic/tensor"
)

type (
	// Graph is an ordered list of layers plus their extra input tensors.
	Graph = graph.Graph
	// Kind is the topology of a graph.
	Kind = graph.Kind
	// Layer describes one computation node.
	Layer = graph.Layer
	// LayerKind selects what a layer computes.
	LayerKind = graph.LayerKind
	// ArithmeticOperation is the operation of an arithmetic layer.
	ArithmeticOperation = graph.ArithmeticOperation
	// KernelSize is the spatial extent of a convolution kernel.
	KernelSize = graph.KernelSize
)

// Sequential graphs feed each layer's output into the next.
const Sequential Kind = graph.Sequential

// Layer kinds.
const (
	Arithmetic     LayerKind = graph.Arithmetic
	Convolution    LayerKind = graph.Convolution
	FullyConnected LayerKind = graph.FullyConnected
)

// Arithmetic operations.
const (
	Add      ArithmeticOperation = graph.Add
	Subtract ArithmeticOperation = graph.Subtract
	Multiply ArithmeticOperation = graph.Multiply
	Divide   ArithmeticOperation = graph.Divide
)

// Errors.
var (
	ErrLayerNotFound = graph.ErrLayerNotFound
	ErrInvalidLayer  = graph.ErrInvalidLayer
)

// New creates a sequential graph.
func New(dt tensor.DataType, inputs [][]tensor.Tensor, layers []Layer, pos tensor.FeatureChannelPosition) Graph {
	return graph.New(dt, inputs, layers, pos)
}
