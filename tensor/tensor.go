// Copyright 2025 The Mimic Authors. All rights reserved.
// Use of this source code is governed by the Apache License, Version 2.0.

// Package tensor provides the transferable tensor type mimic sessions
// exchange across process boundaries.
//
// A Tensor is a shape-tagged byte buffer. Tensors without data are
// placeholders that only declare a shape:
//
//	x := tensor.Must(tensor.Matrix([][]float32{{1, 2, 3}}))
//	in := tensor.Placeholder(tensor.Shape{1, 3}, tensor.Float32, tensor.NotApplicable)
//
// Rank-4 tensors carry the position of their feature channel axis, either
// First ([N, C, H, W]) or Last ([N, H, W, C]).
package tensor

import (
	"math/rand"

	"github.com/mimic-ml/mimic/internal/tensor"
)

// Tensor is a transferable shape-tagged byte buffer.
type Tensor = tensor.Tensor

// Shape represents the dimensions of a tensor.
type Shape = tensor.Shape

// MaxRank is the highest supported tensor rank.
const MaxRank = tensor.MaxRank

// Array is an ordered list of row batches addressed as one along the
// leading axis.
type Array = tensor.Array

// Native is the constraint for element types accepted by literal
// constructors.
type Native = tensor.Native

// DataType is the element encoding of a tensor's bytes.
type DataType = tensor.DataType

// Element encodings.
const (
	Float32  DataType = tensor.Float32
	Float16  DataType = tensor.Float16
	BFloat16 DataType = tensor.BFloat16
)

// FeatureChannelPosition is the channel axis of rank-4 tensors.
type FeatureChannelPosition = tensor.FeatureChannelPosition

// Channel positions.
const (
	NotApplicable FeatureChannelPosition = tensor.NotApplicable
	First         FeatureChannelPosition = tensor.First
	Last          FeatureChannelPosition = tensor.Last
)

// Device is the compute device a session is compiled for.
type Device = tensor.Device

// Devices.
const (
	AnyDevice Device = tensor.AnyDevice
	CPU       Device = tensor.CPU
	GPU       Device = tensor.GPU
)

// Random tensor descriptions.
type (
	RandomDescriptor      = tensor.RandomDescriptor
	RandomInitializerType = tensor.RandomInitializerType
	Range                 = tensor.Range
	RangeKind             = tensor.RangeKind
)

// Random initializers and range kinds.
const (
	Uniform    RandomInitializerType = tensor.Uniform
	UniformNow RandomInitializerType = tensor.UniformNow
	HalfOpen   RangeKind             = tensor.HalfOpen
	Closed     RangeKind             = tensor.Closed
)

// Errors.
var (
	ErrInvalidData   = tensor.ErrInvalidData
	ErrShapeMismatch = tensor.ErrShapeMismatch
	ErrRankMismatch  = tensor.ErrRankMismatch
	ErrTypeMismatch  = tensor.ErrTypeMismatch
	ErrOutOfRange    = tensor.ErrOutOfRange
	ErrInvalidRange  = tensor.ErrInvalidRange
)

// New creates a tensor from raw bytes.
func New(shape Shape, dt DataType, data []byte, pos FeatureChannelPosition) (Tensor, error) {
	return tensor.New(shape, dt, data, pos)
}

// FromFloat32s encodes values as dt.
func FromFloat32s(shape Shape, dt DataType, values []float32, pos FeatureChannelPosition) (Tensor, error) {
	return tensor.FromFloat32s(shape, dt, values, pos)
}

// Placeholder creates a data-less tensor declaring an input shape.
func Placeholder(shape Shape, dt DataType, pos FeatureChannelPosition) Tensor {
	return tensor.Placeholder(shape, dt, pos)
}

// Must panics if err is non-nil.
func Must(t Tensor, err error) Tensor {
	return tensor.Must(t, err)
}

// Scalar creates a rank-0 tensor.
func Scalar[T Native](v T) Tensor {
	return tensor.Scalar(v)
}

// Vector creates a rank-1 tensor.
func Vector[T Native](values []T) Tensor {
	return tensor.Vector(values)
}

// Matrix creates a rank-2 tensor from rows of equal length.
func Matrix[T Native](rows [][]T) (Tensor, error) {
	return tensor.Matrix(rows)
}

// Tensor3 creates a rank-3 tensor.
func Tensor3[T Native](values [][][]T) (Tensor, error) {
	return tensor.Tensor3(values)
}

// Tensor4 creates a rank-4 tensor with channels at pos.
func Tensor4[T Native](values [][][][]T, pos FeatureChannelPosition) (Tensor, error) {
	return tensor.Tensor4(values, pos)
}

// Concat joins tensors in order along the leading axis.
func Concat(dt DataType, tensors ...Tensor) (Tensor, error) {
	return tensor.Concat(dt, tensors...)
}

// ArrayOf wraps batches of rows without copying them.
func ArrayOf(ts ...Tensor) Array {
	return tensor.ArrayOf(ts...)
}

// SampleArray wraps per-sample tensors, giving each a leading axis of one
// unless it is already batched.
func SampleArray(samples []Tensor) (Array, error) {
	return tensor.SampleArray(samples)
}

// NewRange encodes an interval in the data type matching T.
func NewRange[T Native](kind RangeKind, lower, upper T) Range {
	return tensor.NewRange(kind, lower, upper)
}

// Random creates a tensor described by desc.
func Random(shape Shape, dt DataType, desc RandomDescriptor, pos FeatureChannelPosition) (Tensor, error) {
	return tensor.Random(shape, dt, desc, pos)
}

// RandomFrom is Random drawing from rng.
func RandomFrom(rng *rand.Rand, shape Shape, dt DataType, desc RandomDescriptor, pos FeatureChannelPosition) (Tensor, error) {
	return tensor.RandomFrom(rng, shape, dt, desc, pos)
}

// ParseDevice parses any, cpu or gpu.
func ParseDevice(s string) (Device, error) {
	return tensor.ParseDevice(s)
}
