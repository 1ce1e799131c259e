// Copyright 2025 The Mimic Authors. All rights reserved.
// Use of this source code is governed by the Apache License, Version 2.0.

// Package engine runs graphs over datasets on a pluggable backend.
//
// A Session moves through Uncompiled, Compiled, Executing and Finalized:
//
//	s, err := engine.NewSession(cpu.NewPlatform(), engine.InferenceKind(), g, data)
//	err = s.Compile(ctx, tensor.CPU)
//	for {
//	    out, ok, err := s.ExecuteNext(ctx)
//	    if err != nil || !ok {
//	        break
//	    }
//	    use(out)
//	}
package engine

import (
	"github.com/mimic-ml/mimic/dataset"
	"github.com/mimic-ml/mimic/graph"
	"github.com/mimic-ml/mimic/internal/engine"
)

type (
	// Backend builds executable graphs from transferable descriptions.
	Backend = engine.Backend
	// InferenceGraph is a lowered graph that runs forward passes.
	InferenceGraph = engine.InferenceGraph
	// TrainingGraph is a lowered graph with a loss and optimizer attached.
	TrainingGraph = engine.TrainingGraph
	// GraphConversionError reports the layer a backend could not build.
	GraphConversionError = engine.GraphConversionError

	Session       = engine.Session
	SessionOption = engine.SessionOption
	State         = engine.State
	Progress      = engine.Progress

	Kind          = engine.Kind
	Mode          = engine.Mode
	LossFunction  = engine.LossFunction
	Optimizer     = engine.Optimizer
	OptimizerKind = engine.OptimizerKind
)

// Session states.
const (
	Uncompiled State = engine.Uncompiled
	Compiled   State = engine.Compiled
	Executing  State = engine.Executing
	Finalized  State = engine.Finalized
)

// Modes, losses and optimizers.
const (
	Inference Mode = engine.Inference
	Training  Mode = engine.Training

	MeanSquaredError  LossFunction = engine.MeanSquaredError
	MeanAbsoluteError LossFunction = engine.MeanAbsoluteError

	SGD            OptimizerKind = engine.SGD
	Adam           OptimizerKind = engine.Adam
	RootMeanSquare OptimizerKind = engine.RootMeanSquare
)

// Errors.
var (
	ErrLayerConversion    = engine.ErrLayerConversion
	ErrInvalidWeights     = engine.ErrInvalidWeights
	ErrMissingLabels      = engine.ErrMissingLabels
	ErrMissingData        = engine.ErrMissingData
	ErrLayerNotFound      = engine.ErrLayerNotFound
	ErrDeviceNotAvailable = engine.ErrDeviceNotAvailable
	ErrInvalidOutput      = engine.ErrInvalidOutput
	ErrNotCompiled        = engine.ErrNotCompiled
	ErrUnknownBackend     = engine.ErrUnknownBackend
)

// NewSession validates its arguments. No backend work happens until
// Compile.
func NewSession(backend Backend, kind Kind, g graph.Graph, data dataset.DataSet, opts ...SessionOption) (*Session, error) {
	return engine.NewSession(backend, kind, g, data, opts...)
}

// WithEpochs sets how many passes over the dataset a run makes.
func WithEpochs(n int) SessionOption {
	return engine.WithEpochs(n)
}

// InferenceKind returns the kind of a forward-only session.
func InferenceKind() Kind {
	return engine.InferenceKind()
}

// TrainingKind returns the kind of a session that updates parameters after
// every batch.
func TrainingKind(loss LossFunction, opt Optimizer) Kind {
	return engine.TrainingKind(loss, opt)
}

// RegisterBackend makes a backend available by name.
func RegisterBackend(name string, f func() (Backend, error)) {
	engine.RegisterBackend(name, f)
}

// NewBackend instantiates the backend registered under name.
func NewBackend(name string) (Backend, error) {
	return engine.NewBackend(name)
}

// Backends lists the registered backend names.
func Backends() []string {
	return engine.Backends()
}
