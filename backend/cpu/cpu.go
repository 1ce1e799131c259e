// Copyright 2025 The Mimic Authors. All rights reserved.
// Use of this source code is governed by the Apache License, Version 2.0.

// Package cpu provides the pure Go execution backend. Importing it registers
// the backend under the name "cpu".
//
// Example:
//
//	import (
//	    "github.com/mimic-ml/mimic/backend/cpu"
//	    "github.com/mimic-ml/mimic/engine"
//	)
//
//	func main() {
//	    s, err := engine.NewSession(cpu.NewPlatform(cpu.WithSeed(42)), kind, g, data)
//	}
package cpu

import (
	internalcpu "github.com/mimic-ml/mimic/internal/backend/cpu"
	"github.com/mimic-ml/mimic/internal/parallel"
	"github.com/mimic-ml/mimic/engine"
)

// Platform is the CPU execution backend.
type Platform = internalcpu.Platform

// PlatformOption configures a Platform.
type PlatformOption = internalcpu.PlatformOption

// ParallelConfig bounds the goroutines kernels fan out to.
type ParallelConfig = parallel.Config

// Name is the registry name of the backend.
const Name = internalcpu.BackendName

// Compile-time check that Platform implements engine.Backend.
var _ engine.Backend = (*Platform)(nil)

// NewPlatform creates a CPU backend.
func NewPlatform(opts ...PlatformOption) *Platform {
	return internalcpu.NewPlatform(opts...)
}

// WithSeed fixes the seed used for random weights.
func WithSeed(seed int64) PlatformOption {
	return internalcpu.WithSeed(seed)
}

// WithParallel sets the kernel parallelism.
func WithParallel(cfg ParallelConfig) PlatformOption {
	return internalcpu.WithParallel(cfg)
}

// DefaultParallelConfig returns a configuration using every CPU.
func DefaultParallelConfig() ParallelConfig {
	return parallel.DefaultConfig()
}
