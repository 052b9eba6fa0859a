// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	"github.com/born-ml/colorize/internal/autodiff"
	internalcpu "github.com/born-ml/colorize/internal/backend/cpu"
	"github.com/born-ml/colorize/internal/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Training is the CPU backend wrapped with a gradient tape.
type Training = autodiff.AutodiffBackend[*Backend]

// Compile-time checks that both backends implement tensor.Backend.
var (
	_ tensor.Backend           = (*Backend)(nil)
	_ tensor.Backend           = (*Training)(nil)
	_ autodiff.BackwardCapable = (*Training)(nil)
)

// New creates a CPU backend for inference.
//
// Example:
//
//	backend := cpu.New()
//	net, err := colorizer.NewNetwork(colorizer.DefaultConfig(), backend)
func New() *Backend {
	return internalcpu.New()
}

// NewTraining creates a CPU backend that records operations for
// backpropagation, as required by train.Train.
//
// Example:
//
//	backend := cpu.NewTraining()
//	net, err := colorizer.NewNetwork(cfg, backend)
//	result, err := train.Train(ctx, net, optimizer, criterion, trainSrc, evalSrc, backend, opts)
func NewTraining() *Training {
	return autodiff.New(internalcpu.New())
}
