// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend of the colorizer.
//
// # Overview
//
// This package implements a CPU backend with:
//   - Pure Go implementation (no CGO)
//   - Im2col convolutions with dilation on gonum BLAS
//   - Transposed convolutions for the decoder
//   - NumPy-compatible broadcasting
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/colorize/backend/cpu"
//	)
//
//	func main() {
//	    // Inference
//	    backend := cpu.New()
//
//	    // Training, with a gradient tape
//	    trainBackend := cpu.NewTraining()
//	}
package cpu
