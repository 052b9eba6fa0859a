// Package dataset provides (lightness, bin label) training pairs and batches
// them for the training loop.
package dataset

import (
	"errors"
	"fmt"
)

// NumBins is the number of valid label values; labels lie in [0, NumBins).
const NumBins = 313

// Dataset errors.
var (
	ErrMissingLabel = errors.New("missing label file")
	ErrLabelShape   = errors.New("label shape does not match image")
	ErrLabelRange   = errors.New("label out of range")
	ErrEmpty        = errors.New("empty dataset")
)

// Sample is one grayscale image and its per-pixel bin labels.
type Sample struct {
	Width  int
	Height int
	// L holds Lab lightness in [0, 100], row-major.
	L []float32
	// Labels holds bin ids in [0, NumBins), row-major.
	Labels []int64
}

// Validate checks sizes and label range.
func (s *Sample) Validate() error {
	n := s.Width * s.Height
	if n <= 0 || len(s.L) != n {
		return fmt.Errorf("%w: %dx%d image with %d lightness values", ErrLabelShape, s.Width, s.Height, len(s.L))
	}
	if len(s.Labels) != n {
		return fmt.Errorf("%w: %dx%d image with %d labels", ErrLabelShape, s.Width, s.Height, len(s.Labels))
	}
	for i, l := range s.Labels {
		if l < 0 || l >= NumBins {
			return fmt.Errorf("%w: label %d at pixel %d", ErrLabelRange, l, i)
		}
	}
	return nil
}

// Source is a random-access collection of samples.
type Source interface {
	Len() int
	Get(index int) (*Sample, error)
}

// MemorySource serves samples held in memory.
type MemorySource struct {
	samples []*Sample
}

// NewMemorySource validates samples and wraps them in a Source.
func NewMemorySource(samples []*Sample) (*MemorySource, error) {
	for i, s := range samples {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
	}
	return &MemorySource{samples: samples}, nil
}

// Len returns the number of samples.
func (m *MemorySource) Len() int {
	return len(m.samples)
}

// Get returns sample index.
func (m *MemorySource) Get(index int) (*Sample, error) {
	if index < 0 || index >= len(m.samples) {
		return nil, fmt.Errorf("index %d out of range [0, %d)", index, len(m.samples))
	}
	return m.samples[index], nil
}
