package dataset

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/rand"
	"runtime"
	"sync"
)

// ErrBatchShape is returned when samples of one batch differ in size.
var ErrBatchShape = errors.New("samples in batch differ in size")

// Batch is a stack of equally sized samples.
type Batch struct {
	Size   int
	Width  int
	Height int
	// L is [Size, Height, Width] lightness, row-major.
	L []float32
	// Labels is [Size, Height, Width] bin ids.
	Labels []int64
}

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	BatchSize int
	Shuffle   bool
	// DropLast skips a final batch smaller than BatchSize.
	DropLast bool
	// Workers loading samples in parallel (default GOMAXPROCS).
	Workers int
	// Seed of the shuffle order.
	Seed int64
}

// Loader groups the samples of a Source into batches. Each call to Batches
// starts a new epoch; with Shuffle the order is redrawn from a generator
// seeded once, so a fixed seed gives a reproducible sequence of epochs.
//
// The next batch is loaded by a worker pool while the current one is being
// consumed.
type Loader struct {
	src    Source
	config LoaderConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewLoader creates a loader over src.
func NewLoader(src Source, config LoaderConfig) (*Loader, error) {
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", config.BatchSize)
	}
	if config.Workers <= 0 {
		config.Workers = runtime.GOMAXPROCS(0)
	}
	return &Loader{
		src:    src,
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}, nil
}

// Len returns the number of batches per epoch.
func (l *Loader) Len() int {
	n, bs := l.src.Len(), l.config.BatchSize
	if l.config.DropLast {
		return n / bs
	}
	return (n + bs - 1) / bs
}

// BatchSize returns the configured batch size.
func (l *Loader) BatchSize() int {
	return l.config.BatchSize
}

func (l *Loader) order() []int {
	indices := make([]int, l.src.Len())
	for i := range indices {
		indices[i] = i
	}
	if l.config.Shuffle {
		l.mu.Lock()
		l.rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
		l.mu.Unlock()
	}
	return indices
}

type loadResult struct {
	batch *Batch
	err   error
}

// Batches iterates over one epoch. Iteration stops at the first error,
// which is yielded with a nil batch. Cancelling ctx stops loading and
// yields ctx.Err().
func (l *Loader) Batches(ctx context.Context) iter.Seq2[*Batch, error] {
	return func(yield func(*Batch, error) bool) {
		order := l.order()
		total := l.Len()
		bs := l.config.BatchSize

		loadCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		results := make(chan loadResult, 1)
		go func() {
			defer close(results)
			for b := 0; b < total; b++ {
				if loadCtx.Err() != nil {
					return
				}
				end := min((b+1)*bs, len(order))
				batch, err := l.load(loadCtx, order[b*bs:end])
				select {
				case results <- loadResult{batch: batch, err: err}:
				case <-loadCtx.Done():
					return
				}
				if err != nil {
					return
				}
			}
		}()

		delivered := 0
		for r := range results {
			if !yield(r.batch, r.err) || r.err != nil {
				return
			}
			delivered++
		}
		if delivered < total {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
			}
		}
	}
}

func (l *Loader) load(ctx context.Context, indices []int) (*Batch, error) {
	samples := make([]*Sample, len(indices))
	errs := make([]error, len(indices))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(l.config.Workers, len(indices)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				samples[j], errs[j] = l.src.Get(indices[j])
			}
		}()
	}
	for j := range indices {
		select {
		case jobs <- j:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	for j, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", indices[j], err)
		}
	}
	return stack(samples)
}

func stack(samples []*Sample) (*Batch, error) {
	first := samples[0]
	hw := first.Width * first.Height
	b := &Batch{
		Size:   len(samples),
		Width:  first.Width,
		Height: first.Height,
		L:      make([]float32, 0, len(samples)*hw),
		Labels: make([]int64, 0, len(samples)*hw),
	}
	for _, s := range samples {
		if s.Width != b.Width || s.Height != b.Height {
			return nil, fmt.Errorf("%w: %dx%d and %dx%d", ErrBatchShape, b.Width, b.Height, s.Width, s.Height)
		}
		b.L = append(b.L, s.L...)
		b.Labels = append(b.Labels, s.Labels...)
	}
	return b, nil
}
