package dataset_test

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/colorize/internal/dataset"
)

func writeGray(t *testing.T, path string, w, h int, value uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = value
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func constLabels(n int, v int64) []int64 {
	labels := make([]int64, n)
	for i := range labels {
		labels[i] = v
	}
	return labels
}

// makeFolder creates n 8x8 images with labels equal to their index.
func makeFolder(t *testing.T, n int) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "gray"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bucket"), 0o755))
	for i := 0; i < n; i++ {
		id := string(rune('a' + i))
		writeGray(t, filepath.Join(root, "gray", "gray_"+id+".png"), 8, 8, uint8(i*20))
		require.NoError(t, dataset.WriteLabels(filepath.Join(root, "bucket", "bucket_"+id+".npy"), constLabels(64, int64(i)), 8, 8))
	}
	return root
}

func TestLabelName(t *testing.T) {
	assert.Equal(t, "bucket_0001.npy", dataset.LabelName("gray_0001.png", "gray", "bucket"))
	assert.Equal(t, "bucket_img.v2.npy", dataset.LabelName("gray_img.v2.jpeg", "gray", "bucket"))
	assert.Equal(t, "bucket_x.npy", dataset.LabelName("x.png", "gray", "bucket"))
}

func TestFolderSource(t *testing.T) {
	root := makeFolder(t, 3)
	src, err := dataset.NewFolderSource(root, dataset.FolderOptions{})
	require.NoError(t, err)
	require.Equal(t, 3, src.Len())

	s, err := src.Get(2)
	require.NoError(t, err)
	assert.Equal(t, 8, s.Width)
	assert.Equal(t, 8, s.Height)
	assert.Equal(t, constLabels(64, 2), s.Labels)
	assert.Greater(t, s.L[0], float32(0))
	assert.LessOrEqual(t, s.L[0], float32(100))

	_, err = src.Get(3)
	require.Error(t, err)
}

func TestFolderSource_Resize(t *testing.T) {
	root := makeFolder(t, 1)
	src, err := dataset.NewFolderSource(root, dataset.FolderOptions{Width: 16, Height: 16})
	require.NoError(t, err)

	_, err = src.Get(0)
	require.ErrorIs(t, err, dataset.ErrLabelShape, "labels are 8x8, images resized to 16x16")
}

func TestFolderSource_MissingLabel(t *testing.T) {
	root := makeFolder(t, 2)
	writeGray(t, filepath.Join(root, "gray", "gray_orphan.png"), 8, 8, 0)

	_, err := dataset.NewFolderSource(root, dataset.FolderOptions{})
	require.ErrorIs(t, err, dataset.ErrMissingLabel)
}

func TestFolderSource_LabelRange(t *testing.T) {
	root := makeFolder(t, 1)
	require.NoError(t, dataset.WriteLabels(filepath.Join(root, "bucket", "bucket_a.npy"), constLabels(64, dataset.NumBins), 8, 8))

	src, err := dataset.NewFolderSource(root, dataset.FolderOptions{})
	require.NoError(t, err)
	_, err = src.Get(0)
	require.ErrorIs(t, err, dataset.ErrLabelRange)
}

func TestFolderSource_Empty(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "gray"), 0o755))
	_, err := dataset.NewFolderSource(root, dataset.FolderOptions{})
	require.ErrorIs(t, err, dataset.ErrEmpty)
}

func memorySource(t *testing.T, n int) *dataset.MemorySource {
	t.Helper()
	samples := make([]*dataset.Sample, n)
	for i := range samples {
		samples[i] = &dataset.Sample{
			Width: 2, Height: 2,
			L:      []float32{float32(i), float32(i), float32(i), float32(i)},
			Labels: constLabels(4, int64(i)),
		}
	}
	src, err := dataset.NewMemorySource(samples)
	require.NoError(t, err)
	return src
}

func firstLabels(t *testing.T, loader *dataset.Loader) []int64 {
	t.Helper()
	var ids []int64
	for b, err := range loader.Batches(context.Background()) {
		require.NoError(t, err)
		for i := 0; i < b.Size; i++ {
			ids = append(ids, b.Labels[i*b.Width*b.Height])
		}
	}
	return ids
}

func TestLoader_Batching(t *testing.T) {
	loader, err := dataset.NewLoader(memorySource(t, 5), dataset.LoaderConfig{BatchSize: 2, Workers: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, loader.Len())

	var sizes []int
	for b, err := range loader.Batches(context.Background()) {
		require.NoError(t, err)
		sizes = append(sizes, b.Size)
		assert.Len(t, b.L, b.Size*4)
		assert.Len(t, b.Labels, b.Size*4)
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Equal(t, []int64{0, 1, 2, 3, 4}, firstLabels(t, loader))

	dropLast, err := dataset.NewLoader(memorySource(t, 5), dataset.LoaderConfig{BatchSize: 2, DropLast: true})
	require.NoError(t, err)
	assert.Equal(t, 2, dropLast.Len())
	assert.Len(t, firstLabels(t, dropLast), 4)
}

func TestLoader_ShuffleIsSeeded(t *testing.T) {
	newLoader := func() *dataset.Loader {
		l, err := dataset.NewLoader(memorySource(t, 20), dataset.LoaderConfig{BatchSize: 3, Shuffle: true, Seed: 9})
		require.NoError(t, err)
		return l
	}
	a, b := newLoader(), newLoader()

	epochA1, epochA2 := firstLabels(t, a), firstLabels(t, a)
	assert.Equal(t, epochA1, firstLabels(t, b))
	assert.Equal(t, epochA2, firstLabels(t, b))
	assert.NotEqual(t, epochA1, epochA2, "each epoch draws a new order")
	assert.ElementsMatch(t, epochA1, epochA2)
}

func TestLoader_EarlyBreakAndCancel(t *testing.T) {
	loader, err := dataset.NewLoader(memorySource(t, 10), dataset.LoaderConfig{BatchSize: 1})
	require.NoError(t, err)

	count := 0
	for _, err := range loader.Batches(context.Background()) {
		require.NoError(t, err)
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var last error
	for _, err := range loader.Batches(ctx) {
		last = err
	}
	require.ErrorIs(t, last, context.Canceled)
}

func TestLoader_MixedSizes(t *testing.T) {
	src, err := dataset.NewMemorySource([]*dataset.Sample{
		{Width: 2, Height: 2, L: make([]float32, 4), Labels: make([]int64, 4)},
		{Width: 1, Height: 1, L: make([]float32, 1), Labels: make([]int64, 1)},
	})
	require.NoError(t, err)
	loader, err := dataset.NewLoader(src, dataset.LoaderConfig{BatchSize: 2})
	require.NoError(t, err)

	for _, err := range loader.Batches(context.Background()) {
		require.ErrorIs(t, err, dataset.ErrBatchShape)
	}
}

func TestNewMemorySource_Validates(t *testing.T) {
	_, err := dataset.NewMemorySource([]*dataset.Sample{{Width: 1, Height: 1, L: []float32{0}, Labels: []int64{-1}}})
	require.ErrorIs(t, err, dataset.ErrLabelRange)
	_, err = dataset.NewMemorySource([]*dataset.Sample{{Width: 2, Height: 1, L: []float32{0}, Labels: []int64{0}}})
	require.ErrorIs(t, err, dataset.ErrLabelShape)
}

func TestNewLoader_BadBatchSize(t *testing.T) {
	_, err := dataset.NewLoader(memorySource(t, 1), dataset.LoaderConfig{})
	require.Error(t, err)
}
