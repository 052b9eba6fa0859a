package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.dedis.ch/onet/v3/log"

	"github.com/born-ml/colorize/internal/imgproc"
)

// FolderOptions configures a FolderSource.
type FolderOptions struct {
	// GrayPrefix names the image directory and the image file prefix
	// (default "gray": gray/gray_0001.png).
	GrayPrefix string
	// BucketPrefix names the label directory and the label file prefix
	// (default "bucket": bucket/bucket_0001.npy).
	BucketPrefix string
	// Width and Height resize every image when both are positive.
	Width, Height int
}

// FolderSource reads grayscale images and .npy bin labels from
//
//	<root>/<gray>/<gray>_<id>.<ext>
//	<root>/<bucket>/<bucket>_<id>.npy
type FolderSource struct {
	opts   FolderOptions
	images []string
	labels []string
}

// NewFolderSource lists the dataset under root. Every image must have a
// label file, otherwise ErrMissingLabel is returned.
func NewFolderSource(root string, opts FolderOptions) (*FolderSource, error) {
	if opts.GrayPrefix == "" {
		opts.GrayPrefix = "gray"
	}
	if opts.BucketPrefix == "" {
		opts.BucketPrefix = "bucket"
	}
	grayDir := filepath.Join(root, opts.GrayPrefix)
	bucketDir := filepath.Join(root, opts.BucketPrefix)

	entries, err := os.ReadDir(grayDir)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}

	src := &FolderSource{opts: opts}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		label := filepath.Join(bucketDir, LabelName(name, opts.GrayPrefix, opts.BucketPrefix))
		if _, err := os.Stat(label); err != nil {
			return nil, fmt.Errorf("%w: %s for image %s", ErrMissingLabel, label, name)
		}
		src.images = append(src.images, filepath.Join(grayDir, name))
		src.labels = append(src.labels, label)
	}
	if len(src.images) == 0 {
		return nil, fmt.Errorf("%w: no images in %s", ErrEmpty, grayDir)
	}
	log.Lvlf2("dataset %s: %d images", root, len(src.images))
	return src, nil
}

// LabelName derives the label file name of an image:
// "gray_0001.png" -> "bucket_0001.npy".
func LabelName(image, grayPrefix, bucketPrefix string) string {
	id := strings.TrimPrefix(image, grayPrefix+"_")
	id = strings.TrimSuffix(id, filepath.Ext(id))
	return bucketPrefix + "_" + id + ".npy"
}

// Len returns the number of images.
func (f *FolderSource) Len() int {
	return len(f.images)
}

// Path returns the image and label paths of sample index.
func (f *FolderSource) Path(index int) (image, label string) {
	return f.images[index], f.labels[index]
}

// Get loads sample index.
func (f *FolderSource) Get(index int) (*Sample, error) {
	if index < 0 || index >= len(f.images) {
		return nil, fmt.Errorf("index %d out of range [0, %d)", index, len(f.images))
	}
	img, err := imgproc.Load(f.images[index])
	if err != nil {
		return nil, err
	}
	if f.opts.Width > 0 && f.opts.Height > 0 {
		img = imgproc.Resize(img, f.opts.Width, f.opts.Height)
	}
	l := imgproc.LightnessPlane(img)

	labels, err := readLabels(f.labels[index], l.Width, l.Height)
	if err != nil {
		return nil, err
	}
	s := &Sample{Width: l.Width, Height: l.Height, L: l.Pix, Labels: labels}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", f.labels[index], err)
	}
	return s, nil
}

func readLabels(path string, width, height int) ([]int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	values, shape, err := imgproc.ReadNpyFloat64(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(shape) != 2 || shape[0] != height || shape[1] != width {
		return nil, fmt.Errorf("%w: %s has shape %v, image is %dx%d", ErrLabelShape, path, shape, height, width)
	}
	labels := make([]int64, len(values))
	for i, v := range values {
		if v != float64(int64(v)) {
			return nil, fmt.Errorf("%w: %s: non-integer label %g", ErrLabelRange, path, v)
		}
		labels[i] = int64(v)
	}
	return labels, nil
}

// WriteLabels stores labels as a [height, width] .npy grid.
func WriteLabels(path string, labels []int64, width, height int) error {
	values := make([]float64, len(labels))
	for i, l := range labels {
		values[i] = float64(l)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := imgproc.WriteGrid(file, values, width, height); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}
