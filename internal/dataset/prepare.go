package dataset

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.dedis.ch/onet/v3/log"

	"github.com/born-ml/colorize/internal/imgproc"
)

// PrepareOptions configures Prepare.
type PrepareOptions struct {
	GrayPrefix   string
	BucketPrefix string
	// Width and Height resize every image when both are positive.
	Width, Height int
	// Workers converting images in parallel (default GOMAXPROCS).
	Workers int
}

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// Prepare converts the color images of srcDir into a dataset under root
// that NewFolderSource can read: a grayscale PNG of the Lab lightness in
// <root>/<gray>/ and the nearest-bin label grid of the ab channels in
// <root>/<bucket>/. It returns the number of images written.
func Prepare(ctx context.Context, srcDir, root string, bins *imgproc.BinTable, opts PrepareOptions) (int, error) {
	if opts.GrayPrefix == "" {
		opts.GrayPrefix = "gray"
	}
	if opts.BucketPrefix == "" {
		opts.BucketPrefix = "bucket"
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return 0, fmt.Errorf("list images: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return 0, fmt.Errorf("%w: no images in %s", ErrEmpty, srcDir)
	}
	sort.Strings(names)

	grayDir := filepath.Join(root, opts.GrayPrefix)
	bucketDir := filepath.Join(root, opts.BucketPrefix)
	for _, dir := range []string{grayDir, bucketDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, err
		}
	}

	jobs := make(chan string)
	errs := make(chan error, len(names))
	var wg sync.WaitGroup
	for w := 0; w < min(opts.Workers, len(names)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range jobs {
				if err := prepareOne(srcDir, grayDir, bucketDir, name, bins, opts); err != nil {
					errs <- fmt.Errorf("%s: %w", name, err)
				}
			}
		}()
	}
	sent := 0
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		jobs <- name
		sent++
	}
	close(jobs)
	wg.Wait()
	close(errs)

	if err := <-errs; err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return sent, err
	}
	log.Lvlf1("prepared %d images in %s", sent, root)
	return sent, nil
}

func prepareOne(srcDir, grayDir, bucketDir, name string, bins *imgproc.BinTable, opts PrepareOptions) error {
	img, err := imgproc.Load(filepath.Join(srcDir, name))
	if err != nil {
		return err
	}
	if opts.Width > 0 && opts.Height > 0 {
		img = imgproc.Resize(img, opts.Width, opts.Height)
	}
	lab := imgproc.ToLab(img)
	labels, err := bins.Encode(lab.A, lab.B)
	if err != nil {
		return err
	}

	id := strings.TrimSuffix(name, filepath.Ext(name))
	grayName := opts.GrayPrefix + "_" + id + ".png"
	if err := writeGray(filepath.Join(grayDir, grayName), lab.L); err != nil {
		return err
	}
	labelName := LabelName(grayName, opts.GrayPrefix, opts.BucketPrefix)
	return WriteLabels(filepath.Join(bucketDir, labelName), labels, lab.L.Width, lab.L.Height)
}

// writeGray stores the lightness plane as an 8-bit neutral gray PNG.
func writeGray(path string, l imgproc.Plane) error {
	g := image.NewGray(image.Rect(0, 0, l.Width, l.Height))
	for i, v := range l.Pix {
		r, _, _ := imgproc.LabToRGB(float64(v), 0, 0)
		g.Pix[i] = uint8(math.Round(r * 255))
	}
	return writePNG(path, g)
}

func writePNG(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return file.Close()
}
