package imgproc

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// AnnealTemperature is the default temperature of the annealed-mean decoding.
const AnnealTemperature = 0.38

// ErrBinTable is returned for malformed bin center files.
var ErrBinTable = errors.New("invalid bin table")

// BinTable maps ab values to quantized color bins and back.
type BinTable struct {
	centers [][2]float32
}

// NewBinTable creates a table from ab bin centers.
func NewBinTable(centers [][2]float32) (*BinTable, error) {
	if len(centers) == 0 {
		return nil, fmt.Errorf("%w: no centers", ErrBinTable)
	}
	return &BinTable{centers: append([][2]float32(nil), centers...)}, nil
}

// LoadBinTable reads a [K, 2] .npy array of ab bin centers.
func LoadBinTable(path string) (*BinTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadBinTable(f)
}

// ReadBinTable reads a [K, 2] .npy array of ab bin centers from r.
func ReadBinTable(r io.Reader) (*BinTable, error) {
	values, shape, err := ReadNpyFloat64(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBinTable, err)
	}
	if len(shape) != 2 || shape[1] != 2 {
		return nil, fmt.Errorf("%w: want shape [K, 2], got %v", ErrBinTable, shape)
	}
	centers := make([][2]float32, shape[0])
	for i := range centers {
		centers[i] = [2]float32{float32(values[2*i]), float32(values[2*i+1])}
	}
	return NewBinTable(centers)
}

// Len returns the number of bins.
func (t *BinTable) Len() int {
	return len(t.centers)
}

// Center returns the ab value of bin i.
func (t *BinTable) Center(i int) (a, b float32) {
	c := t.centers[i]
	return c[0], c[1]
}

// Encode assigns every pixel to the bin with the nearest center.
func (t *BinTable) Encode(a, b Plane) ([]int64, error) {
	if a.Width != b.Width || a.Height != b.Height {
		return nil, fmt.Errorf("ab planes differ in size: %dx%d vs %dx%d", a.Width, a.Height, b.Width, b.Height)
	}
	labels := make([]int64, len(a.Pix))
	for i := range labels {
		labels[i] = int64(t.nearest(a.Pix[i], b.Pix[i]))
	}
	return labels, nil
}

func (t *BinTable) nearest(a, b float32) int {
	best, bestDist := 0, float32(math.MaxFloat32)
	for i, c := range t.centers {
		da, db := a-c[0], b-c[1]
		if d := da*da + db*db; d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// DecodeAnnealedMean turns per-pixel bin probabilities [K, H, W] into ab
// planes. Each distribution is sharpened as p^(1/T) and renormalized, and
// the ab value is its expectation over the bin centers. T = 1 gives the
// plain mean, T -> 0 approaches the mode.
func (t *BinTable) DecodeAnnealedMean(probs []float32, width, height int, temperature float64) (a, b Plane, err error) {
	k := len(t.centers)
	hw := width * height
	if len(probs) != k*hw {
		return Plane{}, Plane{}, fmt.Errorf("probabilities have %d values, want %d x %d x %d", len(probs), k, height, width)
	}
	if temperature <= 0 {
		return Plane{}, Plane{}, fmt.Errorf("temperature must be positive, got %g", temperature)
	}

	a, b = NewPlane(width, height), NewPlane(width, height)
	inv := 1 / temperature
	logits := make([]float64, k)
	for px := 0; px < hw; px++ {
		// p^(1/T) computed as exp(log(p)/T - max) to stay finite for small T.
		maxLogit := math.Inf(-1)
		for c := 0; c < k; c++ {
			logits[c] = math.Log(math.Max(float64(probs[c*hw+px]), 1e-30)) * inv
			maxLogit = math.Max(maxLogit, logits[c])
		}
		var sum, ma, mb float64
		for c, center := range t.centers {
			w := math.Exp(logits[c] - maxLogit)
			sum += w
			ma += w * float64(center[0])
			mb += w * float64(center[1])
		}
		a.Pix[px] = float32(ma / sum)
		b.Pix[px] = float32(mb / sum)
	}
	return a, b, nil
}

// ReadNpyFloat64 reads a numeric .npy array of any common dtype and returns
// its values as float64 together with its shape.
func ReadNpyFloat64(r io.Reader) ([]float64, []int, error) {
	npy, err := npyio.NewReader(r)
	if err != nil {
		return nil, nil, err
	}
	shape := npy.Header.Descr.Shape
	if npy.Header.Descr.Fortran && len(shape) > 1 {
		return nil, nil, fmt.Errorf("fortran-ordered arrays are not supported")
	}

	var out []float64
	switch dt := npy.Header.Descr.Type; dt {
	case "<f8", "f8":
		err = npy.Read(&out)
	case "<f4", "f4":
		out, err = readAs[float32](npy)
	case "<i8", "i8":
		out, err = readAs[int64](npy)
	case "<i4", "i4":
		out, err = readAs[int32](npy)
	case "<i2", "i2":
		out, err = readAs[int16](npy)
	case "|i1", "i1":
		out, err = readAs[int8](npy)
	case "|u1", "u1":
		out, err = readAs[uint8](npy)
	case "<u2", "u2":
		out, err = readAs[uint16](npy)
	default:
		return nil, nil, fmt.Errorf("unsupported dtype %q", dt)
	}
	if err != nil {
		return nil, nil, err
	}
	return out, shape, nil
}

type npyNumber interface {
	~float32 | ~int64 | ~int32 | ~int16 | ~int8 | ~uint8 | ~uint16
}

func readAs[T npyNumber](npy *npyio.Reader) ([]float64, error) {
	var raw []T
	if err := npy.Read(&raw); err != nil {
		return nil, err
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = float64(v)
	}
	return out, nil
}

// WriteGrid writes values as a [height, width] float64 .npy array.
func WriteGrid(w io.Writer, values []float64, width, height int) error {
	if len(values) != width*height {
		return fmt.Errorf("grid has %d values, want %d x %d", len(values), height, width)
	}
	return npyio.Write(w, mat.NewDense(height, width, values))
}

// Write stores the bin centers as a [K, 2] .npy array.
func (t *BinTable) Write(w io.Writer) error {
	values := make([]float64, 0, 2*len(t.centers))
	for _, c := range t.centers {
		values = append(values, float64(c[0]), float64(c[1]))
	}
	return WriteGrid(w, values, 2, len(t.centers))
}
