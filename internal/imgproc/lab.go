// Package imgproc converts images to and from the CIE Lab planes the
// colorizer works on, resizes them, and maps ab values to color bins.
package imgproc

import (
	"image"
	"image/color"
	"math"

	"gonum.org/v1/gonum/mat"
)

// D65 reference white, 2° observer.
const (
	whiteX = 0.95047
	whiteY = 1.0
	whiteZ = 1.08883
)

var (
	xyzFromRGB = mat.NewDense(3, 3, []float64{
		0.412453, 0.357580, 0.180423,
		0.212671, 0.715160, 0.072169,
		0.019334, 0.119193, 0.950227,
	})
	rgbFromXYZ = invert(xyzFromRGB)
)

func invert(m *mat.Dense) *mat.Dense {
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		panic(err)
	}
	return &inv
}

// Plane is a row-major single-channel float image.
type Plane struct {
	Width  int
	Height int
	Pix    []float32
}

// NewPlane allocates a zero plane.
func NewPlane(width, height int) Plane {
	return Plane{Width: width, Height: height, Pix: make([]float32, width*height)}
}

// At returns the value at (x, y).
func (p Plane) At(x, y int) float32 {
	return p.Pix[y*p.Width+x]
}

// Lab holds the three planes of a CIE Lab image. L is in [0, 100], a and b
// roughly in [-110, 110].
type Lab struct {
	L, A, B Plane
}

// Bounds returns the image size.
func (l *Lab) Bounds() image.Rectangle {
	return image.Rect(0, 0, l.L.Width, l.L.Height)
}

// ToLab converts img to Lab.
func ToLab(img image.Image) *Lab {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := &Lab{L: NewPlane(w, h), A: NewPlane(w, h), B: NewPlane(w, h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			l, a, bb := ColorToLab(img.At(b.Min.X+x, b.Min.Y+y))
			i := y*w + x
			out.L.Pix[i], out.A.Pix[i], out.B.Pix[i] = float32(l), float32(a), float32(bb)
		}
	}
	return out
}

// LightnessPlane returns only the L plane of img.
func LightnessPlane(img image.Image) Plane {
	return ToLab(img).L
}

// ColorToLab converts one color.
func ColorToLab(c color.Color) (l, a, b float64) {
	r, g, bl, _ := c.RGBA()
	return RGBToLab(float64(r)/0xffff, float64(g)/0xffff, float64(bl)/0xffff)
}

// RGBToLab converts sRGB components in [0, 1] to Lab.
func RGBToLab(r, g, b float64) (l, a, bb float64) {
	rgb := mat.NewVecDense(3, []float64{srgbToLinear(r), srgbToLinear(g), srgbToLinear(b)})
	var xyz mat.VecDense
	xyz.MulVec(xyzFromRGB, rgb)

	fx := labF(xyz.AtVec(0) / whiteX)
	fy := labF(xyz.AtVec(1) / whiteY)
	fz := labF(xyz.AtVec(2) / whiteZ)
	return 116*fy - 16, 500 * (fx - fy), 200 * (fy - fz)
}

// LabToRGB converts Lab to sRGB components clipped to [0, 1].
func LabToRGB(l, a, b float64) (r, g, bl float64) {
	fy := (l + 16) / 116
	fx := a/500 + fy
	fz := math.Max(fy-b/200, 0)

	xyz := mat.NewVecDense(3, []float64{labFInv(fx) * whiteX, labFInv(fy) * whiteY, labFInv(fz) * whiteZ})
	var rgb mat.VecDense
	rgb.MulVec(rgbFromXYZ, xyz)
	return linearToSRGB(rgb.AtVec(0)), linearToSRGB(rgb.AtVec(1)), linearToSRGB(rgb.AtVec(2))
}

// RGBA converts the Lab image back to 8-bit sRGB.
func (l *Lab) RGBA() *image.RGBA {
	w, h := l.L.Width, l.L.Height
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range l.L.Pix {
		r, g, b := LabToRGB(float64(l.L.Pix[i]), float64(l.A.Pix[i]), float64(l.B.Pix[i]))
		out.SetRGBA(i%w, i/w, color.RGBA{R: to8(r), G: to8(g), B: to8(b), A: 0xff})
	}
	return out
}

func srgbToLinear(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

func linearToSRGB(c float64) float64 {
	if c <= 0.0031308 {
		c *= 12.92
	} else {
		c = 1.055*math.Pow(c, 1/2.4) - 0.055
	}
	return math.Min(math.Max(c, 0), 1)
}

func labF(t float64) float64 {
	if t > 0.008856 {
		return math.Cbrt(t)
	}
	return 7.787*t + 16.0/116
}

func labFInv(f float64) float64 {
	if t := f * f * f; t > 0.008856 {
		return t
	}
	return (f - 16.0/116) / 7.787
}

func to8(c float64) uint8 {
	return uint8(math.Round(c * 255))
}
