package imgproc

import (
	"fmt"
	"image"
	"os"

	// Registered decoders.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"golang.org/x/image/draw"
)

// Load decodes an image file in any registered format.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Resize scales img to width x height with Catmull-Rom (bicubic) resampling.
// The input is returned as is when it already has that size.
func Resize(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// ResizeBilinear upsamples or downsamples a plane with half-pixel centers,
// matching bilinear interpolation without corner alignment.
func ResizeBilinear(p Plane, width, height int) Plane {
	if p.Width == width && p.Height == height {
		return Plane{Width: width, Height: height, Pix: append([]float32(nil), p.Pix...)}
	}
	out := NewPlane(width, height)
	sx := float64(p.Width) / float64(width)
	sy := float64(p.Height) / float64(height)
	for y := 0; y < height; y++ {
		y0, y1, wy := sourceIndex(y, sy, p.Height)
		for x := 0; x < width; x++ {
			x0, x1, wx := sourceIndex(x, sx, p.Width)
			top := p.At(x0, y0)*(1-wx) + p.At(x1, y0)*wx
			bottom := p.At(x0, y1)*(1-wx) + p.At(x1, y1)*wx
			out.Pix[y*width+x] = top*(1-wy) + bottom*wy
		}
	}
	return out
}

func sourceIndex(dst int, scale float64, size int) (i0, i1 int, w float32) {
	src := (float64(dst)+0.5)*scale - 0.5
	if src < 0 {
		src = 0
	}
	i0 = int(src)
	if i0 > size-1 {
		i0 = size - 1
	}
	i1 = i0 + 1
	if i1 > size-1 {
		i1 = size - 1
	}
	return i0, i1, float32(src - float64(i0))
}
