package imgproc

import (
	"fmt"
	"image"
)

// Preprocessed holds an image in Lab at its original size and at the
// network input size.
type Preprocessed struct {
	Orig    *Lab
	Resized *Lab
}

// Preprocess resizes img to width x height and converts both versions to Lab.
func Preprocess(img image.Image, width, height int) *Preprocessed {
	return &Preprocessed{
		Orig:    ToLab(img),
		Resized: ToLab(Resize(img, width, height)),
	}
}

// Postprocess combines the original-resolution lightness with predicted
// ab planes and converts the result to RGB. The ab planes are bilinearly
// resized to the lightness resolution when the sizes differ.
func Postprocess(origL, a, b Plane) (*image.RGBA, error) {
	if a.Width != b.Width || a.Height != b.Height {
		return nil, fmt.Errorf("ab planes differ in size: %dx%d vs %dx%d", a.Width, a.Height, b.Width, b.Height)
	}
	if len(origL.Pix) != origL.Width*origL.Height || len(a.Pix) != a.Width*a.Height || len(b.Pix) != b.Width*b.Height {
		return nil, fmt.Errorf("plane size does not match its dimensions")
	}
	lab := &Lab{
		L: origL,
		A: ResizeBilinear(a, origL.Width, origL.Height),
		B: ResizeBilinear(b, origL.Width, origL.Height),
	}
	return lab.RGBA(), nil
}
