package colorizer_test

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/colorize/internal/colorizer"
	"github.com/born-ml/colorize/internal/imgproc"
)

// gridBins spreads n bin centers over a square of half-width 9*step.
func gridBins(t *testing.T, n int, step float32) *imgproc.BinTable {
	t.Helper()
	centers := make([][2]float32, n)
	for i := range centers {
		centers[i] = [2]float32{float32(i%18-9) * step, float32(i/18-9) * step}
	}
	bins, err := imgproc.NewBinTable(centers)
	require.NoError(t, err)
	return bins
}

func TestColorize_Errors(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 20, 12))
	_, err := colorizer.Colorize[Backend](nil, gridBins(t, 10, 10), img, 16, 16, 0.38, newBackend())
	require.Error(t, err)

	_, err = colorizer.Colorize[Backend](nil, gridBins(t, colorizer.NumBins, 10), img, 12, 16, 0.38, newBackend())
	require.ErrorIs(t, err, colorizer.ErrInputShape)
}

func TestColorize_KeepsSizeAndLightness(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the full network")
	}
	backend := newBackend()
	net, err := colorizer.NewNetwork(colorizer.DefaultConfig(), backend)
	require.NoError(t, err)

	img := image.NewGray(image.Rect(0, 0, 20, 12))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}
	out, err := colorizer.Colorize(net, gridBins(t, colorizer.NumBins, 1), img, 16, 16, imgproc.AnnealTemperature, backend)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), out.Bounds())

	// Only chrominance is predicted: the output lightness follows the input.
	// Small bin centers keep the colors inside the sRGB gamut.
	for _, p := range []image.Point{{0, 0}, {10, 6}, {19, 11}} {
		wantL, _, _ := imgproc.ColorToLab(img.At(p.X, p.Y))
		gotL, _, _ := imgproc.ColorToLab(out.At(p.X, p.Y))
		assert.InDelta(t, wantL, gotL, 2, "pixel %v", p)
	}
}
