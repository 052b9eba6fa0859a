package colorizer

import (
	"fmt"
	"image"

	"github.com/born-ml/colorize/internal/imgproc"
	"github.com/born-ml/colorize/internal/tensor"
)

// Colorize predicts the colors of img. The lightness is resized to
// width x height for the network; the predicted ab planes are decoded with
// the annealed mean at temperature and upsampled back to the size of img.
//
// The network is switched to inference mode.
func Colorize[B tensor.Backend](net *Network[B], bins *imgproc.BinTable, img image.Image, width, height int, temperature float64, backend B) (*image.RGBA, error) {
	if bins.Len() != NumBins {
		return nil, fmt.Errorf("bin table has %d bins, the network predicts %d", bins.Len(), NumBins)
	}
	shape := tensor.Shape{1, 1, height, width}
	if err := CheckInput(shape); err != nil {
		return nil, err
	}
	net.SetTraining(false)

	pre := imgproc.Preprocess(img, width, height)
	x, err := tensor.FromSlice(pre.Resized.L.Pix, shape, backend)
	if err != nil {
		return nil, err
	}
	probs := net.Forward(x)
	a, b, err := bins.DecodeAnnealedMean(probs.Data(), width, height, temperature)
	if err != nil {
		return nil, err
	}
	return imgproc.Postprocess(pre.Orig.L, a, b)
}
