// Package metrics records training and evaluation loss curves and renders
// them as a line plot.
package metrics

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrEmpty is returned when there is nothing to plot or summarize.
var ErrEmpty = errors.New("no recorded losses")

// Plot dimensions used by SavePlot.
const (
	PlotWidth  = 6 * vg.Inch
	PlotHeight = 4 * vg.Inch
)

var (
	trainColor = color.RGBA{R: 0x00, G: 0x00, B: 0xff, A: 0xff} // blue
	evalColor  = color.RGBA{R: 0xff, G: 0xa5, B: 0x00, A: 0xff} // orange
)

// Point is one recorded loss.
type Point struct {
	Iteration int     `json:"iteration"`
	Loss      float64 `json:"loss"`
}

// Logger accumulates (iteration, loss) series for training and evaluation.
// Series are append-only. A Logger is safe for use by one writer and any
// number of concurrent readers.
type Logger struct {
	mu    sync.RWMutex
	train []Point
	eval  []Point
}

// NewLogger returns an empty logger.
func NewLogger() *Logger {
	return &Logger{}
}

// LogTrain records a training loss.
func (l *Logger) LogTrain(iteration int, loss float64) {
	l.mu.Lock()
	l.train = append(l.train, Point{Iteration: iteration, Loss: loss})
	l.mu.Unlock()
}

// LogEval records an evaluation loss.
func (l *Logger) LogEval(iteration int, loss float64) {
	l.mu.Lock()
	l.eval = append(l.eval, Point{Iteration: iteration, Loss: loss})
	l.mu.Unlock()
}

// TrainLoss returns a copy of the training series.
func (l *Logger) TrainLoss() []Point {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Point(nil), l.train...)
}

// EvalLoss returns a copy of the evaluation series.
func (l *Logger) EvalLoss() []Point {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Point(nil), l.eval...)
}

// Plot renders both series on one set of axes: train in blue, eval in
// orange, with a legend. Non-finite losses are left out.
func (l *Logger) Plot(title string) (*plot.Plot, error) {
	train, eval := l.TrainLoss(), l.EvalLoss()

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "loss"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	added := 0
	for _, s := range []struct {
		name   string
		points []Point
		color  color.Color
	}{
		{"train", train, trainColor},
		{"eval", eval, evalColor},
	} {
		xys := finiteXYs(s.points)
		if len(xys) == 0 {
			continue
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("plot %s series: %w", s.name, err)
		}
		line.Color = s.color
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(s.name, line)
		added++
	}
	if added == 0 {
		return nil, ErrEmpty
	}
	return p, nil
}

// WritePNG renders the plot as PNG to w.
func (l *Logger) WritePNG(w io.Writer, title string, width, height vg.Length) error {
	p, err := l.Plot(title)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write plot: %w", err)
	}
	return nil
}

// SavePlot writes the plot to <outputDir>/<modelName>_loss.png, creating
// outputDir if needed, and returns the file path.
func (l *Logger) SavePlot(outputDir, modelName string) (string, error) {
	p, err := l.Plot(modelName)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(outputDir, modelName+"_loss.png")
	if err := p.Save(PlotWidth, PlotHeight, path); err != nil {
		return "", fmt.Errorf("save plot: %w", err)
	}
	return path, nil
}

func finiteXYs(points []Point) plotter.XYs {
	xys := make(plotter.XYs, 0, len(points))
	for _, pt := range points {
		if math.IsNaN(pt.Loss) || math.IsInf(pt.Loss, 0) {
			continue
		}
		xys = append(xys, plotter.XY{X: float64(pt.Iteration), Y: pt.Loss})
	}
	return xys
}
