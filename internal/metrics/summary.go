package metrics

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

// Summary describes a loss series.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Last   float64 `json:"last"`
}

// String formats the summary for log output.
func (s Summary) String() string {
	return fmt.Sprintf("n=%d mean=%.4g median=%.4g std=%.4g min=%.4g max=%.4g last=%.4g",
		s.Count, s.Mean, s.Median, s.StdDev, s.Min, s.Max, s.Last)
}

// Summarize computes statistics over the losses of points.
func Summarize(points []Point) (Summary, error) {
	if len(points) == 0 {
		return Summary{}, ErrEmpty
	}
	data := make(stats.Float64Data, len(points))
	for i, p := range points {
		data[i] = p.Loss
	}

	var (
		s   = Summary{Count: len(points), Last: points[len(points)-1].Loss}
		err error
	)
	if s.Mean, err = data.Mean(); err != nil {
		return Summary{}, err
	}
	if s.Median, err = data.Median(); err != nil {
		return Summary{}, err
	}
	if s.StdDev, err = data.StandardDeviation(); err != nil {
		return Summary{}, err
	}
	if s.Min, err = data.Min(); err != nil {
		return Summary{}, err
	}
	if s.Max, err = data.Max(); err != nil {
		return Summary{}, err
	}
	return s, nil
}

// TrainSummary summarizes the training series.
func (l *Logger) TrainSummary() (Summary, error) {
	return Summarize(l.TrainLoss())
}

// EvalSummary summarizes the evaluation series.
func (l *Logger) EvalSummary() (Summary, error) {
	return Summarize(l.EvalLoss())
}
