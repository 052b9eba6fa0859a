package train

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Metric is a named value shown after the progress bar.
type Metric struct {
	Name  string
	Value float64
}

// ProgressBar renders a single-line, PyTorch-style progress bar:
//
//	Epoch 1/5:  40%|████████            | 4/10 [00:03<00:04, 1.25batch/s, loss=5.71]
type ProgressBar struct {
	w           io.Writer
	description string
	total       int
	current     int
	startTime   time.Time
	width       int
	metrics     []Metric
	now         func() time.Time
}

// NewProgressBar creates a progress bar writing to w.
func NewProgressBar(w io.Writer, description string, total int) *ProgressBar {
	return &ProgressBar{
		w:           w,
		description: description,
		total:       total,
		startTime:   time.Now(),
		width:       30,
		now:         time.Now,
	}
}

// Update advances the progress bar to step and replaces the metrics.
func (pb *ProgressBar) Update(step int, metrics ...Metric) {
	pb.current = step
	pb.metrics = metrics
	pb.render()
}

// Finish redraws the bar with extra metrics and ends the line.
func (pb *ProgressBar) Finish(metrics ...Metric) {
	pb.metrics = append(pb.metrics, metrics...)
	pb.render()
	fmt.Fprintln(pb.w)
}

func (pb *ProgressBar) render() {
	percentage := 1.0
	if pb.total > 0 {
		percentage = min(float64(pb.current)/float64(pb.total), 1)
	}
	filled := int(percentage * float64(pb.width))
	bar := strings.Repeat("█", filled) + strings.Repeat(" ", pb.width-filled)

	elapsed := pb.now().Sub(pb.startTime)
	var eta time.Duration
	var rate float64
	if pb.current > 0 && elapsed > 0 {
		rate = float64(pb.current) / elapsed.Seconds()
		eta = time.Duration(float64(elapsed)/percentage) - elapsed
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "\r%s: %3.0f%%|%s| %d/%d [%s<%s", pb.description, percentage*100, bar, pb.current, pb.total,
		formatDuration(elapsed), formatDuration(eta))
	if rate > 0 {
		fmt.Fprintf(&sb, ", %.2fbatch/s", rate)
	}
	for _, m := range pb.metrics {
		fmt.Fprintf(&sb, ", %s=%.3g", m.Name, m.Value)
	}
	sb.WriteString("]")
	io.WriteString(pb.w, sb.String())
}

// formatDuration formats duration as MM:SS
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
