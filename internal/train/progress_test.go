package train

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressBar_Render(t *testing.T) {
	var buf bytes.Buffer
	pb := NewProgressBar(&buf, "Epoch 1/3", 4)
	start := pb.startTime
	pb.now = func() time.Time { return start.Add(2 * time.Second) }

	pb.Update(2, Metric{"loss", 5.75})
	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "\rEpoch 1/3:  50%|"))
	assert.Contains(t, line, "| 2/4 [00:02<00:02, 1.00batch/s, loss=5.75]")

	buf.Reset()
	pb.Update(4, Metric{"loss", 5.5})
	pb.Finish(Metric{"eval_loss", 5.25})
	assert.Contains(t, buf.String(), "loss=5.5, eval_loss=5.25]\n")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:00", formatDuration(-time.Second))
	assert.Equal(t, "01:05", formatDuration(65*time.Second))
}
