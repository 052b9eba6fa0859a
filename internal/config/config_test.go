package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/colorize/internal/colorizer"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
name = "mini"
output_dir = "runs"
seed = 7
epochs = 3
log_level = 2

[data]
train_dir = "data/train"
eval_dir = "data/eval"
batch_size = 4
width = 64
height = 32

[model]
dropout_layers = [0, 0, 0, 0, 0.5, 0.5, 0, 0, 0, 0]
num_extra_blocks = 1
channel_multiplier = 2

[optimizer]
name = "SGD"
[optimizer.args]
lr = 0.1
momentum = 0.9
nesterov = true

[criterion]
name = "CrossEntropyLoss"
args = { reduction = "sum" }

[dashboard]
addr = ":8080"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mini", cfg.Name)
	assert.Equal(t, "runs", cfg.OutputDir)
	assert.Equal(t, 3, cfg.Epochs)
	assert.Equal(t, 2, cfg.LogLevel)

	assert.Equal(t, "data/train", cfg.Data.TrainDir)
	assert.Equal(t, 4, cfg.Data.BatchSize)
	assert.Equal(t, 8, cfg.Data.EvalBatchSize, "default kept")
	assert.Equal(t, 64, cfg.Data.Width)
	assert.Equal(t, 32, cfg.Data.Height)
	assert.True(t, cfg.Data.Shuffle)
	assert.Equal(t, "gray", cfg.Data.GrayPrefix)

	assert.Equal(t, []float32{0, 0, 0, 0, 0.5, 0.5, 0, 0, 0, 0}, cfg.Model.DropoutLayers)
	assert.Equal(t, 1, cfg.Model.NumExtraBlocks)
	assert.Equal(t, 2, cfg.Model.ChannelMultiplier)
	assert.Equal(t, int64(7), cfg.Model.Seed, "model seed follows the run seed")

	assert.Equal(t, "SGD", cfg.Optimizer.Name)
	assert.InDelta(t, 0.1, cfg.Optimizer.Args["lr"], 1e-12)
	assert.Equal(t, true, cfg.Optimizer.Args["nesterov"])
	assert.Equal(t, "sum", cfg.Criterion.Args["reduction"])
	assert.Equal(t, ":8080", cfg.Dashboard.Addr)
}

func TestLoad_ModelSeedOverride(t *testing.T) {
	cfg, err := Load(writeConfig(t, "seed = 1\n[model]\nseed = 5\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), cfg.Seed)
	assert.Equal(t, int64(5), cfg.Model.Seed)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"unknown key", "epochz = 3\n", ErrInvalid},
		{"unknown table key", "[data]\nbatchsize = 3\n", ErrInvalid},
		{"epochs", "epochs = 0\n", ErrInvalid},
		{"name", "name = \"a/b\"\n", ErrInvalid},
		{"log level", "log_level = 9\n", ErrInvalid},
		{"batch size", "[data]\nbatch_size = 0\n", ErrInvalid},
		{"size", "[data]\nwidth = 100\n", ErrInvalid},
		{"dropout length", "[model]\ndropout_layers = [0.1, 0.2]\n", colorizer.ErrInvalidConfig},
		{"multiplier", "[model]\nchannel_multiplier = 0\n", colorizer.ErrInvalidConfig},
		{"optimizer", "[optimizer]\nname = \"RMSprop\"\n", ErrInvalid},
		{"criterion", "[criterion]\nname = \"L1Loss\"\n", ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoad_Syntax(t *testing.T) {
	_, err := Load(writeConfig(t, "epochs = = 3\n"))
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
