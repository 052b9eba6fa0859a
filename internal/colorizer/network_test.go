package colorizer_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/colorize/internal/colorizer"
	"github.com/born-ml/colorize/internal/nn"
	"github.com/born-ml/colorize/internal/tensor"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*colorizer.Config)
	}{
		{"short dropout list", func(c *colorizer.Config) { c.DropoutLayers = make([]float32, 9) }},
		{"long dropout list", func(c *colorizer.Config) { c.DropoutLayers = make([]float32, 11) }},
		{"dropout out of range", func(c *colorizer.Config) { c.DropoutLayers[3] = 1 }},
		{"zero multiplier", func(c *colorizer.Config) { c.ChannelMultiplier = 0 }},
		{"negative extra blocks", func(c *colorizer.Config) { c.NumExtraBlocks = -1 }},
	}
	require.NoError(t, colorizer.DefaultConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := colorizer.DefaultConfig()
			tt.modify(&cfg)
			require.ErrorIs(t, cfg.Validate(), colorizer.ErrInvalidConfig)

			_, err := colorizer.NewNetwork(cfg, newBackend())
			require.ErrorIs(t, err, colorizer.ErrInvalidConfig)
		})
	}
}

func TestCheckInput(t *testing.T) {
	assert.NoError(t, colorizer.CheckInput(tensor.Shape{2, 1, 16, 24}))
	for _, shape := range []tensor.Shape{
		{1, 16, 16},
		{1, 3, 16, 16},
		{1, 1, 12, 16},
		{0, 1, 16, 16},
	} {
		assert.ErrorIs(t, colorizer.CheckInput(shape), colorizer.ErrInputShape, "shape %v", shape)
	}
}

func TestNormalizeL(t *testing.T) {
	backend := newBackend()
	l, err := tensor.FromSlice([]float32{0, 50, 100}, tensor.Shape{3}, backend)
	require.NoError(t, err)

	var base colorizer.BaseColor[Backend]
	norm := base.NormalizeL(l)
	assert.InDeltaSlice(t, []float32{-0.5, 0, 0.5}, norm.Data(), 1e-6)
	assert.InDeltaSlice(t, []float32{0, 50, 100}, base.UnnormalizeL(norm).Data(), 1e-5)
}

func TestNetwork_OutputIsPerPixelDistribution(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the full network")
	}
	backend := newBackend()

	for _, extra := range []int{0, 1} {
		cfg := colorizer.DefaultConfig()
		cfg.NumExtraBlocks = extra
		net, err := colorizer.NewNetwork(cfg, backend)
		require.NoError(t, err)
		net.SetTraining(false)

		input := tensor.Full[float32](tensor.Shape{2, 1, 16, 16}, 40, backend)
		out := net.Forward(input)
		require.Equal(t, tensor.Shape{2, colorizer.NumBins, 16, 16}, out.Shape(), "extra blocks %d", extra)

		for _, s := range out.SumDim(1, false).Data() {
			assert.InDelta(t, 1, s, 1e-4)
		}
	}
}

func TestNetwork_StateDictNamesAndDeterminism(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the full network")
	}
	backend := newBackend()
	cfg := colorizer.DefaultConfig()
	cfg.NumExtraBlocks = 1
	cfg.Seed = 42

	a, err := colorizer.NewNetwork(cfg, backend)
	require.NoError(t, err)
	b, err := colorizer.NewNetwork(cfg, backend)
	require.NoError(t, err)

	sd := a.StateDict()
	for _, key := range []string{
		"model1.0.weight", "model1.0.bias", "model1.1.running_mean",
		"additional_layers.0.0.weight",
		"model8.0.weight", "model10.6.weight", "model10.6.bias",
	} {
		assert.Contains(t, sd, key)
	}
	assert.NotContains(t, sd, "model8.1.running_mean", "decoder blocks have no batch norm")
	assert.Equal(t, tensor.Shape{colorizer.NumBins, 64, 1, 1}, sd["model10.6.weight"].Shape())
	assert.Equal(t, tensor.Shape{512, 256, 4, 4}, sd["model8.0.weight"].Shape())

	names := make([]string, 0, len(sd))
	for k := range sd {
		names = append(names, k)
	}
	sort.Strings(names)
	other := b.StateDict()
	for _, k := range names {
		require.Equal(t, sd[k].AsFloat32(), other[k].AsFloat32(), "tensor %s differs between equal seeds", k)
	}

	assert.Equal(t, []string{
		"model1", "model2", "model3", "model4", "model5", "model6", "model7",
		"additional_layers.0", "model8", "model9", "model10",
	}, a.BlockNames())
	assert.Positive(t, a.NumParameters())
}

func TestNetwork_LoadStateDict(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the full network")
	}
	backend := newBackend()
	cfg := colorizer.DefaultConfig()

	cfg.Seed = 1
	a, err := colorizer.NewNetwork(cfg, backend)
	require.NoError(t, err)
	cfg.Seed = 2
	b, err := colorizer.NewNetwork(cfg, backend)
	require.NoError(t, err)

	require.NoError(t, b.LoadStateDict(nn.CloneStateDict(a.StateDict())))
	assert.Equal(t, a.StateDict()["model3.0.weight"].AsFloat32(), b.StateDict()["model3.0.weight"].AsFloat32())

	cfg.NumExtraBlocks = 1
	c, err := colorizer.NewNetwork(cfg, backend)
	require.NoError(t, err)
	require.ErrorIs(t, c.LoadStateDict(a.StateDict()), nn.ErrStateMismatch)
}

func TestNetwork_ForwardEndToEnd256(t *testing.T) {
	if testing.Short() {
		t.Skip("256x256 forward pass")
	}
	backend := newBackend()
	net, err := colorizer.NewNetwork(colorizer.DefaultConfig(), backend)
	require.NoError(t, err)
	net.SetTraining(false)

	out := net.Forward(tensor.Zeros[float32](tensor.Shape{1, 1, 256, 256}, backend))
	require.Equal(t, tensor.Shape{1, colorizer.NumBins, 256, 256}, out.Shape())

	sums := out.SumDim(1, false).Data()
	for i := 0; i < len(sums); i += 997 {
		assert.InDelta(t, 1, sums[i], 1e-4)
	}
}
