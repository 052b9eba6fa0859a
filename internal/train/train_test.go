package train_test

import (
	"bytes"
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/colorize/internal/autodiff"
	"github.com/born-ml/colorize/internal/autodiff/ops"
	"github.com/born-ml/colorize/internal/backend/cpu"
	"github.com/born-ml/colorize/internal/dataset"
	"github.com/born-ml/colorize/internal/metrics"
	"github.com/born-ml/colorize/internal/nn"
	"github.com/born-ml/colorize/internal/optim"
	"github.com/born-ml/colorize/internal/tensor"
	"github.com/born-ml/colorize/internal/train"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

const bins = dataset.NumBins

// tinyNet is a small per-pixel bin classifier with the same head as the
// colorizer: convolution, batch norm, 1x1 projection to the bins, softmax.
func tinyNet(seed int64, backend Backend) *nn.Sequential[Backend] {
	rng := rand.New(rand.NewSource(seed))
	same := tensor.ConvParams{Stride: 1, Padding: 1, Dilation: 1}
	return nn.NewSequential[Backend](
		nn.NewConv2D(1, 4, 3, same, true, rng, backend),
		nn.NewBatchNorm2D(4, backend),
		nn.NewReLU[Backend](),
		nn.NewConv2D(4, bins, 1, tensor.DefaultConvParams(), true, rng, backend),
		nn.NewSoftmax[Backend](1),
	)
}

func samples(t *testing.T, n int, seed int64) *dataset.MemorySource {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	out := make([]*dataset.Sample, n)
	for i := range out {
		s := &dataset.Sample{Width: 8, Height: 8, L: make([]float32, 64), Labels: make([]int64, 64)}
		for j := range s.L {
			s.L[j] = rng.Float32() * 100
			s.Labels[j] = int64(rng.Intn(4))
		}
		out[i] = s
	}
	src, err := dataset.NewMemorySource(out)
	require.NoError(t, err)
	return src
}

func loader(t *testing.T, src dataset.Source, batchSize int, shuffle bool) *dataset.Loader {
	t.Helper()
	l, err := dataset.NewLoader(src, dataset.LoaderConfig{BatchSize: batchSize, Shuffle: shuffle, Seed: 3, Workers: 2})
	require.NoError(t, err)
	return l
}

type run struct {
	backend   Backend
	net       *nn.Sequential[Backend]
	criterion nn.Criterion[Backend]
	logger    *metrics.Logger
	result    *train.Result
	evalSrc   *dataset.Loader
}

func trainRun(t *testing.T, epochs int) *run {
	t.Helper()
	backend := autodiff.New(cpu.New())
	net := tinyNet(1, backend)
	opt, err := optim.Build("Adam", map[string]any{"lr": 0.05}, net.Parameters())
	require.NoError(t, err)
	criterion := nn.NewMultinomialCrossEntropyLoss[Backend](ops.ReductionMean, 1e-8)
	logger := metrics.NewLogger()
	evalSrc := loader(t, samples(t, 2, 99), 2, false)

	result, err := train.Train[Backend](context.Background(), net, opt, criterion,
		loader(t, samples(t, 6, 7), 2, true), evalSrc, backend,
		train.Options{Epochs: epochs, Logger: logger})
	require.NoError(t, err)
	return &run{backend: backend, net: net, criterion: criterion, logger: logger, result: result, evalSrc: evalSrc}
}

func TestTrain_IsDeterministic(t *testing.T) {
	a := trainRun(t, 1)
	b := trainRun(t, 1)
	assert.Equal(t, a.logger.TrainLoss(), b.logger.TrainLoss())
	assert.Equal(t, a.result.BestEvalLoss, b.result.BestEvalLoss)
}

func TestTrain_LogsAtRunningIteration(t *testing.T) {
	r := trainRun(t, 2)

	trainLoss := r.logger.TrainLoss()
	require.Len(t, trainLoss, 6)
	for i, p := range trainLoss {
		assert.Equal(t, i+1, p.Iteration)
	}
	evalLoss := r.logger.EvalLoss()
	require.Len(t, evalLoss, 2)
	assert.Equal(t, 3, evalLoss[0].Iteration)
	assert.Equal(t, 6, evalLoss[1].Iteration)
	assert.Equal(t, 6, r.result.Iterations)
}

func TestTrain_BestModelMatchesBestLoss(t *testing.T) {
	r := trainRun(t, 3)

	best := r.logger.EvalLoss()[0].Loss
	for _, p := range r.logger.EvalLoss() {
		best = min(best, p.Loss)
	}
	assert.Equal(t, best, r.result.BestEvalLoss)
	require.NotNil(t, r.result.BestModel)
	require.NotZero(t, r.result.BestEpoch)

	// A fresh network loaded with the snapshot reproduces the best loss.
	fresh := tinyNet(2, r.backend)
	require.NoError(t, nn.LoadState(fresh.StateDict(), r.result.BestModel))
	loss, err := train.Evaluate[Backend](context.Background(), fresh, r.criterion, r.evalSrc, r.backend)
	require.NoError(t, err)
	assert.InDelta(t, r.result.BestEvalLoss, loss, 1e-6)

	if r.result.BestEpoch == 3 {
		loss, err := train.Evaluate[Backend](context.Background(), r.net, r.criterion, r.evalSrc, r.backend)
		require.NoError(t, err)
		assert.InDelta(t, r.result.BestEvalLoss, loss, 1e-6)
	}
}

func TestTrain_SnapshotIsDetached(t *testing.T) {
	r := trainRun(t, 1)
	for name, raw := range r.net.StateDict() {
		assert.NotSame(t, raw, r.result.BestModel[name], name)
	}
}

func TestEvaluate_HasNoSideEffects(t *testing.T) {
	backend := autodiff.New(cpu.New())
	net := tinyNet(5, backend)
	criterion := nn.NewMultinomialCrossEntropyLoss[Backend](ops.ReductionMean, 1e-8)
	src := loader(t, samples(t, 3, 1), 2, false)

	first, err := train.Evaluate[Backend](context.Background(), net, criterion, src, backend)
	require.NoError(t, err)
	second, err := train.Evaluate[Backend](context.Background(), net, criterion, src, backend)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Zero(t, backend.Tape().NumOps())
}

func TestEvaluate_NoData(t *testing.T) {
	backend := autodiff.New(cpu.New())
	empty, err := dataset.NewMemorySource(nil)
	require.NoError(t, err)

	_, err = train.Evaluate[Backend](context.Background(), tinyNet(1, backend),
		nn.NewCrossEntropyLoss[Backend](ops.ReductionMean), loader(t, empty, 1, false), backend)
	require.ErrorIs(t, err, train.ErrNoData)
}

func TestTrain_EmptyEvalSource(t *testing.T) {
	backend := autodiff.New(cpu.New())
	net := tinyNet(1, backend)
	opt, err := optim.Build("SGD", nil, net.Parameters())
	require.NoError(t, err)
	empty, err := dataset.NewMemorySource(nil)
	require.NoError(t, err)

	result, err := train.Train[Backend](context.Background(), net, opt,
		nn.NewMultinomialCrossEntropyLoss[Backend](ops.ReductionMean, 1e-8),
		loader(t, samples(t, 2, 1), 2, false), loader(t, empty, 1, false), backend,
		train.Options{Epochs: 1})
	require.ErrorIs(t, err, train.ErrNoData)
	assert.Nil(t, result.BestModel)
}

func TestTrain_Cancelled(t *testing.T) {
	backend := autodiff.New(cpu.New())
	net := tinyNet(1, backend)
	opt, err := optim.Build("SGD", nil, net.Parameters())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = train.Train[Backend](ctx, net, opt,
		nn.NewMultinomialCrossEntropyLoss[Backend](ops.ReductionMean, 1e-8),
		loader(t, samples(t, 4, 1), 2, false), loader(t, samples(t, 2, 2), 2, false), backend,
		train.Options{Epochs: 2})
	require.ErrorIs(t, err, context.Canceled)
}

func TestTrain_ProgressOutput(t *testing.T) {
	backend := autodiff.New(cpu.New())
	net := tinyNet(1, backend)
	opt, err := optim.Build("SGD", map[string]any{"lr": 0.1}, net.Parameters())
	require.NoError(t, err)

	var out bytes.Buffer
	_, err = train.Train[Backend](context.Background(), net, opt,
		nn.NewMultinomialCrossEntropyLoss[Backend](ops.ReductionMean, 1e-8),
		loader(t, samples(t, 4, 1), 2, false), loader(t, samples(t, 2, 2), 2, false), backend,
		train.Options{Epochs: 2, Progress: &out})
	require.NoError(t, err)

	s := out.String()
	assert.Contains(t, s, "Epoch 1/2")
	assert.Contains(t, s, "Epoch 2/2")
	assert.Contains(t, s, "2/2 [")
	assert.Contains(t, s, "eval_loss=")
}
