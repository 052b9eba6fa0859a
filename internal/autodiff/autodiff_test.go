package autodiff_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/colorize/internal/autodiff"
	"github.com/born-ml/colorize/internal/autodiff/ops"
	"github.com/born-ml/colorize/internal/backend/cpu"
	"github.com/born-ml/colorize/internal/tensor"
)

type testBackend = autodiff.AutodiffBackend[*cpu.CPUBackend]

func newBackend() *testBackend {
	return autodiff.New(cpu.New())
}

func randRaw(rng *rand.Rand, shape ...int) *tensor.RawTensor {
	r := tensor.MustNewRaw(tensor.Shape(shape), tensor.Float32, tensor.CPU)
	for i, d := 0, r.AsFloat32(); i < len(d); i++ {
		d[i] = rng.Float32()*2 - 1
	}
	return r
}

func randLabels(rng *rand.Rand, classes int, shape ...int) *tensor.RawTensor {
	r := tensor.MustNewRaw(tensor.Shape(shape), tensor.Int64, tensor.CPU)
	for i, d := 0, r.AsInt64(); i < len(d); i++ {
		d[i] = int64(rng.Intn(classes))
	}
	return r
}

// checkGradients compares tape gradients of loss() against central finite
// differences for every element of every parameter.
func checkGradients(t *testing.T, backend *testBackend, params []*tensor.RawTensor, loss func() *tensor.RawTensor) {
	t.Helper()
	tape := backend.Tape()
	tape.Clear()
	tape.StartRecording()
	out := loss()
	grads := autodiff.Backward(tensor.New[float32](out, backend), backend)
	tape.StopRecording()
	tape.Clear()

	const eps = 1e-2
	for pi, p := range params {
		g, ok := grads[p]
		require.True(t, ok, "no gradient for param %d", pi)
		data := p.AsFloat32()
		for i := range data {
			orig := data[i]
			data[i] = orig + eps
			plus := float64(loss().AsFloat32()[0])
			data[i] = orig - eps
			minus := float64(loss().AsFloat32()[0])
			data[i] = orig

			numeric := (plus - minus) / (2 * eps)
			analytic := float64(g.AsFloat32()[i])
			tol := 2e-2 * math.Max(1, math.Abs(numeric))
			assert.InDelta(t, numeric, analytic, tol, "param %d element %d", pi, i)
		}
	}
}

func TestGradient_Conv2DDilated(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	backend := newBackend()
	x := randRaw(rng, 2, 2, 5, 5)
	w := randRaw(rng, 3, 2, 3, 3)
	bias := randRaw(rng, 1, 3, 1, 1)
	labels := randLabels(rng, 3, 2, 5, 5)
	p := tensor.ConvParams{Stride: 1, Padding: 2, Dilation: 2}

	checkGradients(t, backend, []*tensor.RawTensor{x, w, bias}, func() *tensor.RawTensor {
		y := backend.Add(backend.Conv2D(x, w, p), bias)
		return backend.SpatialCrossEntropy(y, labels, true, 0, ops.ReductionMean)
	})
}

func TestGradient_Conv2DStrided(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	backend := newBackend()
	x := randRaw(rng, 1, 2, 6, 6)
	w := randRaw(rng, 4, 2, 3, 3)
	labels := randLabels(rng, 4, 1, 3, 3)
	p := tensor.ConvParams{Stride: 2, Padding: 1, Dilation: 1}

	checkGradients(t, backend, []*tensor.RawTensor{x, w}, func() *tensor.RawTensor {
		return backend.SpatialCrossEntropy(backend.Conv2D(x, w, p), labels, true, 0, ops.ReductionSum)
	})
}

func TestGradient_ConvTranspose2D(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	backend := newBackend()
	x := randRaw(rng, 1, 3, 3, 3)
	w := randRaw(rng, 3, 2, 4, 4)
	labels := randLabels(rng, 2, 1, 6, 6)
	p := tensor.ConvParams{Stride: 2, Padding: 1, Dilation: 1}

	checkGradients(t, backend, []*tensor.RawTensor{x, w}, func() *tensor.RawTensor {
		y := backend.ConvTranspose2D(x, w, p)
		return backend.SpatialCrossEntropy(y, labels, true, 0, ops.ReductionMean)
	})
}

func TestGradient_BatchNorm2D(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	backend := newBackend()
	x := randRaw(rng, 2, 3, 3, 3)
	gamma := randRaw(rng, 3)
	beta := randRaw(rng, 3)
	labels := randLabels(rng, 3, 2, 3, 3)
	st := ops.BatchNormState{
		RunningMean: tensor.MustNewRaw(tensor.Shape{3}, tensor.Float32, tensor.CPU),
		RunningVar:  tensor.MustNewRaw(tensor.Shape{3}, tensor.Float32, tensor.CPU),
		Momentum:    0.1,
		Eps:         1e-5,
		Training:    true,
	}
	st.RunningVar.Fill(1)

	checkGradients(t, backend, []*tensor.RawTensor{x, gamma, beta}, func() *tensor.RawTensor {
		y := backend.BatchNorm2D(x, gamma, beta, st)
		return backend.SpatialCrossEntropy(y, labels, true, 0, ops.ReductionMean)
	})
}

func TestGradient_SoftmaxThenMultinomial(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	backend := newBackend()
	x := randRaw(rng, 2, 4, 2, 2)
	labels := randLabels(rng, 4, 2, 2, 2)

	checkGradients(t, backend, []*tensor.RawTensor{x}, func() *tensor.RawTensor {
		probs := backend.Softmax(x, 1)
		return backend.SpatialCrossEntropy(probs, labels, false, 1e-8, ops.ReductionMean)
	})
}

func TestGradient_BroadcastMulAndScalars(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	backend := newBackend()
	x := randRaw(rng, 2, 3, 2, 2)
	scale := randRaw(rng, 1, 3, 1, 1)
	labels := randLabels(rng, 3, 2, 2, 2)

	checkGradients(t, backend, []*tensor.RawTensor{x, scale}, func() *tensor.RawTensor {
		y := backend.Mul(backend.MulScalar(backend.AddScalar(x, -0.5), 2), scale)
		y = backend.Reshape(backend.Reshape(y, tensor.Shape{2, 12}), tensor.Shape{2, 3, 2, 2})
		return backend.SpatialCrossEntropy(y, labels, true, 0, ops.ReductionMean)
	})
}

func TestCrossEntropy_UniformLogits(t *testing.T) {
	backend := newBackend()
	x := tensor.MustNewRaw(tensor.Shape{1, 313, 2, 2}, tensor.Float32, tensor.CPU)
	labels := tensor.MustNewRaw(tensor.Shape{1, 2, 2}, tensor.Int64, tensor.CPU)

	loss := backend.SpatialCrossEntropy(x, labels, true, 0, ops.ReductionMean)
	assert.InDelta(t, math.Log(313), loss.AsFloat32()[0], 1e-4)

	sum := backend.SpatialCrossEntropy(x, labels, true, 0, ops.ReductionSum)
	assert.InDelta(t, 4*math.Log(313), sum.AsFloat32()[0], 1e-3)
}

func TestCrossEntropy_OutOfRangeTargetPanics(t *testing.T) {
	backend := newBackend()
	x := tensor.MustNewRaw(tensor.Shape{1, 3, 1, 1}, tensor.Float32, tensor.CPU)
	labels := tensor.MustNewRaw(tensor.Shape{1, 1, 1}, tensor.Int64, tensor.CPU)
	labels.AsInt64()[0] = 3
	assert.Panics(t, func() { backend.SpatialCrossEntropy(x, labels, true, 0, ops.ReductionMean) })
}

func TestReLU_ForwardAndMask(t *testing.T) {
	backend := newBackend()
	x := tensor.MustNewRaw(tensor.Shape{4}, tensor.Float32, tensor.CPU)
	copy(x.AsFloat32(), []float32{-1, 0, 2, -3})

	backend.Tape().StartRecording()
	y := backend.ReLU(x)
	assert.Equal(t, []float32{0, 0, 2, 0}, y.AsFloat32())

	g := tensor.MustNewRaw(tensor.Shape{4}, tensor.Float32, tensor.CPU)
	g.Fill(1)
	grads := backend.Tape().Backward(g, backend)
	assert.Equal(t, []float32{0, 0, 1, 0}, grads[x].AsFloat32())
}

func TestBatchNorm2D_RunningStats(t *testing.T) {
	backend := newBackend()
	x := tensor.MustNewRaw(tensor.Shape{2, 1, 1, 2}, tensor.Float32, tensor.CPU)
	copy(x.AsFloat32(), []float32{1, 2, 3, 4})
	gamma := tensor.MustNewRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU)
	gamma.Fill(1)
	beta := tensor.MustNewRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU)
	st := ops.BatchNormState{
		RunningMean: tensor.MustNewRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU),
		RunningVar:  tensor.MustNewRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU),
		Momentum:    0.1,
		Eps:         1e-5,
		Training:    true,
	}
	st.RunningVar.Fill(1)

	y := backend.BatchNorm2D(x, gamma, beta, st)

	// mean 2.5, biased var 1.25, unbiased var 5/3.
	assert.InDelta(t, 0.25, st.RunningMean.AsFloat32()[0], 1e-6)
	assert.InDelta(t, 0.9+0.1*5.0/3.0, st.RunningVar.AsFloat32()[0], 1e-6)
	var sum float32
	for _, v := range y.AsFloat32() {
		sum += v
	}
	assert.InDelta(t, 0, sum, 1e-5)

	st.Training = false
	eval := backend.BatchNorm2D(x, gamma, beta, st)
	want := (1 - 0.25) / math.Sqrt(float64(st.RunningVar.AsFloat32()[0])+1e-5)
	assert.InDelta(t, want, eval.AsFloat32()[0], 1e-5)
}

func TestTape_RecordingToggle(t *testing.T) {
	backend := newBackend()
	tape := backend.Tape()
	x := tensor.MustNewRaw(tensor.Shape{2}, tensor.Float32, tensor.CPU)

	backend.Add(x, x)
	assert.Equal(t, 0, tape.NumOps(), "nothing is recorded until StartRecording")

	tape.StartRecording()
	backend.Add(x, x)
	backend.MulScalar(x, 2)
	assert.Equal(t, 2, tape.NumOps())

	tape.Clear()
	assert.Equal(t, 0, tape.NumOps())
	assert.True(t, tape.IsRecording())
}

func TestTape_AccumulatesSharedInputs(t *testing.T) {
	backend := newBackend()
	x := tensor.MustNewRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU)
	x.AsFloat32()[0] = 3

	backend.Tape().StartRecording()
	y := backend.Mul(x, x)
	grads := autodiff.Backward(tensor.New[float32](y, backend), backend)

	assert.InDelta(t, 6, grads[x].AsFloat32()[0], 1e-6)
}
