package cpu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/colorize/internal/tensor"
)

func rawFrom(t *testing.T, data []float32, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(tensor.Shape(shape), tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsFloat32(), data)
	return r
}

func TestCPUBackend_New(t *testing.T) {
	backend := New()
	require.NotNil(t, backend)
	assert.Equal(t, "CPU", backend.Name())
	assert.Equal(t, tensor.CPU, backend.Device())
}

func TestAdd_SameShape(t *testing.T) {
	backend := New()
	a := rawFrom(t, []float32{1, 2, 3, 4}, 2, 2)
	b := rawFrom(t, []float32{10, 20, 30, 40}, 2, 2)

	out := backend.Add(a, b)
	assert.Equal(t, []float32{11, 22, 33, 44}, out.AsFloat32())
	assert.Equal(t, []float32{1, 2, 3, 4}, a.AsFloat32(), "inputs must not be modified")
}

func TestAdd_ChannelBias(t *testing.T) {
	backend := New()
	// [1, 2, 2, 2] + [1, 2, 1, 1]
	x := rawFrom(t, []float32{0, 0, 0, 0, 1, 1, 1, 1}, 1, 2, 2, 2)
	bias := rawFrom(t, []float32{5, -1}, 1, 2, 1, 1)

	out := backend.Add(x, bias)
	assert.Equal(t, tensor.Shape{1, 2, 2, 2}, out.Shape())
	assert.Equal(t, []float32{5, 5, 5, 5, 0, 0, 0, 0}, out.AsFloat32())
}

func TestMul_BroadcastBothSides(t *testing.T) {
	backend := New()
	a := rawFrom(t, []float32{1, 2, 3}, 3, 1)
	b := rawFrom(t, []float32{1, 10}, 1, 2)

	out := backend.Mul(a, b)
	assert.Equal(t, tensor.Shape{3, 2}, out.Shape())
	assert.Equal(t, []float32{1, 10, 2, 20, 3, 30}, out.AsFloat32())
}

func TestAdd_IncompatiblePanics(t *testing.T) {
	backend := New()
	a := rawFrom(t, make([]float32, 6), 2, 3)
	b := rawFrom(t, make([]float32, 4), 2, 2)
	assert.Panics(t, func() { backend.Add(a, b) })
}

func TestScalarOps(t *testing.T) {
	backend := New()
	x := rawFrom(t, []float32{50, 100, 0}, 3)

	shifted := backend.AddScalar(x, -50)
	scaled := backend.MulScalar(shifted, 0.01)
	assert.InDeltaSlice(t, []float32{0, 0.5, -0.5}, scaled.AsFloat32(), 1e-6)
}

func TestReshape_Copies(t *testing.T) {
	backend := New()
	x := rawFrom(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)

	y := backend.Reshape(x, tensor.Shape{3, 2})
	assert.Equal(t, tensor.Shape{3, 2}, y.Shape())
	y.AsFloat32()[0] = 99
	assert.Equal(t, float32(1), x.AsFloat32()[0])
	assert.Panics(t, func() { backend.Reshape(x, tensor.Shape{4, 2}) })
}

func TestSumDim(t *testing.T) {
	backend := New()
	x := rawFrom(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)

	rows := backend.SumDim(x, 1, false)
	assert.Equal(t, tensor.Shape{2}, rows.Shape())
	assert.Equal(t, []float32{6, 15}, rows.AsFloat32())

	cols := backend.SumDim(x, 0, true)
	assert.Equal(t, tensor.Shape{1, 3}, cols.Shape())
	assert.Equal(t, []float32{5, 7, 9}, cols.AsFloat32())
}

func TestSoftmax_ChannelAxis(t *testing.T) {
	backend := New()
	// [1, 3, 1, 2]: two pixels, three classes.
	x := rawFrom(t, []float32{1, 0, 2, 0, 3, 0}, 1, 3, 1, 2)

	y := backend.Softmax(x, 1).AsFloat32()

	for px := 0; px < 2; px++ {
		var sum float32
		for c := 0; c < 3; c++ {
			sum += y[c*2+px]
		}
		assert.InDelta(t, 1.0, sum, 1e-6)
	}
	e := []float64{math.Exp(1), math.Exp(2), math.Exp(3)}
	total := e[0] + e[1] + e[2]
	assert.InDelta(t, e[2]/total, y[4], 1e-6)
	assert.InDelta(t, 1.0/3.0, y[1], 1e-6)
}

func TestSoftmax_LargeLogitsStable(t *testing.T) {
	backend := New()
	x := rawFrom(t, []float32{1000, 1001}, 1, 2)
	y := backend.Softmax(x, 1).AsFloat32()
	assert.False(t, math.IsNaN(float64(y[0])))
	assert.InDelta(t, 1/(1+math.E), y[0], 1e-6)
}
