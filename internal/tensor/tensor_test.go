package tensor_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/colorize/internal/backend/cpu"
	"github.com/born-ml/colorize/internal/tensor"
)

func TestFromSlice(t *testing.T) {
	backend := cpu.New()
	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, x.Shape())
	assert.Equal(t, tensor.Float32, x.DType())
	assert.Equal(t, float32(6), x.At(1, 2))

	labels, err := tensor.FromSlice([]int64{7, 8}, tensor.Shape{2}, backend)
	require.NoError(t, err)
	assert.Equal(t, tensor.Int64, labels.DType())
	assert.Equal(t, []int64{7, 8}, labels.Data())

	_, err = tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{2, 2}, backend)
	require.Error(t, err)
}

func TestTensor_SetAndClone(t *testing.T) {
	x := tensor.Zeros[float32](tensor.Shape{2, 2}, cpu.New())
	x.Set(3, 1, 0)
	c := x.Clone()
	x.Set(5, 1, 0)
	assert.Equal(t, float32(3), c.At(1, 0))
	assert.Equal(t, float32(5), x.At(1, 0))

	assert.Panics(t, func() { x.At(2, 0) })
	assert.Panics(t, func() { x.At(0) })
	assert.Panics(t, func() { x.Item() })
}

func TestCreation(t *testing.T) {
	backend := cpu.New()
	assert.Equal(t, []float32{1, 1, 1}, tensor.Ones[float32](tensor.Shape{3}, backend).Data())
	assert.Equal(t, []int64{4, 4}, tensor.Full[int64](tensor.Shape{2}, 4, backend).Data())

	a := tensor.Uniform(tensor.Shape{100}, -0.5, 0.5, rand.New(rand.NewSource(1)), backend)
	b := tensor.Uniform(tensor.Shape{100}, -0.5, 0.5, rand.New(rand.NewSource(1)), backend)
	assert.Equal(t, a.Data(), b.Data(), "same seed, same values")
	for _, v := range a.Data() {
		assert.GreaterOrEqual(t, v, float32(-0.5))
		assert.Less(t, v, float32(0.5))
	}
}

func TestRaw_ViewShareAndCloneDetach(t *testing.T) {
	r := tensor.MustNewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
	v := r.View(tensor.Shape{6})
	c := r.Clone()
	v.AsFloat32()[4] = 9

	assert.Equal(t, float32(9), r.AsFloat32()[4])
	assert.Zero(t, c.AsFloat32()[4])
	assert.Equal(t, []int{3, 1}, r.Strides())
	assert.Panics(t, func() { r.View(tensor.Shape{5}) })
	assert.Panics(t, func() { r.AsInt64() })
}

func TestRaw_CopyFrom(t *testing.T) {
	dst := tensor.MustNewRaw(tensor.Shape{2}, tensor.Float32, tensor.CPU)
	src := tensor.MustNewRaw(tensor.Shape{2}, tensor.Float32, tensor.CPU)
	src.Fill(2)
	require.NoError(t, dst.CopyFrom(src))
	assert.Equal(t, []float32{2, 2}, dst.AsFloat32())

	require.Error(t, dst.CopyFrom(tensor.MustNewRaw(tensor.Shape{3}, tensor.Float32, tensor.CPU)))
	require.Error(t, dst.CopyFrom(tensor.MustNewRaw(tensor.Shape{2}, tensor.Int64, tensor.CPU)))
}

func TestShape(t *testing.T) {
	s := tensor.Shape{2, 3, 4}
	assert.Equal(t, 24, s.NumElements())
	assert.Equal(t, []int{12, 4, 1}, s.ComputeStrides())
	outer, size, inner := s.Split(1)
	assert.Equal(t, []int{2, 3, 4}, []int{outer, size, inner})
	assert.Error(t, tensor.Shape{2, 0}.Validate())
	assert.True(t, s.Equal(tensor.Shape{2, 3, 4}))
	assert.False(t, s.Equal(tensor.Shape{2, 3}))
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		a, b      tensor.Shape
		want      tensor.Shape
		broadcast bool
		err       bool
	}{
		{tensor.Shape{3, 5}, tensor.Shape{3, 5}, tensor.Shape{3, 5}, false, false},
		{tensor.Shape{3, 1}, tensor.Shape{3, 5}, tensor.Shape{3, 5}, true, false},
		{tensor.Shape{2, 4, 8, 8}, tensor.Shape{1, 4, 1, 1}, tensor.Shape{2, 4, 8, 8}, true, false},
		{tensor.Shape{5}, tensor.Shape{2, 5}, tensor.Shape{2, 5}, true, false},
		{tensor.Shape{3, 4}, tensor.Shape{3, 5}, nil, false, true},
	}
	for _, tt := range tests {
		got, broadcast, err := tensor.BroadcastShapes(tt.a, tt.b)
		if tt.err {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.broadcast, broadcast)
	}
}

func TestConvSizes(t *testing.T) {
	// Strided 3x3 halves, dilated 3x3 with matching padding keeps the size.
	assert.Equal(t, 16, tensor.ConvOutputSize(32, 3, 2, 1, 1))
	assert.Equal(t, 32, tensor.ConvOutputSize(32, 3, 1, 2, 2))
	// Transposed 4x4 stride 2 padding 1 doubles.
	assert.Equal(t, 64, tensor.ConvTransposeOutputSize(32, 4, 2, 1, 1))
}

func TestDataTypeTags(t *testing.T) {
	for _, dt := range []tensor.DataType{tensor.Float32, tensor.Float64, tensor.Int32, tensor.Int64} {
		got, ok := tensor.ParseDataType(dt.Tag())
		require.True(t, ok, dt.String())
		assert.Equal(t, dt, got)
	}
	_, ok := tensor.ParseDataType("BF16")
	assert.False(t, ok)
}
