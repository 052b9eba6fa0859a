package kwargs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgs_Float(t *testing.T) {
	a := Args{"lr": 0.01, "momentum": int64(0), "name": "x"}

	lr, err := a.Float("lr", 1)
	require.NoError(t, err)
	assert.Equal(t, 0.01, lr)

	m, err := a.Float("momentum", 0.9)
	require.NoError(t, err)
	assert.Equal(t, 0.0, m)

	def, err := a.Float("weight_decay", 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.5, def)

	_, err = a.Float("name", 0)
	assert.ErrorIs(t, err, ErrBadArgument)
}

func TestArgs_Floats(t *testing.T) {
	a := Args{"betas": []any{0.9, int64(1)}, "bad": []any{0.9}}

	betas, err := a.Floats("betas", 2, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.9, 1}, betas)

	_, err = a.Floats("bad", 2, nil)
	assert.ErrorIs(t, err, ErrBadArgument)
}

func TestArgs_Check(t *testing.T) {
	a := Args{"lr": 0.1, "nesterov": true, "foo": 1}
	err := a.Check("lr", "momentum")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadArgument)
	assert.Contains(t, err.Error(), "foo, nesterov")

	assert.NoError(t, Args{"lr": 0.1}.Check("lr"))
	assert.NoError(t, Args(nil).Check("lr"))
}

func TestArgs_StringAndBool(t *testing.T) {
	a := Args{"reduction": "sum", "amsgrad": false}

	r, err := a.String("reduction", "mean")
	require.NoError(t, err)
	assert.Equal(t, "sum", r)

	b, err := a.Bool("amsgrad", true)
	require.NoError(t, err)
	assert.False(t, b)

	_, err = a.Bool("reduction", false)
	assert.ErrorIs(t, err, ErrBadArgument)
}
