package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/shrubheight/cvtune/pkg/errors"
)

func TestBaseEstimator_CheckPredict(t *testing.T) {
	var b BaseEstimator

	err := b.CheckPredict("KNeighborsRegressor", 3)
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))

	b.SetFitted(3)
	assert.True(t, b.IsFitted())
	assert.NoError(t, b.CheckPredict("KNeighborsRegressor", 3))

	err = b.CheckPredict("KNeighborsRegressor", 2)
	var dim *errors.DimensionError
	require.True(t, errors.As(err, &dim))
	assert.Equal(t, 3, dim.Expected)

	b.Reset()
	assert.False(t, b.IsFitted())
	assert.Equal(t, 0, b.NFeatures())
}

func TestIntParam(t *testing.T) {
	v, err := IntParam("max_depth", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	v, err = IntParam("max_depth", 7.0)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = IntParam("max_depth", 7.5)
	assert.Error(t, err)
	_, err = IntParam("max_depth", "deep")
	assert.Error(t, err)
}

func TestFloatParam(t *testing.T) {
	v, err := FloatParam("C", 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	_, err = FloatParam("C", "big")
	assert.Error(t, err)
}

func TestMatrixHelpers(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})

	sub := SelectRows(X, []int{2, 0})
	assert.Equal(t, []float64{5, 6, 1, 2}, sub.RawMatrix().Data)

	assert.Equal(t, []float64{1, 3, 5}, ColumnVector(X))
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}, {5, 6}}, Rows(X))

	_, _, err := CheckXY("Fit", X, ColumnMatrix([]float64{1, 2}))
	assert.Error(t, err)
	r, c, err := CheckXY("Fit", X, ColumnMatrix([]float64{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
}
