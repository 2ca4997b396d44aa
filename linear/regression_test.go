package linear

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/shrubheight/cvtune/core/model"
	"github.com/shrubheight/cvtune/pkg/errors"
)

func TestLinearRegression_Fit(t *testing.T) {
	// y = 2*x1 - 3*x2 + 5
	X := mat.NewDense(5, 2, []float64{
		1, 1,
		2, 0,
		3, 4,
		4, 2,
		5, 7,
	})
	yv := make([]float64, 5)
	for i := range yv {
		yv[i] = 2*X.At(i, 0) - 3*X.At(i, 1) + 5
	}
	y := model.ColumnMatrix(yv)

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	w := lr.GetWeights()
	assert.InDelta(t, 2.0, w[0], 1e-9)
	assert.InDelta(t, -3.0, w[1], 1e-9)
	assert.InDelta(t, 5.0, lr.Intercept, 1e-9)
	assert.Equal(t, 2, lr.Rank)

	score, err := lr.Score(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-12)
}

func TestLinearRegression_CollinearFeatures(t *testing.T) {
	// second column is 2x the first; minimum-norm solution splits the weight
	X := mat.NewDense(4, 2, []float64{1, 2, 2, 4, 3, 6, 4, 8})
	y := model.ColumnMatrix([]float64{5, 10, 15, 20})

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))
	assert.Equal(t, 1, lr.Rank)

	pred, err := lr.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		assert.InDelta(t, y.At(i, 0), pred.At(i, 0), 1e-9)
	}
	w := lr.GetWeights()
	assert.InDelta(t, 1.0, w[0], 1e-9)
	assert.InDelta(t, 2.0, w[1], 1e-9)
}

func TestLinearRegression_NoIntercept(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := model.ColumnMatrix([]float64{2, 4, 6})

	lr := NewLinearRegression(WithFitIntercept(false))
	require.NoError(t, lr.Fit(X, y))
	assert.InDelta(t, 2.0, lr.GetWeights()[0], 1e-12)
	assert.Equal(t, 0.0, lr.Intercept)
}

func TestLinearRegression_Errors(t *testing.T) {
	lr := NewLinearRegression()

	_, err := lr.Predict(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	err = lr.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), model.ColumnMatrix([]float64{1, 2}))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))

	assert.Error(t, lr.SetParams(map[string]interface{}{"alpha": 1.0}))
	assert.Error(t, lr.SetParams(map[string]interface{}{"fit_intercept": "yes"}))
	require.NoError(t, lr.SetParams(map[string]interface{}{"fit_intercept": false}))
	assert.Equal(t, false, lr.GetParams()["fit_intercept"])
}
