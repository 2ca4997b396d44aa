package inspection

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/shrubheight/cvtune/linear"
	"github.com/shrubheight/cvtune/pkg/errors"
)

func fitted(t *testing.T) (*linear.LinearRegression, *mat.Dense, *mat.Dense) {
	n := 50
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x0 := float64(i)
		x1 := math.Cos(float64(i))
		X.Set(i, 0, x0)
		X.Set(i, 1, x1)
		X.Set(i, 2, float64(i%3))
		y.Set(i, 0, 2*x0+x1)
	}
	lr := linear.NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))
	return lr, X, y
}

func TestPermutationImportance_RanksInformativeFeatures(t *testing.T) {
	lr, X, y := fitted(t)

	res, err := PermutationImportance(context.Background(), lr, X, y, 10, 0)
	require.NoError(t, err)

	r, c := res.Importances.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 10, c)
	assert.InDelta(t, 1.0, res.Baseline, 1e-9)

	assert.Greater(t, res.ImportancesMean[0], res.ImportancesMean[1])
	assert.Greater(t, res.ImportancesMean[1], 0.0)
	// 係数がほぼ0の特徴量は重要度もほぼ0
	assert.InDelta(t, 0.0, res.ImportancesMean[2], 1e-6)
}

func TestPermutationImportance_Deterministic(t *testing.T) {
	lr, X, y := fitted(t)

	a, err := PermutationImportance(context.Background(), lr, X, y, 5, 0)
	require.NoError(t, err)
	b, err := PermutationImportance(context.Background(), lr, X, y, 5, 0)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a.Importances, b.Importances))
}

func TestPermutationImportance_NaNTarget(t *testing.T) {
	lr, X, y := fitted(t)
	yn := mat.DenseCopyOf(y)
	yn.Set(3, 0, math.NaN())

	_, err := PermutationImportance(context.Background(), lr, X, yn, 10, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingTarget))
}

func TestPermutationImportance_NotFitted(t *testing.T) {
	_, X, y := fitted(t)
	_, err := PermutationImportance(context.Background(), linear.NewLinearRegression(), X, y, 10, 0)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}
