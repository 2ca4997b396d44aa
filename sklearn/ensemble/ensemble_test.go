package ensemble

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/shrubheight/cvtune/core/model"
	"github.com/shrubheight/cvtune/pkg/errors"
)

// regressionData は y = 3·x0 + sin(x1) のデータ
func regressionData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x0 := float64(i%10) / 10
		x1 := float64((i*7)%13) / 2
		X.Set(i, 0, x0)
		X.Set(i, 1, x1)
		X.Set(i, 2, float64((i*3)%5))
		y.Set(i, 0, 3*x0+math.Sin(x1))
	}
	return X, y
}

// blobs は1次元に並んだk個のクラスタ
func blobs(k, perClass int) (*mat.Dense, *mat.Dense) {
	n := k * perClass
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for c := 0; c < k; c++ {
		for j := 0; j < perClass; j++ {
			i := c*perClass + j
			X.Set(i, 0, float64(c*10)+float64(j%5)*0.3)
			X.Set(i, 1, float64(j%3))
			y.Set(i, 0, float64(c+1))
		}
	}
	return X, y
}

func TestGradientBoostingRegressor_Fit(t *testing.T) {
	X, y := regressionData(60)

	gbm := NewGradientBoostingRegressor()
	require.NoError(t, gbm.Fit(X, y))
	assert.Equal(t, 100, gbm.NStages())

	score, err := gbm.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.95)

	imp := gbm.GetFeatureImportances()
	require.Len(t, imp, 3)
	assert.Greater(t, imp[0]+imp[1], imp[2])
}

func TestGradientBoostingRegressor_LearningRateShrinks(t *testing.T) {
	X, y := regressionData(40)

	slow := NewGradientBoostingRegressor(WithNEstimators(5), WithLearningRate(0.01))
	fast := NewGradientBoostingRegressor(WithNEstimators(5), WithLearningRate(0.5))
	require.NoError(t, slow.Fit(X, y))
	require.NoError(t, fast.Fit(X, y))

	s1, err := slow.Score(X, y)
	require.NoError(t, err)
	s2, err := fast.Score(X, y)
	require.NoError(t, err)
	assert.Less(t, s1, s2)
}

func TestGradientBoostingRegressor_MaxLeafNodes(t *testing.T) {
	X, y := regressionData(40)
	gbm := NewGradientBoostingRegressor(WithNEstimators(3), WithMaxLeafNodes(2))
	require.NoError(t, gbm.Fit(X, y))
	for _, st := range gbm.stages {
		assert.LessOrEqual(t, st.NLeaves(), 2)
	}
}

func TestGradientBoostingClassifier_Binary(t *testing.T) {
	X, y := blobs(2, 20)

	gbm := NewGradientBoostingClassifier(WithNEstimators(20))
	require.NoError(t, gbm.Fit(X, y))

	acc, err := gbm.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, acc)
	assert.Equal(t, []float64{1, 2}, gbm.Classes())

	proba, err := gbm.PredictProba(X)
	require.NoError(t, err)
	for i := 0; i < 40; i++ {
		assert.InDelta(t, 1.0, proba.At(i, 0)+proba.At(i, 1), 1e-9)
	}
}

func TestGradientBoostingClassifier_Multiclass(t *testing.T) {
	X, y := blobs(3, 15)

	gbm := NewGradientBoostingClassifier(WithNEstimators(20))
	require.NoError(t, gbm.Fit(X, y))

	pred, err := gbm.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(y, pred))

	proba, err := gbm.PredictProba(mat.NewDense(1, 2, []float64{20.5, 1}))
	require.NoError(t, err)
	assert.Greater(t, proba.At(0, 2), proba.At(0, 0))
	assert.Greater(t, proba.At(0, 2), proba.At(0, 1))
}

func TestRandomForestRegressor_Fit(t *testing.T) {
	X, y := regressionData(60)

	rf := NewRandomForestRegressor(WithNEstimators(30), WithRandomState(1))
	require.NoError(t, rf.Fit(X, y))
	assert.Len(t, rf.Trees(), 30)

	score, err := rf.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.8)

	imp := rf.GetFeatureImportances()
	var sum float64
	for _, v := range imp {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestRandomForestRegressor_Deterministic(t *testing.T) {
	X, y := regressionData(40)
	fit := func() mat.Matrix {
		rf := NewRandomForestRegressor(WithNEstimators(10), WithMaxLeafNodes(8), WithRandomState(42))
		require.NoError(t, rf.Fit(X, y))
		pred, err := rf.Predict(X)
		require.NoError(t, err)
		return pred
	}
	assert.True(t, mat.Equal(fit(), fit()))
}

func TestRandomForestRegressor_NoBootstrapMatchesSingleTree(t *testing.T) {
	X, y := regressionData(30)
	// 全特徴量・ブートストラップなしでは全ての木が同一
	rf := NewRandomForestRegressor(WithNEstimators(4), WithBootstrap(false))
	require.NoError(t, rf.Fit(X, y))

	score, err := rf.Score(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestRandomForestClassifier_Fit(t *testing.T) {
	X, y := blobs(3, 20)

	rf := NewRandomForestClassifier(WithNEstimators(25))
	require.NoError(t, rf.Fit(X, y))

	acc, err := rf.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, acc, 0.95)
	assert.Equal(t, "sqrt", rf.GetParams()["max_features"])

	proba, err := rf.PredictProba(X)
	require.NoError(t, err)
	_, c := proba.Dims()
	assert.Equal(t, 3, c)
}

func TestEnsemble_SetParams(t *testing.T) {
	gbm := NewGradientBoostingRegressor()
	require.NoError(t, gbm.SetParams(map[string]interface{}{
		"n_estimators":   12,
		"learning_rate":  0.05,
		"max_leaf_nodes": 7,
	}))
	params := gbm.GetParams()
	assert.Equal(t, 12, params["n_estimators"])
	assert.Equal(t, 0.05, params["learning_rate"])
	assert.Equal(t, 7, params["max_leaf_nodes"])
	assert.Equal(t, 3, params["max_depth"])

	assert.Error(t, gbm.SetParams(map[string]interface{}{"bootstrap": true}))
	assert.Error(t, gbm.SetParams(map[string]interface{}{"n_estimators": 0}))

	rf := NewRandomForestRegressor()
	require.NoError(t, rf.SetParams(map[string]interface{}{"bootstrap": false, "n_estimators": 3.0}))
	assert.Equal(t, false, rf.GetParams()["bootstrap"])
	assert.Error(t, rf.SetParams(map[string]interface{}{"learning_rate": 0.1}))
}

func TestEnsemble_NotFitted(t *testing.T) {
	X := mat.NewDense(1, 2, []float64{1, 2})
	var nf *errors.NotFittedError

	estimators := []model.Estimator{
		NewGradientBoostingRegressor(),
		NewGradientBoostingClassifier(),
		NewRandomForestRegressor(),
		NewRandomForestClassifier(),
	}
	for _, e := range estimators {
		_, err := e.Predict(X)
		assert.True(t, errors.As(err, &nf))
	}
}
