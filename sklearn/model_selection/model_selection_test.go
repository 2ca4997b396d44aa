package model_selection

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/shrubheight/cvtune/core/model"
	"github.com/shrubheight/cvtune/linear"
	"github.com/shrubheight/cvtune/sklearn/neighbors"
	"github.com/shrubheight/cvtune/sklearn/tree"
)

func TestKFold_Partition(t *testing.T) {
	tests := []struct {
		name    string
		n, k    int
		shuffle bool
	}{
		{"even", 100, 5, false},
		{"remainder", 23, 10, false},
		{"shuffled", 37, 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			folds, err := NewKFold(tt.k, tt.shuffle, 42).Split(tt.n)
			require.NoError(t, err)
			require.Len(t, folds, tt.k)

			seen := make([]int, tt.n)
			minSize, maxSize := tt.n, 0
			for _, f := range folds {
				assert.Equal(t, tt.n, len(f.TrainIndices)+len(f.TestIndices))
				assert.True(t, sort.IntsAreSorted(f.TestIndices))
				assert.True(t, sort.IntsAreSorted(f.TrainIndices))

				test := make(map[int]bool)
				for _, i := range f.TestIndices {
					test[i] = true
					seen[i]++
				}
				for _, i := range f.TrainIndices {
					assert.False(t, test[i])
				}
				if len(f.TestIndices) < minSize {
					minSize = len(f.TestIndices)
				}
				if len(f.TestIndices) > maxSize {
					maxSize = len(f.TestIndices)
				}
			}
			for i, c := range seen {
				assert.Equal(t, 1, c, "row %d", i)
			}
			assert.LessOrEqual(t, maxSize-minSize, 1)
		})
	}
}

func TestKFold_UnshuffledIsContiguous(t *testing.T) {
	folds, err := NewKFold(3, false, 0).Split(7)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, folds[0].TestIndices)
	assert.Equal(t, []int{3, 4}, folds[1].TestIndices)
	assert.Equal(t, []int{5, 6}, folds[2].TestIndices)
}

func TestKFold_ShuffleIsSeeded(t *testing.T) {
	a, err := NewKFold(5, true, 42).Split(50)
	require.NoError(t, err)
	b, err := NewKFold(5, true, 42).Split(50)
	require.NoError(t, err)
	c, err := NewKFold(5, true, 7).Split(50)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestKFold_Errors(t *testing.T) {
	_, err := NewKFold(1, false, 0).Split(10)
	assert.Error(t, err)
	_, err = NewKFold(5, false, 0).Split(3)
	assert.Error(t, err)
}

func TestDistributions(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))

	ri := RandInt{Low: 2, High: 20}
	lu := LogUniform{Low: 1e-4, High: 1}
	for i := 0; i < 1000; i++ {
		v := ri.Sample(rng).(int)
		assert.GreaterOrEqual(t, v, 2)
		assert.Less(t, v, 20)

		f := lu.Sample(rng).(float64)
		assert.GreaterOrEqual(t, f, 1e-4)
		assert.LessOrEqual(t, f, 1.0)
	}
	assert.Equal(t, "randint(2, 20)", ri.String())
	assert.Equal(t, 5, RandInt{Low: 5, High: 5}.Sample(rng))

	ch := Choice{"a", "b"}
	assert.Contains(t, []interface{}{"a", "b"}, ch.Sample(rng))
}

func TestSearchSpace_SampleIsDeterministic(t *testing.T) {
	space := SearchSpace{
		"n_estimators":   RandInt{Low: 1, High: 500},
		"max_leaf_nodes": RandInt{Low: 2, High: 100},
		"learning_rate":  LogUniform{Low: 0.01, High: 1},
	}
	assert.Equal(t, []string{"learning_rate", "max_leaf_nodes", "n_estimators"}, space.Keys())

	a := space.Sample(rand.New(rand.NewPCG(3, 3)))
	b := space.Sample(rand.New(rand.NewPCG(3, 3)))
	assert.Equal(t, a, b)
}

func linearData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x0 := float64(i)
		x1 := math.Sin(float64(i))
		X.Set(i, 0, x0)
		X.Set(i, 1, x1)
		y.Set(i, 0, 2*x0-x1+1)
	}
	return X, y
}

func TestRandomizedSearchCV_EmptySpace(t *testing.T) {
	X, y := linearData(30)
	rs := NewRandomizedSearchCV(func() model.Estimator { return linear.NewLinearRegression() }, SearchSpace{})

	require.NoError(t, rs.Fit(context.Background(), X, y))
	assert.Len(t, rs.CVResults, 1)
	assert.Empty(t, rs.BestParams)
	assert.InDelta(t, 1.0, rs.BestScore, 1e-9)
	require.NotNil(t, rs.BestEstimator)
}

func TestRandomizedSearchCV_PicksBestAndIsDeterministic(t *testing.T) {
	X, y := linearData(40)
	factory := func() model.Estimator { return tree.NewDecisionTreeRegressor() }
	space := SearchSpace{
		"max_depth":        RandInt{Low: 1, High: 6},
		"min_samples_leaf": RandInt{Low: 1, High: 10},
	}

	run := func() *RandomizedSearchCV {
		rs := NewRandomizedSearchCV(factory, space)
		rs.NIter = 12
		rs.Seed = 5
		require.NoError(t, rs.Fit(context.Background(), X, y))
		return rs
	}
	a, b := run(), run()

	assert.Equal(t, a.BestParams, b.BestParams)
	assert.Equal(t, a.BestIndex, b.BestIndex)
	for i, c := range a.CVResults {
		assert.LessOrEqual(t, c.MeanScore, a.BestScore, "candidate %d", i)
		assert.Len(t, c.Scores, 5)
	}
	// 同点の場合は最初の候補が選ばれる
	for i := 0; i < a.BestIndex; i++ {
		assert.Less(t, a.CVResults[i].MeanScore, a.BestScore)
	}
}

func TestRandomizedSearchCV_FailedCandidatesRankLast(t *testing.T) {
	X, y := linearData(30)
	factory := func() model.Estimator { return neighbors.NewKNeighborsRegressor() }
	// 内側の学習データは24行なので、n_neighbors > 24 は学習に失敗する
	space := SearchSpace{"n_neighbors": RandInt{Low: 1, High: 60}}

	var calls int
	rs := NewRandomizedSearchCV(factory, space)
	rs.NIter = 20
	rs.NJobs = 1
	rs.Progress = func(done, total int) {
		calls++
		assert.Equal(t, 20, total)
	}
	require.NoError(t, rs.Fit(context.Background(), X, y))
	assert.Equal(t, 20, calls)

	var failed int
	for _, c := range rs.CVResults {
		if math.IsNaN(c.MeanScore) {
			failed++
		}
	}
	assert.Greater(t, failed, 0)
	assert.False(t, math.IsNaN(rs.BestScore))
	assert.LessOrEqual(t, rs.BestParams["n_neighbors"].(int), 24)
}

func TestRandomizedSearchCV_Cancelled(t *testing.T) {
	X, y := linearData(30)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rs := NewRandomizedSearchCV(func() model.Estimator { return tree.NewDecisionTreeRegressor() },
		SearchSpace{"max_depth": RandInt{Low: 1, High: 5}})
	assert.ErrorIs(t, rs.Fit(ctx, X, y), context.Canceled)
}
