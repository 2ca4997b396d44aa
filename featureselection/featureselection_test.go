package featureselection

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/shrubheight/cvtune/dataset"
	"github.com/shrubheight/cvtune/pkg/errors"
)

// scaledPairTable は f1 = 2·f0 のペアと独立な3列、f2に従う目的変数を持つ100行のテーブル
func scaledPairTable(t *testing.T) *dataset.Table {
	t.Helper()
	rng := rand.New(rand.NewPCG(1, 2))
	n := 100
	cols := make([][]float64, 6)
	for j := range cols {
		cols[j] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		cols[0][i] = rng.NormFloat64()
		cols[1][i] = 2 * cols[0][i]
		cols[2][i] = rng.NormFloat64()
		cols[3][i] = rng.NormFloat64()
		cols[4][i] = rng.NormFloat64()
		cols[5][i] = cols[2][i] + 0.1*rng.NormFloat64()
	}
	tbl, err := dataset.NewTable([]string{"f0", "f1", "f2", "f3", "f4", "y"}, cols)
	require.NoError(t, err)
	return tbl
}

var features = []string{"f0", "f1", "f2", "f3", "f4"}

func TestClusterAndSelect_ScaledPair(t *testing.T) {
	tbl := scaledPairTable(t)

	res, err := ClusterAndSelect(tbl, features, "y", DefaultThreshold)
	require.NoError(t, err)

	require.Len(t, res.Clusters, 4)
	assert.Equal(t, Cluster{ID: 1, Features: []string{"f0", "f1"}}, res.Clusters[0])
	assert.Equal(t, []string{"f2"}, res.Clusters[1].Features)
	// 同じ相関のペアからは先に並んでいる特徴量が選ばれる
	assert.Equal(t, []string{"f0", "f2", "f3", "f4"}, res.Selected)
	assert.Equal(t, 1, res.ClusterOf("f1").ID)
	assert.Nil(t, res.ClusterOf("y"))
}

func TestClusterAndSelect_Partition(t *testing.T) {
	tbl := scaledPairTable(t)

	for _, th := range []float64{0.1, 0.4, 0.9, 1.5, 10} {
		res, err := ClusterAndSelect(tbl, features, "y", th)
		require.NoError(t, err)

		seen := map[string]int{}
		for k, c := range res.Clusters {
			assert.Equal(t, k+1, c.ID)
			assert.NotEmpty(t, c.Features)
			for _, f := range c.Features {
				seen[f]++
			}
		}
		assert.Len(t, seen, len(features))
		for _, f := range features {
			assert.Equal(t, 1, seen[f])
		}
		assert.Len(t, res.Selected, len(res.Clusters))

		// 選ばれた特徴量はクラスタ内で目的変数との相関が最大
		for k, c := range res.Clusters {
			sel := indexOf(features, res.Selected[k])
			for _, f := range c.Features {
				assert.GreaterOrEqual(t, res.TargetCorrelation[sel], res.TargetCorrelation[indexOf(features, f)])
			}
		}
	}

	all, err := ClusterAndSelect(tbl, features, "y", 10)
	require.NoError(t, err)
	assert.Len(t, all.Clusters, 1)
	assert.Equal(t, []string{"f2"}, all.Selected)
}

func TestClusterAndSelect_ZeroThresholdKeepsOrder(t *testing.T) {
	tbl := scaledPairTable(t)
	distinct := []string{"f2", "f0", "f4", "f3"}

	res, err := ClusterAndSelect(tbl, distinct, "y", 0)
	require.NoError(t, err)
	require.Len(t, res.Clusters, 4)
	for k, c := range res.Clusters {
		assert.Equal(t, []string{distinct[k]}, c.Features)
	}
	assert.Equal(t, distinct, res.Selected)
}

func TestClusterAndSelect_Deterministic(t *testing.T) {
	tbl := scaledPairTable(t)
	a, err := ClusterAndSelect(tbl, features, "y", 0.4)
	require.NoError(t, err)
	b, err := ClusterAndSelect(tbl, features, "y", 0.4)
	require.NoError(t, err)
	assert.Equal(t, a.Clusters, b.Clusters)
	assert.Equal(t, a.Selected, b.Selected)
}

func TestClusterAndSelect_ConstantFeature(t *testing.T) {
	tbl, err := dataset.NewTable([]string{"a", "c", "y"}, [][]float64{
		{1, 2, 3, 4, 5},
		{7, 7, 7, 7, 7},
		{2, 1, 4, 3, 5},
	})
	require.NoError(t, err)

	res, err := ClusterAndSelect(tbl, []string{"a", "c"}, "y", 0.4)
	require.NoError(t, err)
	// 定数列は無相関として扱われる
	assert.Equal(t, 0.0, res.Correlation.At(0, 1))
	assert.Equal(t, 0.0, res.TargetCorrelation[1])
	assert.Len(t, res.Clusters, 2)
}

func TestClusterAndSelect_Errors(t *testing.T) {
	tbl := scaledPairTable(t)

	_, err := ClusterAndSelect(tbl, nil, "y", 0.4)
	var dataErr *errors.DataError
	assert.True(t, errors.As(err, &dataErr))

	_, err = ClusterAndSelect(tbl, []string{"f0", "nope"}, "y", 0.4)
	require.True(t, errors.As(err, &dataErr))
	assert.Equal(t, []string{"nope"}, dataErr.Missing)

	_, err = ClusterAndSelect(tbl, features, "height", 0.4)
	require.True(t, errors.As(err, &dataErr))
	assert.Equal(t, []string{"height"}, dataErr.Missing)

	_, err = ClusterAndSelect(tbl, features, "y", -1)
	assert.Error(t, err)
}

func TestCalculateVIF(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	n := 60
	a := make([]float64, n)
	b := make([]float64, n)
	c := make([]float64, n)
	for i := 0; i < n; i++ {
		a[i] = rng.NormFloat64()
		b[i] = a[i] + 0.01*rng.NormFloat64()
		c[i] = rng.NormFloat64()
	}
	tbl, err := dataset.NewTable([]string{"a", "b", "c"}, [][]float64{a, b, c})
	require.NoError(t, err)

	res, err := CalculateVIF(tbl, []string{"a", "b", "c"}, DefaultVIFThreshold)
	require.NoError(t, err)

	require.Len(t, res.Dropped, 1)
	assert.Contains(t, []string{"a", "b"}, res.Dropped[0].Feature)
	assert.Greater(t, res.Dropped[0].VIF, DefaultVIFThreshold)
	assert.Len(t, res.Remaining, 2)
	assert.Contains(t, res.Remaining, "c")
	for _, v := range res.VIF {
		assert.LessOrEqual(t, v, DefaultVIFThreshold)
		assert.GreaterOrEqual(t, v, 1.0)
	}
}

func TestCalculateVIF_SingleFeature(t *testing.T) {
	tbl, err := dataset.NewTable([]string{"a"}, [][]float64{{1, 2, 3}})
	require.NoError(t, err)
	res, err := CalculateVIF(tbl, []string{"a"}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Remaining)
	assert.Equal(t, []float64{1}, res.VIF)
}

func TestPCAClusterTransform(t *testing.T) {
	tbl := scaledPairTable(t)
	clusters := []Cluster{
		{ID: 1, Features: []string{"f0", "f1"}},
		{ID: 2, Features: []string{"f3"}},
	}

	out, err := PCAClusterTransform(tbl, clusters)
	require.NoError(t, err)
	r, c := out.Dims()
	assert.Equal(t, 100, r)
	assert.Equal(t, 2, c)

	f0, err := tbl.Column("f0")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, stat.Correlation(mat.Col(nil, 0, out), f0, nil), 1e-9)

	// 1列のクラスタはスケーリングして中心化した列そのもの
	f3, err := tbl.Column("f3")
	require.NoError(t, err)
	lo, hi := minMax(f3)
	col := mat.Col(nil, 1, out)
	m := stat.Mean(f3, nil)
	for i := range f3 {
		assert.InDelta(t, (f3[i]-m)/(hi-lo), col[i], 1e-9)
	}

	_, err = PCAClusterTransform(tbl, nil)
	assert.Error(t, err)
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func minMax(v []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range v {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi
}
