package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestRank(t *testing.T) {
	tests := []struct {
		name string
		x    []float64
		want []float64
	}{
		{"distinct", []float64{3, 1, 2}, []float64{3, 1, 2}},
		{"ties", []float64{10, 20, 20, 5}, []float64{2, 3.5, 3.5, 1}},
		{"all equal", []float64{7, 7, 7}, []float64{2, 2, 2}},
		{"empty", nil, []float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Rank(tt.x))
		})
	}
}

func TestSpearman(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	// 単調変換は順位相関を変えない
	assert.InDelta(t, 1.0, Spearman(x, []float64{1, 8, 27, 64, 125}), 1e-12)
	assert.InDelta(t, -1.0, Spearman(x, []float64{5, 4, 3, 2, 1}), 1e-12)
	assert.True(t, math.IsNaN(Spearman(x, []float64{2, 2, 2, 2, 2})))
}

func TestSpearmanMatrix(t *testing.T) {
	X := mat.NewDense(5, 3, []float64{
		1, 10, 4,
		2, 20, 4,
		3, 30, 4,
		4, 40, 4,
		5, 45, 4,
	})
	corr := SpearmanMatrix(X)
	assert.Equal(t, 1.0, corr.At(0, 0))
	assert.InDelta(t, 1.0, corr.At(0, 1), 1e-12)
	assert.True(t, math.IsNaN(corr.At(0, 2)))

	abs := AbsCorrelation(corr)
	assert.Equal(t, 0.0, abs.At(0, 2))
	assert.Equal(t, 1.0, abs.At(2, 2))
	assert.Equal(t, abs.At(1, 0), abs.At(0, 1))
}

func TestSpearman_PairwiseComplete(t *testing.T) {
	x := []float64{1, 2, math.NaN(), 4, 5}
	y := []float64{2, 4, 100, 8, math.NaN()}
	assert.InDelta(t, 1.0, Spearman(x, y), 1e-12)
	assert.True(t, math.IsNaN(Spearman([]float64{1, math.NaN()}, []float64{1, 2})))
}
