// Package stats provides rank statistics used by feature selection.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/shrubheight/cvtune/core/parallel"
)

// Rank returns the 1-based ranks of x; tied values get the average of the
// ranks they span.
func Rank(x []float64) []float64 {
	n := len(x)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i + 1
		for j < n && x[idx[j]] == x[idx[i]] {
			j++
		}
		// 同順位は (i+1 + j) / 2 の平均順位
		avg := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		i = j
	}
	return ranks
}

// Spearman returns the Spearman rank correlation of x and y over the pairs
// where both values are finite. It is NaN when either input is constant or
// fewer than two pairs remain.
func Spearman(x, y []float64) float64 {
	if hasMissing(x) || hasMissing(y) {
		x, y = completePairs(x, y)
	}
	if len(x) < 2 {
		return math.NaN()
	}
	return stat.Correlation(Rank(x), Rank(y), nil)
}

func hasMissing(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

func completePairs(x, y []float64) (xs, ys []float64) {
	for i := range x {
		if math.IsNaN(x[i]) || math.IsInf(x[i], 0) || math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return xs, ys
}

// SpearmanMatrix returns the pairwise Spearman correlations of the columns
// of X. Entries for constant columns are NaN, the diagonal is 1. Columns
// with missing values are correlated over pairwise-complete rows.
func SpearmanMatrix(X mat.Matrix) *mat.SymDense {
	_, c := X.Dims()
	cols := make([][]float64, c)
	ranks := make([][]float64, c)
	missing := make([]bool, c)
	for j := 0; j < c; j++ {
		cols[j] = mat.Col(nil, j, X)
		missing[j] = hasMissing(cols[j])
		if !missing[j] {
			ranks[j] = Rank(cols[j])
		}
	}

	out := mat.NewSymDense(c, nil)
	parallel.ParallelizeWithThreshold(c, 32, func(start, end int) {
		for i := start; i < end; i++ {
			out.SetSym(i, i, 1)
			for j := i + 1; j < c; j++ {
				if missing[i] || missing[j] {
					out.SetSym(i, j, Spearman(cols[i], cols[j]))
					continue
				}
				out.SetSym(i, j, stat.Correlation(ranks[i], ranks[j], nil))
			}
		}
	})
	return out
}

// AbsCorrelation は |ρ| を返す。NaNは0（無相関）として扱い、対角は1にする。
func AbsCorrelation(corr mat.Symmetric) *mat.SymDense {
	n := corr.SymmetricDim()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		out.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			v := math.Abs(corr.At(i, j))
			if math.IsNaN(v) {
				v = 0
			}
			out.SetSym(i, j, v)
		}
	}
	return out
}
