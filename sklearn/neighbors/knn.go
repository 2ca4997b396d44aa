// Package neighbors implements the k-nearest-neighbors regressor registered
// under the "KNN" model identifier.
package neighbors

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/shrubheight/cvtune/core/model"
	"github.com/shrubheight/cvtune/core/parallel"
	"github.com/shrubheight/cvtune/metrics"
	"github.com/shrubheight/cvtune/pkg/errors"
)

// 予測行数がこれ以下なら逐次処理
const parallelThreshold = 256

// KNeighborsRegressor は全探索によるk近傍回帰（一様重み）
type KNeighborsRegressor struct {
	model.BaseEstimator

	nNeighbors int
	p          float64
	leafSize   int

	xTrain [][]float64
	yTrain []float64
}

// Option is a function that configures KNeighborsRegressor
type Option func(*KNeighborsRegressor)

// WithNNeighbors sets the number of neighbors averaged per prediction.
func WithNNeighbors(k int) Option {
	return func(m *KNeighborsRegressor) { m.nNeighbors = k }
}

// WithP sets the Minkowski power: 1 is Manhattan, 2 is Euclidean.
func WithP(p float64) Option {
	return func(m *KNeighborsRegressor) { m.p = p }
}

// WithLeafSize records the tree leaf size. The search is brute force, so
// the value has no effect on predictions.
func WithLeafSize(n int) Option {
	return func(m *KNeighborsRegressor) { m.leafSize = n }
}

// NewKNeighborsRegressor は新しいk近傍回帰モデルを作成する
// （デフォルト: n_neighbors=5, p=2, leaf_size=30）
func NewKNeighborsRegressor(opts ...Option) *KNeighborsRegressor {
	m := &KNeighborsRegressor{nNeighbors: 5, p: 2, leafSize: 30}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Fit は訓練データを保持する
func (m *KNeighborsRegressor) Fit(X, y mat.Matrix) error {
	r, c, err := model.CheckXY("KNeighborsRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if err := m.validate(); err != nil {
		return err
	}
	if m.nNeighbors > r {
		return errors.NewValueError("KNeighborsRegressor.Fit",
			fmt.Sprintf("expected n_neighbors <= n_samples, got n_neighbors=%d, n_samples=%d", m.nNeighbors, r))
	}
	m.xTrain = model.Rows(X)
	m.yTrain = model.ColumnVector(y)
	m.SetFitted(c)
	return nil
}

func (m *KNeighborsRegressor) validate() error {
	if m.nNeighbors < 1 {
		return errors.NewValidationError("n_neighbors", "must be at least 1", m.nNeighbors)
	}
	if m.p < 1 {
		return errors.NewValidationError("p", "must be at least 1", m.p)
	}
	if m.leafSize < 1 {
		return errors.NewValidationError("leaf_size", "must be at least 1", m.leafSize)
	}
	return nil
}

// Predict は各行のk近傍の目的変数の平均を返す
func (m *KNeighborsRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := m.CheckPredict("KNeighborsRegressor", c); err != nil {
		return nil, err
	}
	rows := model.Rows(X)
	out := make([]float64, r)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = m.predictRow(rows[i])
		}
	})
	return model.ColumnMatrix(out), nil
}

// Kneighbors returns the indices of the k nearest training rows of row,
// closest first. Equal distances keep training order.
func (m *KNeighborsRegressor) Kneighbors(row []float64) []int {
	type neighbor struct {
		d   float64
		idx int
	}
	nbrs := make([]neighbor, len(m.xTrain))
	for j, xj := range m.xTrain {
		nbrs[j] = neighbor{d: minkowski(row, xj, m.p), idx: j}
	}
	sort.SliceStable(nbrs, func(a, b int) bool { return nbrs[a].d < nbrs[b].d })

	out := make([]int, m.nNeighbors)
	for k := range out {
		out[k] = nbrs[k].idx
	}
	return out
}

func (m *KNeighborsRegressor) predictRow(row []float64) float64 {
	var sum float64
	idx := m.Kneighbors(row)
	for _, j := range idx {
		sum += m.yTrain[j]
	}
	return sum / float64(len(idx))
}

// minkowski returns the p-th power distance sum; the root is monotone and
// skipped since only the ordering matters.
func minkowski(a, b []float64, p float64) float64 {
	var sum float64
	for i := range a {
		d := math.Abs(a[i] - b[i])
		switch p {
		case 1:
			sum += d
		case 2:
			sum += d * d
		default:
			sum += math.Pow(d, p)
		}
	}
	return sum
}

// Score は決定係数（R²）を返す
func (m *KNeighborsRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// GetParams はハイパーパラメータを返す
func (m *KNeighborsRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": m.nNeighbors,
		"p":           m.p,
		"leaf_size":   m.leafSize,
	}
}

// SetParams はハイパーパラメータを設定する
func (m *KNeighborsRegressor) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "n_neighbors":
			m.nNeighbors, err = model.IntParam(k, v)
		case "p":
			m.p, err = model.FloatParam(k, v)
		case "leaf_size":
			m.leafSize, err = model.IntParam(k, v)
		default:
			err = model.UnknownParam("KNeighborsRegressor", k)
		}
		if err != nil {
			return err
		}
	}
	return m.validate()
}

func (m *KNeighborsRegressor) String() string {
	return fmt.Sprintf("KNeighborsRegressor(n_neighbors=%d, p=%g, leaf_size=%d)", m.nNeighbors, m.p, m.leafSize)
}
