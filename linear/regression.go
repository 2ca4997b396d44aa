// Package linear provides the ordinary least squares regressor registered
// under the "MLR" model identifier.
package linear

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/shrubheight/cvtune/core/model"
	"github.com/shrubheight/cvtune/core/parallel"
	"github.com/shrubheight/cvtune/metrics"
	"github.com/shrubheight/cvtune/pkg/errors"
)

// 並列処理の閾値（この値以下の行数では逐次処理を使用）
const parallelThreshold = 1000

// LinearRegression は最小二乗法による線形回帰モデル。
// 中心化した計画行列をSVDで解き、ランク落ちの場合は最小ノルム解を返す。
type LinearRegression struct {
	model.BaseEstimator

	fitIntercept bool
	rcond        float64

	Weights   *mat.VecDense // 重み（係数）
	Intercept float64       // 切片
	Rank      int           // 中心化した計画行列のランク
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{fitIntercept: true, rcond: 1e-12}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習させる
func (lr *LinearRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearRegression.Fit")

	r, c, err := model.CheckXY("LinearRegression.Fit", X, y)
	if err != nil {
		return err
	}

	xMean := make([]float64, c)
	var yMean float64
	if lr.fitIntercept {
		for j := 0; j < c; j++ {
			for i := 0; i < r; i++ {
				xMean[j] += X.At(i, j)
			}
			xMean[j] /= float64(r)
		}
		for i := 0; i < r; i++ {
			yMean += y.At(i, 0)
		}
		yMean /= float64(r)
	}

	// 中心化した X と y
	Xc := mat.NewDense(r, c, nil)
	yc := mat.NewDense(r, 1, nil)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < c; j++ {
				Xc.Set(i, j, X.At(i, j)-xMean[j])
			}
			yc.Set(i, 0, y.At(i, 0)-yMean)
		}
	})

	var svd mat.SVD
	if ok := svd.Factorize(Xc, mat.SVDThin); !ok {
		return errors.NewModelError("LinearRegression.Fit", "SVD failed", errors.ErrSingularMatrix)
	}
	rank := svd.Rank(lr.rcond)
	if rank == 0 {
		// 全特徴量が定数の場合は切片のみのモデル
		lr.Weights = mat.NewVecDense(c, nil)
		lr.Intercept = yMean
		lr.Rank = 0
		lr.SetFitted(c)
		return nil
	}

	var w mat.Dense
	svd.SolveTo(&w, yc, rank)

	lr.Weights = mat.NewVecDense(c, nil)
	lr.Intercept = yMean
	for j := 0; j < c; j++ {
		lr.Weights.SetVec(j, w.At(j, 0))
		lr.Intercept -= xMean[j] * w.At(j, 0)
	}
	lr.Rank = rank

	lr.SetFitted(c)
	return nil
}

// Predict は入力データに対する予測を行う: y = X * weights + intercept
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := lr.CheckPredict("LinearRegression", c); err != nil {
		return nil, err
	}

	var pred mat.VecDense
	pred.MulVec(X, lr.Weights)
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, pred.AtVec(i)+lr.Intercept)
	}
	return out, nil
}

// Score はモデルの決定係数（R²）を計算する
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	yPred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, yPred)
}

// GetWeights は学習された重み（係数）を返す
func (lr *LinearRegression) GetWeights() []float64 {
	if lr.Weights == nil {
		return nil
	}
	return mat.Col(nil, 0, lr.Weights)
}

// GetParams はハイパーパラメータを返す
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.fitIntercept,
	}
}

// SetParams はハイパーパラメータを設定する
func (lr *LinearRegression) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		switch k {
		case "fit_intercept":
			b, ok := v.(bool)
			if !ok {
				return errors.NewValidationError(k, "must be a bool", v)
			}
			lr.fitIntercept = b
		default:
			return model.UnknownParam("LinearRegression", k)
		}
	}
	return nil
}

// String はモデルの文字列表現を返す
func (lr *LinearRegression) String() string {
	if !lr.IsFitted() {
		return fmt.Sprintf("LinearRegression(fit_intercept=%t)", lr.fitIntercept)
	}
	return fmt.Sprintf("LinearRegression(fit_intercept=%t, n_features=%d, rank=%d)",
		lr.fitIntercept, lr.NFeatures(), lr.Rank)
}
