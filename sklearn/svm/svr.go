package svm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/shrubheight/cvtune/core/model"
	"github.com/shrubheight/cvtune/metrics"
	"github.com/shrubheight/cvtune/pkg/errors"
)

// SVR はRBFカーネルのε-サポートベクター回帰
type SVR struct {
	model.BaseEstimator

	kernelParams
	epsilon float64

	support supportSet
	NIter   int
}

// Option is a function that configures SVR.
type Option func(*SVR)

// WithGamma sets the RBF coefficient (a float64, "scale" or "auto").
func WithGamma(g interface{}) Option {
	return func(s *SVR) { s.gamma = g }
}

// WithC sets the regularization parameter.
func WithC(c float64) Option {
	return func(s *SVR) { s.c = c }
}

// WithEpsilon sets the width of the insensitive tube.
func WithEpsilon(eps float64) Option {
	return func(s *SVR) { s.epsilon = eps }
}

// NewSVR は新しいSVRを作成する（デフォルト: gamma="scale", C=1, epsilon=0.1）
func NewSVR(opts ...Option) *SVR {
	s := &SVR{kernelParams: defaultKernelParams(), epsilon: 0.1}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fit solves min ½βᵀQβ − yᵀβ + ε‖β‖₁ subject to |β_i| ≤ C with Q = K+1.
func (s *SVR) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "SVR.Fit")

	n, c, err := model.CheckXY("SVR.Fit", X, y)
	if err != nil {
		return err
	}
	rows := model.Rows(X)
	yv := model.ColumnVector(y)
	gamma, err := s.resolveGamma(rows)
	if err != nil {
		return err
	}
	q := augmentedGram(rows, gamma)

	beta := make([]float64, n)
	qb := make([]float64, n) // Qβ
	iter := 0
	for ; iter < s.maxIter; iter++ {
		var maxDelta, maxBeta float64
		for i := 0; i < n; i++ {
			qii := q.At(i, i)
			r := qb[i] - qii*beta[i] - yv[i]
			b := -softThreshold(r, s.epsilon) / qii
			b = errors.ClipValue(b, -s.c, s.c)
			if d := b - beta[i]; d != 0 {
				for j := 0; j < n; j++ {
					qb[j] += d * q.At(j, i)
				}
				beta[i] = b
				maxDelta = math.Max(maxDelta, math.Abs(d))
			}
			maxBeta = math.Max(maxBeta, math.Abs(b))
		}
		if maxDelta <= s.tol*math.Max(1, maxBeta) {
			break
		}
	}
	if iter == s.maxIter {
		errors.Warn(errors.NewConvergenceWarning("SVR", iter, ""))
	}

	s.NIter = iter
	s.support = newSupportSet(rows, beta, gamma)
	s.SetFitted(c)
	return nil
}

// Predict は入力データに対する予測を行う
func (s *SVR) Predict(X mat.Matrix) (mat.Matrix, error) {
	_, c := X.Dims()
	if err := s.CheckPredict("SVR", c); err != nil {
		return nil, err
	}
	return model.ColumnMatrix(s.support.decisionAll(model.Rows(X))), nil
}

// Score は決定係数（R²）を返す
func (s *SVR) Score(X, y mat.Matrix) (float64, error) {
	pred, err := s.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// NSupport はサポートベクターの数を返す
func (s *SVR) NSupport() int { return len(s.support.vectors) }

// GetParams はハイパーパラメータを返す
func (s *SVR) GetParams() map[string]interface{} {
	p := s.toMap()
	p["epsilon"] = s.epsilon
	return p
}

// SetParams はハイパーパラメータを設定する
func (s *SVR) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		if k == "epsilon" {
			eps, err := model.FloatParam(k, v)
			if err != nil {
				return err
			}
			s.epsilon = eps
			continue
		}
		ok, err := s.set(k, v)
		if err != nil {
			return err
		}
		if !ok {
			return model.UnknownParam("SVR", k)
		}
	}
	return nil
}

func (s *SVR) String() string {
	return fmt.Sprintf("SVR(kernel=rbf, gamma=%v, C=%g, epsilon=%g)", s.gamma, s.c, s.epsilon)
}
