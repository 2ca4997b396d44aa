package svm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/shrubheight/cvtune/core/model"
	"github.com/shrubheight/cvtune/metrics"
	"github.com/shrubheight/cvtune/pkg/errors"
	"github.com/shrubheight/cvtune/sklearn/tree"
)

// SVC はRBFカーネルのC-サポートベクター分類器。
// 3クラス以上は one-vs-rest で学習し、決定関数の最大のクラスを予測する。
type SVC struct {
	model.BaseEstimator

	kernelParams

	classes []float64
	// machines[k] separates class k from the rest; a binary problem has one
	// machine whose positive side is classes[1].
	machines []supportSet
}

// SVCOption is a function that configures SVC.
type SVCOption func(*SVC)

// WithSVCGamma sets the RBF coefficient (a float64, "scale" or "auto").
func WithSVCGamma(g interface{}) SVCOption {
	return func(s *SVC) { s.gamma = g }
}

// WithSVCC sets the regularization parameter.
func WithSVCC(c float64) SVCOption {
	return func(s *SVC) { s.c = c }
}

// NewSVC は新しいSVCを作成する（デフォルト: gamma="scale", C=1）
func NewSVC(opts ...SVCOption) *SVC {
	s := &SVC{kernelParams: defaultKernelParams()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fit はモデルを訓練データで学習させる
func (s *SVC) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "SVC.Fit")

	_, c, err := model.CheckXY("SVC.Fit", X, y)
	if err != nil {
		return err
	}
	classes, idx := tree.EncodeLabels(model.ColumnVector(y))
	if len(classes) < 2 {
		return errors.NewValueError("SVC.Fit", "the number of classes has to be greater than one")
	}

	rows := model.Rows(X)
	gamma, err := s.resolveGamma(rows)
	if err != nil {
		return err
	}
	q := augmentedGram(rows, gamma)

	positives := []int{1}
	if len(classes) > 2 {
		positives = make([]int, len(classes))
		for k := range positives {
			positives[k] = k
		}
	}

	s.machines = make([]supportSet, len(positives))
	for m, pos := range positives {
		signs := make([]float64, len(idx))
		for i, k := range idx {
			signs[i] = -1
			if k == pos {
				signs[i] = 1
			}
		}
		alpha := s.solve(q, signs)
		coef := make([]float64, len(alpha))
		for i := range alpha {
			coef[i] = alpha[i] * signs[i]
		}
		s.machines[m] = newSupportSet(rows, coef, gamma)
	}

	s.classes = classes
	s.SetFitted(c)
	return nil
}

// solve runs dual coordinate descent for one binary problem:
// min ½αᵀQ̃α − 1ᵀα, 0 ≤ α_i ≤ C, Q̃_ij = s_i s_j (K_ij + 1).
func (s *SVC) solve(q *mat.SymDense, signs []float64) []float64 {
	n := len(signs)
	alpha := make([]float64, n)
	qa := make([]float64, n) // Q̃α
	iter := 0
	for ; iter < s.maxIter; iter++ {
		var maxDelta, maxAlpha float64
		for i := 0; i < n; i++ {
			qii := q.At(i, i)
			g := qa[i] - 1
			a := errors.ClipValue(alpha[i]-g/qii, 0, s.c)
			if d := a - alpha[i]; d != 0 {
				for j := 0; j < n; j++ {
					qa[j] += d * signs[i] * signs[j] * q.At(j, i)
				}
				alpha[i] = a
				maxDelta = math.Max(maxDelta, math.Abs(d))
			}
			maxAlpha = math.Max(maxAlpha, a)
		}
		if maxDelta <= s.tol*math.Max(1, maxAlpha) {
			break
		}
	}
	if iter == s.maxIter {
		errors.Warn(errors.NewConvergenceWarning("SVC", iter, ""))
	}
	return alpha
}

// DecisionFunction returns one column per machine.
func (s *SVC) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := s.CheckPredict("SVC", c); err != nil {
		return nil, err
	}
	rows := model.Rows(X)
	out := mat.NewDense(r, len(s.machines), nil)
	for m, sv := range s.machines {
		out.SetCol(m, sv.decisionAll(rows))
	}
	return out, nil
}

// PredictProba maps decision values to probabilities with a logistic link
// (binary) or a softmax (one-vs-rest). The values are not Platt-calibrated.
func (s *SVC) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	dec, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	r, _ := dec.Dims()
	out := mat.NewDense(r, len(s.classes), nil)
	for i := 0; i < r; i++ {
		if len(s.machines) == 1 {
			p := 1 / (1 + errors.StabilizeExp(-dec.At(i, 0)))
			out.Set(i, 0, 1-p)
			out.Set(i, 1, p)
			continue
		}
		logits := mat.Row(nil, i, dec)
		lse := errors.LogSumExp(logits)
		for k, v := range logits {
			out.Set(i, k, math.Exp(v-lse))
		}
	}
	return out, nil
}

// Predict はクラスラベルを返す
func (s *SVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	dec, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	r, _ := dec.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		if len(s.machines) == 1 {
			k := 0
			if dec.At(i, 0) > 0 {
				k = 1
			}
			out.Set(i, 0, s.classes[k])
			continue
		}
		best := 0
		for k := 1; k < len(s.machines); k++ {
			if dec.At(i, k) > dec.At(i, best) {
				best = k
			}
		}
		out.Set(i, 0, s.classes[best])
	}
	return out, nil
}

// Score は正解率を返す
func (s *SVC) Score(X, y mat.Matrix) (float64, error) {
	pred, err := s.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy(model.ColumnVector(y), model.ColumnVector(pred))
}

// Classes は学習時のクラスラベルを昇順で返す
func (s *SVC) Classes() []float64 {
	return append([]float64(nil), s.classes...)
}

// GetParams はハイパーパラメータを返す
func (s *SVC) GetParams() map[string]interface{} {
	return s.toMap()
}

// SetParams はハイパーパラメータを設定する
func (s *SVC) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		ok, err := s.set(k, v)
		if err != nil {
			return err
		}
		if !ok {
			return model.UnknownParam("SVC", k)
		}
	}
	return nil
}

func (s *SVC) String() string {
	return fmt.Sprintf("SVC(kernel=rbf, gamma=%v, C=%g)", s.gamma, s.c)
}
