package tree

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/shrubheight/cvtune/core/model"
	"github.com/shrubheight/cvtune/metrics"
	"github.com/shrubheight/cvtune/pkg/errors"
)

// DecisionTreeRegressor はCARTによる回帰木（二乗誤差基準）
type DecisionTreeRegressor struct {
	model.BaseEstimator

	params Params
	tree   *Tree
}

// NewDecisionTreeRegressor は新しい回帰木を作成する
//
//	dt := tree.NewDecisionTreeRegressor(tree.WithMaxDepth(5), tree.WithMinSamplesLeaf(10))
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	p := Params{Criterion: "squared_error", MinSamplesSplit: 2, MinSamplesLeaf: 1}
	for _, opt := range opts {
		opt(&p)
	}
	return &DecisionTreeRegressor{params: p}
}

// Fit はモデルを訓練データで学習させる
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	r, c, err := model.CheckXY("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if err := dt.params.Validate(); err != nil {
		return err
	}

	samples := make([]int, r)
	for i := range samples {
		samples[i] = i
	}
	rng := rand.New(rand.NewPCG(dt.params.RandomState, dt.params.RandomState))
	dt.tree = BuildRegressor(model.Rows(X), model.ColumnVector(y), samples, dt.params, rng)
	dt.SetFitted(c)
	return nil
}

// Predict は入力データに対する予測を行う
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := dt.CheckPredict("DecisionTreeRegressor", c); err != nil {
		return nil, err
	}
	out := mat.NewDense(r, 1, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		out.Set(i, 0, dt.tree.Predict(row)[0])
	}
	return out, nil
}

// Score は決定係数（R²）を返す
func (dt *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// GetParams はハイパーパラメータを返す
func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return dt.params.ToMap()
}

// SetParams はハイパーパラメータを設定する
func (dt *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	return setParams("DecisionTreeRegressor", &dt.params, params)
}

// Tree は学習済みの木を返す（未学習ならnil）
func (dt *DecisionTreeRegressor) Tree() *Tree { return dt.tree }

// GetFeatureImportances は不純度減少に基づく特徴量重要度を返す
func (dt *DecisionTreeRegressor) GetFeatureImportances() []float64 {
	if dt.tree == nil {
		return nil
	}
	return dt.tree.FeatureImportances()
}

// GetDepth は木の深さを返す
func (dt *DecisionTreeRegressor) GetDepth() int {
	if dt.tree == nil {
		return 0
	}
	return dt.tree.Depth()
}

// GetNLeaves は葉の数を返す
func (dt *DecisionTreeRegressor) GetNLeaves() int {
	if dt.tree == nil {
		return 0
	}
	return dt.tree.NLeaves()
}

func (dt *DecisionTreeRegressor) String() string {
	return fmt.Sprintf("DecisionTreeRegressor(max_depth=%d, min_samples_leaf=%d, max_leaf_nodes=%d)",
		dt.params.MaxDepth, dt.params.MinSamplesLeaf, dt.params.MaxLeafNodes)
}

// DecisionTreeClassifier はCARTによる分類木（gini / entropy基準）
type DecisionTreeClassifier struct {
	model.BaseEstimator

	params  Params
	tree    *Tree
	classes []float64
}

// NewDecisionTreeClassifier は新しい分類木を作成する
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	p := Params{Criterion: "gini", MinSamplesSplit: 2, MinSamplesLeaf: 1}
	for _, opt := range opts {
		opt(&p)
	}
	return &DecisionTreeClassifier{params: p}
}

// Fit はモデルを訓練データで学習させる
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Fit")

	r, c, err := model.CheckXY("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if dt.params.Criterion != "gini" && dt.params.Criterion != "entropy" {
		return errors.NewValidationError("criterion", "must be gini or entropy", dt.params.Criterion)
	}
	if err := dt.params.Validate(); err != nil {
		return err
	}

	classes, idx := EncodeLabels(model.ColumnVector(y))
	samples := make([]int, r)
	for i := range samples {
		samples[i] = i
	}
	rng := rand.New(rand.NewPCG(dt.params.RandomState, dt.params.RandomState))
	dt.tree = BuildClassifier(model.Rows(X), idx, len(classes), samples, dt.params, rng)
	dt.classes = classes
	dt.SetFitted(c)
	return nil
}

// PredictProba はクラスごとの確率を返す（列はClasses()の順）
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := dt.CheckPredict("DecisionTreeClassifier", c); err != nil {
		return nil, err
	}
	out := mat.NewDense(r, len(dt.classes), nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		out.SetRow(i, dt.tree.Predict(row))
	}
	return out, nil
}

// Predict は最も確率の高いクラスラベルを返す
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return ArgmaxLabels(proba, dt.classes), nil
}

// Score は正解率を返す
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy(model.ColumnVector(y), model.ColumnVector(pred))
}

// Classes は学習時のクラスラベルを昇順で返す
func (dt *DecisionTreeClassifier) Classes() []float64 {
	return append([]float64(nil), dt.classes...)
}

// GetParams はハイパーパラメータを返す
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return dt.params.ToMap()
}

// SetParams はハイパーパラメータを設定する
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	return setParams("DecisionTreeClassifier", &dt.params, params)
}

// GetFeatureImportances は不純度減少に基づく特徴量重要度を返す
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	if dt.tree == nil {
		return nil
	}
	return dt.tree.FeatureImportances()
}

// GetDepth は木の深さを返す
func (dt *DecisionTreeClassifier) GetDepth() int {
	if dt.tree == nil {
		return 0
	}
	return dt.tree.Depth()
}

// GetNLeaves は葉の数を返す
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	if dt.tree == nil {
		return 0
	}
	return dt.tree.NLeaves()
}

func setParams(name string, p *Params, params map[string]interface{}) error {
	for k, v := range params {
		ok, err := p.Set(k, v)
		if err != nil {
			return err
		}
		if !ok {
			return model.UnknownParam(name, k)
		}
	}
	return p.Validate()
}

// EncodeLabels maps labels to indices into the sorted distinct label set.
func EncodeLabels(y []float64) (classes []float64, idx []int) {
	seen := map[float64]struct{}{}
	for _, v := range y {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			classes = append(classes, v)
		}
	}
	sort.Float64s(classes)
	lookup := make(map[float64]int, len(classes))
	for k, v := range classes {
		lookup[v] = k
	}
	idx = make([]int, len(y))
	for i, v := range y {
		idx[i] = lookup[v]
	}
	return classes, idx
}

// ArgmaxLabels returns, per row of proba, the label of the highest column.
// Ties go to the lowest class.
func ArgmaxLabels(proba mat.Matrix, classes []float64) *mat.Dense {
	r, c := proba.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		best := 0
		for k := 1; k < c; k++ {
			if proba.At(i, k) > proba.At(i, best) {
				best = k
			}
		}
		out.Set(i, 0, classes[best])
	}
	return out
}
