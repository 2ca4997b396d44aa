package ensemble

import (
	"context"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/shrubheight/cvtune/core/model"
	"github.com/shrubheight/cvtune/core/parallel"
	"github.com/shrubheight/cvtune/metrics"
	"github.com/shrubheight/cvtune/pkg/errors"
	"github.com/shrubheight/cvtune/sklearn/tree"
)

func forestDefaults(criterion string, maxFeatures interface{}) settings {
	return settings{
		tree: tree.Params{
			Criterion:       criterion,
			MinSamplesSplit: 2,
			MinSamplesLeaf:  1,
			MaxFeatures:     maxFeatures,
		},
		nEstimators: 100,
		bootstrap:   true,
	}
}

// growForest builds nEstimators trees concurrently. Each tree gets its own
// generator seeded from one stream, so the forest does not depend on
// scheduling.
func growForest(s settings, n int, build func(samples []int, rng *rand.Rand) *tree.Tree) ([]*tree.Tree, error) {
	master := rand.New(rand.NewPCG(s.tree.RandomState, s.tree.RandomState))
	seeds := make([]uint64, s.nEstimators)
	for i := range seeds {
		seeds[i] = master.Uint64()
	}

	trees := make([]*tree.Tree, s.nEstimators)
	err := parallel.ForEach(context.Background(), s.nEstimators, 0, func(_ context.Context, t int) (err error) {
		defer errors.Recover(&err, "ensemble.growForest")
		rng := rand.New(rand.NewPCG(seeds[t], seeds[t]))
		samples := samplesRange(n)
		if s.bootstrap {
			for i := range samples {
				samples[i] = rng.IntN(n)
			}
		}
		trees[t] = build(samples, rng)
		return nil
	})
	return trees, err
}

// RandomForestRegressor はブートストラップした回帰木の平均で予測する
type RandomForestRegressor struct {
	model.BaseEstimator

	settings
	trees []*tree.Tree
}

// NewRandomForestRegressor は新しいランダムフォレスト回帰を作成する
// （デフォルト: n_estimators=100, bootstrap=true, 分割ごとに全特徴量を使用）
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	s := forestDefaults("squared_error", nil)
	for _, opt := range opts {
		opt(&s)
	}
	return &RandomForestRegressor{settings: s}
}

// Fit はモデルを訓練データで学習させる
func (f *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	n, c, err := model.CheckXY("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if err := f.validate(); err != nil {
		return err
	}

	rows := model.Rows(X)
	yv := model.ColumnVector(y)
	trees, err := growForest(f.settings, n, func(samples []int, rng *rand.Rand) *tree.Tree {
		return tree.BuildRegressor(rows, yv, samples, f.tree, rng)
	})
	if err != nil {
		return err
	}
	f.trees = trees
	f.SetFitted(c)
	return nil
}

// Predict は各木の予測の平均を返す
func (f *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := f.CheckPredict("RandomForestRegressor", c); err != nil {
		return nil, err
	}
	out := make([]float64, r)
	rows := model.Rows(X)
	parallel.ParallelizeWithThreshold(r, 64, func(start, end int) {
		for i := start; i < end; i++ {
			var sum float64
			for _, t := range f.trees {
				sum += t.Predict(rows[i])[0]
			}
			out[i] = sum / float64(len(f.trees))
		}
	})
	return model.ColumnMatrix(out), nil
}

// Score は決定係数（R²）を返す
func (f *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := f.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// GetFeatureImportances は木ごとの重要度の平均を返す
func (f *RandomForestRegressor) GetFeatureImportances() []float64 {
	return averageImportances(f.trees, f.NFeatures())
}

// Trees は学習済みの木を返す
func (f *RandomForestRegressor) Trees() []*tree.Tree { return f.trees }

// GetParams はハイパーパラメータを返す
func (f *RandomForestRegressor) GetParams() map[string]interface{} {
	return f.toMap()
}

// SetParams はハイパーパラメータを設定する
func (f *RandomForestRegressor) SetParams(params map[string]interface{}) error {
	return f.setParams("RandomForestRegressor", params)
}

func (f *RandomForestRegressor) String() string {
	return fmt.Sprintf("RandomForestRegressor(n_estimators=%d, max_leaf_nodes=%d, bootstrap=%t)",
		f.nEstimators, f.tree.MaxLeafNodes, f.bootstrap)
}

// RandomForestClassifier は分類木の確率の平均で予測する
type RandomForestClassifier struct {
	model.BaseEstimator

	settings
	classes []float64
	trees   []*tree.Tree
}

// NewRandomForestClassifier は新しいランダムフォレスト分類を作成する
// （デフォルト: n_estimators=100, criterion=gini, max_features=sqrt）
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	s := forestDefaults("gini", "sqrt")
	for _, opt := range opts {
		opt(&s)
	}
	return &RandomForestClassifier{settings: s}
}

// Fit はモデルを訓練データで学習させる
func (f *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	n, c, err := model.CheckXY("RandomForestClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if f.tree.Criterion != "gini" && f.tree.Criterion != "entropy" {
		return errors.NewValidationError("criterion", "must be gini or entropy", f.tree.Criterion)
	}
	if err := f.validate(); err != nil {
		return err
	}

	classes, idx := tree.EncodeLabels(model.ColumnVector(y))
	rows := model.Rows(X)
	trees, err := growForest(f.settings, n, func(samples []int, rng *rand.Rand) *tree.Tree {
		return tree.BuildClassifier(rows, idx, len(classes), samples, f.tree, rng)
	})
	if err != nil {
		return err
	}
	f.classes = classes
	f.trees = trees
	f.SetFitted(c)
	return nil
}

// PredictProba はクラスごとの確率を返す（列はClasses()の順）
func (f *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := f.CheckPredict("RandomForestClassifier", c); err != nil {
		return nil, err
	}
	K := len(f.classes)
	out := mat.NewDense(r, K, nil)
	rows := model.Rows(X)
	parallel.ParallelizeWithThreshold(r, 64, func(start, end int) {
		p := make([]float64, K)
		for i := start; i < end; i++ {
			for k := range p {
				p[k] = 0
			}
			for _, t := range f.trees {
				for k, v := range t.Predict(rows[i]) {
					p[k] += v
				}
			}
			for k := range p {
				p[k] /= float64(len(f.trees))
			}
			out.SetRow(i, p)
		}
	})
	return out, nil
}

// Predict は最も確率の高いクラスラベルを返す
func (f *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return tree.ArgmaxLabels(proba, f.classes), nil
}

// Score は正解率を返す
func (f *RandomForestClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := f.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy(model.ColumnVector(y), model.ColumnVector(pred))
}

// Classes は学習時のクラスラベルを昇順で返す
func (f *RandomForestClassifier) Classes() []float64 {
	return append([]float64(nil), f.classes...)
}

// GetFeatureImportances は木ごとの重要度の平均を返す
func (f *RandomForestClassifier) GetFeatureImportances() []float64 {
	return averageImportances(f.trees, f.NFeatures())
}

// GetParams はハイパーパラメータを返す
func (f *RandomForestClassifier) GetParams() map[string]interface{} {
	return f.toMap()
}

// SetParams はハイパーパラメータを設定する
func (f *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	return f.setParams("RandomForestClassifier", params)
}

func (f *RandomForestClassifier) String() string {
	return fmt.Sprintf("RandomForestClassifier(n_estimators=%d, max_leaf_nodes=%d, max_features=%v)",
		f.nEstimators, f.tree.MaxLeafNodes, f.tree.MaxFeatures)
}
