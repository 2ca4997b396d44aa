package ensemble

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/shrubheight/cvtune/core/model"
	"github.com/shrubheight/cvtune/metrics"
	"github.com/shrubheight/cvtune/pkg/errors"
	"github.com/shrubheight/cvtune/sklearn/tree"
)

func boostingDefaults() settings {
	return settings{
		tree: tree.Params{
			Criterion:       "squared_error",
			MaxDepth:        3,
			MinSamplesSplit: 2,
			MinSamplesLeaf:  1,
		},
		nEstimators:  100,
		learningRate: 0.1,
		boosting:     true,
	}
}

// fitStage grows one regression tree on the negative gradient, replaces its
// leaf values with scale·(−Σg/Σh) and adds lr times the leaf value to score.
func fitStage(rows [][]float64, grad, hess, score []float64, p tree.Params, rng *rand.Rand, lr, scale float64) *tree.Tree {
	n := len(grad)
	residual := make([]float64, n)
	for i, g := range grad {
		residual[i] = -g
	}
	t := tree.BuildRegressor(rows, residual, samplesRange(n), p, rng)

	leaves := make(map[int][]int)
	leafOf := make([]int, n)
	for i := 0; i < n; i++ {
		leafOf[i] = t.Apply(rows[i])
		leaves[leafOf[i]] = append(leaves[leafOf[i]], i)
	}
	for leaf, members := range leaves {
		t.SetLeafValue(leaf, []float64{scale * newtonLeaf(grad, hess, members)})
	}
	for i := 0; i < n; i++ {
		score[i] += lr * t.Nodes[leafOf[i]].Value[0]
	}
	return t
}

// GradientBoostingRegressor は二乗誤差の勾配ブースティング回帰
type GradientBoostingRegressor struct {
	model.BaseEstimator

	settings
	init   float64
	stages []*tree.Tree
}

// NewGradientBoostingRegressor は新しいGBM回帰モデルを作成する
// （デフォルト: n_estimators=100, learning_rate=0.1, max_depth=3）
func NewGradientBoostingRegressor(opts ...Option) *GradientBoostingRegressor {
	s := boostingDefaults()
	for _, opt := range opts {
		opt(&s)
	}
	return &GradientBoostingRegressor{settings: s}
}

// Fit はモデルを訓練データで学習させる
func (g *GradientBoostingRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingRegressor.Fit")

	n, c, err := model.CheckXY("GradientBoostingRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if err := g.validate(); err != nil {
		return err
	}

	var obj squaredError
	rows := model.Rows(X)
	yv := model.ColumnVector(y)
	rng := rand.New(rand.NewPCG(g.tree.RandomState, g.tree.RandomState))

	g.init = obj.initScore(yv)
	score := make([]float64, n)
	for i := range score {
		score[i] = g.init
	}
	grad := make([]float64, n)
	hess := make([]float64, n)

	g.stages = make([]*tree.Tree, 0, g.nEstimators)
	for m := 0; m < g.nEstimators; m++ {
		for i := range grad {
			grad[i] = obj.gradient(score[i], yv[i])
			hess[i] = obj.hessian(score[i], yv[i])
		}
		g.stages = append(g.stages, fitStage(rows, grad, hess, score, g.tree, rng, g.learningRate, 1))
	}

	g.SetFitted(c)
	return nil
}

// Predict は入力データに対する予測を行う
func (g *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := g.CheckPredict("GradientBoostingRegressor", c); err != nil {
		return nil, err
	}
	out := make([]float64, r)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		f := g.init
		for _, t := range g.stages {
			f += g.learningRate * t.Predict(row)[0]
		}
		out[i] = f
	}
	return model.ColumnMatrix(out), nil
}

// Score は決定係数（R²）を返す
func (g *GradientBoostingRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := g.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// GetFeatureImportances は全ステージの不純度減少の平均を返す
func (g *GradientBoostingRegressor) GetFeatureImportances() []float64 {
	return averageImportances(g.stages, g.NFeatures())
}

// NStages は学習済みのステージ数を返す
func (g *GradientBoostingRegressor) NStages() int { return len(g.stages) }

// GetParams はハイパーパラメータを返す
func (g *GradientBoostingRegressor) GetParams() map[string]interface{} {
	return g.toMap()
}

// SetParams はハイパーパラメータを設定する
func (g *GradientBoostingRegressor) SetParams(params map[string]interface{}) error {
	return g.setParams("GradientBoostingRegressor", params)
}

func (g *GradientBoostingRegressor) String() string {
	return fmt.Sprintf("GradientBoostingRegressor(n_estimators=%d, learning_rate=%g, max_depth=%d, max_leaf_nodes=%d)",
		g.nEstimators, g.learningRate, g.tree.MaxDepth, g.tree.MaxLeafNodes)
}

// GradientBoostingClassifier は対数損失の勾配ブースティング分類。
// 2クラスはステージごとに1本、Kクラスはステージごとにクラス数分の木を学習する。
type GradientBoostingClassifier struct {
	model.BaseEstimator

	settings
	classes []float64
	init    []float64
	// stages[m][k] is the tree of stage m for raw score k.
	stages [][]*tree.Tree
}

// NewGradientBoostingClassifier は新しいGBM分類モデルを作成する
func NewGradientBoostingClassifier(opts ...Option) *GradientBoostingClassifier {
	s := boostingDefaults()
	for _, opt := range opts {
		opt(&s)
	}
	return &GradientBoostingClassifier{settings: s}
}

// Fit はモデルを訓練データで学習させる
func (g *GradientBoostingClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingClassifier.Fit")

	_, c, err := model.CheckXY("GradientBoostingClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := g.validate(); err != nil {
		return err
	}
	classes, idx := tree.EncodeLabels(model.ColumnVector(y))
	if len(classes) < 2 {
		return errors.NewValueError("GradientBoostingClassifier.Fit", "the number of classes has to be greater than one")
	}

	rows := model.Rows(X)
	rng := rand.New(rand.NewPCG(g.tree.RandomState, g.tree.RandomState))
	g.classes = classes
	g.stages = make([][]*tree.Tree, 0, g.nEstimators)

	if len(classes) == 2 {
		g.fitBinary(rows, idx, rng)
	} else {
		g.fitMulticlass(rows, idx, rng)
	}

	g.SetFitted(c)
	return nil
}

func (g *GradientBoostingClassifier) fitBinary(rows [][]float64, idx []int, rng *rand.Rand) {
	var obj binaryLogLoss
	n := len(idx)
	target := make([]float64, n)
	for i, k := range idx {
		target[i] = float64(k)
	}
	init := obj.initScore(target)
	g.init = []float64{init}

	score := make([]float64, n)
	for i := range score {
		score[i] = init
	}
	grad := make([]float64, n)
	hess := make([]float64, n)
	for m := 0; m < g.nEstimators; m++ {
		for i := range grad {
			grad[i] = obj.gradient(score[i], target[i])
			hess[i] = obj.hessian(score[i], target[i])
		}
		t := fitStage(rows, grad, hess, score, g.tree, rng, g.learningRate, 1)
		g.stages = append(g.stages, []*tree.Tree{t})
	}
}

func (g *GradientBoostingClassifier) fitMulticlass(rows [][]float64, idx []int, rng *rand.Rand) {
	n := len(idx)
	K := len(g.classes)

	// 初期スコアは各クラスの事前確率の対数
	counts := make([]float64, K)
	for _, k := range idx {
		counts[k]++
	}
	g.init = make([]float64, K)
	for k := range counts {
		g.init[k] = math.Log(math.Max(counts[k]/float64(n), 1e-15))
	}

	scores := make([][]float64, K)
	for k := range scores {
		scores[k] = make([]float64, n)
		for i := range scores[k] {
			scores[k][i] = g.init[k]
		}
	}
	proba := make([][]float64, n)
	for i := range proba {
		proba[i] = make([]float64, K)
	}
	raw := make([]float64, K)
	grad := make([]float64, n)
	hess := make([]float64, n)
	scale := float64(K-1) / float64(K)

	for m := 0; m < g.nEstimators; m++ {
		for i := 0; i < n; i++ {
			for k := 0; k < K; k++ {
				raw[k] = scores[k][i]
			}
			softmax(raw, proba[i])
		}
		stage := make([]*tree.Tree, K)
		for k := 0; k < K; k++ {
			for i := 0; i < n; i++ {
				p := proba[i][k]
				yk := 0.0
				if idx[i] == k {
					yk = 1
				}
				grad[i] = p - yk
				hess[i] = p * (1 - p)
			}
			stage[k] = fitStage(rows, grad, hess, scores[k], g.tree, rng, g.learningRate, scale)
		}
		g.stages = append(g.stages, stage)
	}
}

// decision returns the raw scores of one row.
func (g *GradientBoostingClassifier) decision(row []float64) []float64 {
	f := append([]float64(nil), g.init...)
	for _, stage := range g.stages {
		for k, t := range stage {
			f[k] += g.learningRate * t.Predict(row)[0]
		}
	}
	return f
}

// PredictProba はクラスごとの確率を返す（列はClasses()の順）
func (g *GradientBoostingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := g.CheckPredict("GradientBoostingClassifier", c); err != nil {
		return nil, err
	}
	K := len(g.classes)
	out := mat.NewDense(r, K, nil)
	row := make([]float64, c)
	p := make([]float64, K)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		f := g.decision(row)
		if K == 2 {
			p[1] = sigmoid(f[0])
			p[0] = 1 - p[1]
		} else {
			softmax(f, p)
		}
		out.SetRow(i, p)
	}
	return out, nil
}

// Predict は最も確率の高いクラスラベルを返す
func (g *GradientBoostingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := g.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return tree.ArgmaxLabels(proba, g.classes), nil
}

// Score は正解率を返す
func (g *GradientBoostingClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := g.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy(model.ColumnVector(y), model.ColumnVector(pred))
}

// Classes は学習時のクラスラベルを昇順で返す
func (g *GradientBoostingClassifier) Classes() []float64 {
	return append([]float64(nil), g.classes...)
}

// GetFeatureImportances は全ての木の不純度減少の平均を返す
func (g *GradientBoostingClassifier) GetFeatureImportances() []float64 {
	var all []*tree.Tree
	for _, stage := range g.stages {
		all = append(all, stage...)
	}
	return averageImportances(all, g.NFeatures())
}

// GetParams はハイパーパラメータを返す
func (g *GradientBoostingClassifier) GetParams() map[string]interface{} {
	return g.toMap()
}

// SetParams はハイパーパラメータを設定する
func (g *GradientBoostingClassifier) SetParams(params map[string]interface{}) error {
	return g.setParams("GradientBoostingClassifier", params)
}

func (g *GradientBoostingClassifier) String() string {
	return fmt.Sprintf("GradientBoostingClassifier(n_estimators=%d, learning_rate=%g, max_depth=%d, max_leaf_nodes=%d)",
		g.nEstimators, g.learningRate, g.tree.MaxDepth, g.tree.MaxLeafNodes)
}
