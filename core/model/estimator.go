package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。yは(n×1)の列ベクトル。
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する(n×1)の予測を返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator is what the model registry hands to the search and the
// cross-validation loop: fittable, predictive and tunable by name.
type Estimator interface {
	Fitter
	Predictor
	ParameterGetter
	ParameterSetter
}

// Factory builds a fresh, unfitted estimator with default parameters.
// Every fold and every search candidate gets its own instance.
type Factory func() Estimator
