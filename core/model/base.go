package model

import (
	"sync"

	"github.com/shrubheight/cvtune/pkg/errors"
)

// EstimatorState はモデルの学習状態を表す
type EstimatorState int

const (
	// NotFitted はモデルが未学習の状態
	NotFitted EstimatorState = iota
	// Fitted はモデルが学習済みの状態
	Fitted
)

// BaseEstimator は全てのモデルの基底となる構造体。
// 学習状態と学習時の特徴量数をスレッドセーフに保持する。
type BaseEstimator struct {
	mu        sync.RWMutex
	state     EstimatorState
	nFeatures int
}

// IsFitted はモデルが学習済みかどうかを返す
func (e *BaseEstimator) IsFitted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state == Fitted
}

// SetFitted はモデルを学習済み状態に設定し、特徴量数を記録する
func (e *BaseEstimator) SetFitted(nFeatures int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = Fitted
	e.nFeatures = nFeatures
}

// NFeatures は学習時の特徴量数を返す（未学習なら0）
func (e *BaseEstimator) NFeatures() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.nFeatures
}

// Reset はモデルを初期状態にリセットする
func (e *BaseEstimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = NotFitted
	e.nFeatures = 0
}

// CheckPredict は予測前の検証を行う。未学習または特徴量数の不一致でエラーを返す。
func (e *BaseEstimator) CheckPredict(modelName string, cols int) error {
	if !e.IsFitted() {
		return errors.NewNotFittedError(modelName, "Predict")
	}
	if n := e.NFeatures(); cols != n {
		return errors.NewDimensionError(modelName+".Predict", n, cols, 1)
	}
	return nil
}
