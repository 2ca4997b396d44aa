package ensemble

import (
	"math"

	"github.com/shrubheight/cvtune/pkg/errors"
)

// objective supplies the per-sample gradient and hessian of the loss with
// respect to the raw score, and the constant initial score.
type objective interface {
	gradient(score, target float64) float64
	hessian(score, target float64) float64
	initScore(targets []float64) float64
}

// squaredError は二乗誤差（GBM回帰）
type squaredError struct{}

func (squaredError) gradient(score, target float64) float64 { return score - target }
func (squaredError) hessian(_, _ float64) float64           { return 1 }
func (squaredError) initScore(targets []float64) float64 {
	var sum float64
	for _, v := range targets {
		sum += v
	}
	return sum / float64(len(targets))
}

// binaryLogLoss は二値分類の対数損失。targetは0または1。
type binaryLogLoss struct{}

func (binaryLogLoss) gradient(score, target float64) float64 { return sigmoid(score) - target }
func (binaryLogLoss) hessian(score, _ float64) float64 {
	p := sigmoid(score)
	return p * (1 - p)
}
func (binaryLogLoss) initScore(targets []float64) float64 {
	var pos float64
	for _, v := range targets {
		pos += v
	}
	p := errors.ClipValue(pos/float64(len(targets)), 1e-15, 1-1e-15)
	return math.Log(p / (1 - p))
}

func sigmoid(x float64) float64 {
	return 1 / (1 + errors.StabilizeExp(-x))
}

// softmax writes the class probabilities of one row of raw scores into out.
func softmax(scores, out []float64) {
	lse := errors.LogSumExp(scores)
	for k, s := range scores {
		out[k] = math.Exp(s - lse)
	}
}

// newtonLeaf returns −Σg/Σh, or 0 when the hessian vanishes.
func newtonLeaf(grad, hess []float64, samples []int) float64 {
	var g, h float64
	for _, i := range samples {
		g += grad[i]
		h += hess[i]
	}
	if h < 1e-150 {
		return 0
	}
	return -g / h
}
