// Package svm implements the RBF support vector machines registered under
// the "SVM" (ε-SVR) and "SVM_C" (C-SVC) model identifiers.
//
// Both are trained by dual coordinate descent. The bias is absorbed into the
// kernel (K+1), which removes the equality constraint of the standard dual
// and lets every coordinate be updated in closed form.
package svm

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/shrubheight/cvtune/core/model"
	"github.com/shrubheight/cvtune/core/parallel"
	"github.com/shrubheight/cvtune/pkg/errors"
)

// Gram行列の計算を並列化する最小行数
const parallelThreshold = 128

// kernelParams are shared by SVR and SVC.
type kernelParams struct {
	// gamma is a float64, "scale" or "auto".
	gamma   interface{}
	c       float64
	tol     float64
	maxIter int
}

func defaultKernelParams() kernelParams {
	return kernelParams{gamma: "scale", c: 1.0, tol: 1e-3, maxIter: 1000}
}

// resolveGamma returns the numeric RBF coefficient for training data X.
// "scale" is 1/(n_features·Var(X)) over all entries, "auto" is 1/n_features.
func (k kernelParams) resolveGamma(rows [][]float64) (float64, error) {
	nFeatures := len(rows[0])
	switch g := k.gamma.(type) {
	case float64:
		if g <= 0 {
			return 0, errors.NewValidationError("gamma", "must be positive", g)
		}
		return g, nil
	case string:
		switch g {
		case "auto":
			return 1 / float64(nFeatures), nil
		case "scale":
			all := make([]float64, 0, len(rows)*nFeatures)
			for _, r := range rows {
				all = append(all, r...)
			}
			v := stat.PopVariance(all, nil)
			if v == 0 {
				return 1, nil
			}
			return 1 / (float64(nFeatures) * v), nil
		}
	}
	return 0, errors.NewValidationError("gamma", "must be a positive float, scale or auto", k.gamma)
}

func (k *kernelParams) set(name string, v interface{}) (ok bool, err error) {
	switch name {
	case "gamma":
		if s, isStr := v.(string); isStr {
			k.gamma = s
			return true, nil
		}
		var g float64
		g, err = model.FloatParam(name, v)
		k.gamma = g
	case "C":
		k.c, err = model.FloatParam(name, v)
		if err == nil && k.c <= 0 {
			err = errors.NewValidationError(name, "must be positive", v)
		}
	case "tol":
		k.tol, err = model.FloatParam(name, v)
	case "max_iter":
		k.maxIter, err = model.IntParam(name, v)
	default:
		return false, nil
	}
	return true, err
}

func (k kernelParams) toMap() map[string]interface{} {
	return map[string]interface{}{
		"kernel":   "rbf",
		"gamma":    k.gamma,
		"C":        k.c,
		"tol":      k.tol,
		"max_iter": k.maxIter,
	}
}

func rbf(a, b []float64, gamma float64) float64 {
	var d float64
	for i := range a {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return math.Exp(-gamma * d)
}

// augmentedGram returns K+1 for the training rows.
func augmentedGram(rows [][]float64, gamma float64) *mat.SymDense {
	n := len(rows)
	q := mat.NewSymDense(n, nil)
	parallel.ParallelizeWithThreshold(n, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j := i; j < n; j++ {
				q.SetSym(i, j, rbf(rows[i], rows[j], gamma)+1)
			}
		}
	})
	return q
}

// supportSet is the fitted decision function f(x) = Σ coef_i (K(sv_i, x) + 1).
type supportSet struct {
	vectors [][]float64
	coef    []float64
	gamma   float64
}

func newSupportSet(rows [][]float64, coef []float64, gamma float64) supportSet {
	s := supportSet{gamma: gamma}
	for i, c := range coef {
		if c != 0 {
			s.vectors = append(s.vectors, rows[i])
			s.coef = append(s.coef, c)
		}
	}
	return s
}

func (s supportSet) decision(row []float64) float64 {
	var f float64
	for i, sv := range s.vectors {
		f += s.coef[i] * (rbf(sv, row, s.gamma) + 1)
	}
	return f
}

func (s supportSet) decisionAll(rows [][]float64) []float64 {
	out := make([]float64, len(rows))
	parallel.ParallelizeWithThreshold(len(rows), parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = s.decision(rows[i])
		}
	})
	return out
}

func softThreshold(x, t float64) float64 {
	switch {
	case x > t:
		return x - t
	case x < -t:
		return x + t
	default:
		return 0
	}
}
