package featureselection

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/shrubheight/cvtune/core/model"
	"github.com/shrubheight/cvtune/dataset"
	"github.com/shrubheight/cvtune/linear"
	"github.com/shrubheight/cvtune/metrics"
	"github.com/shrubheight/cvtune/pkg/errors"
	"github.com/shrubheight/cvtune/pkg/log"
	"github.com/shrubheight/cvtune/preprocessing"
)

// DefaultVIFThreshold は多重共線性とみなすVIFの閾値
const DefaultVIFThreshold = 10.0

// VIFDrop records one feature removed by CalculateVIF.
type VIFDrop struct {
	Feature string
	Index   int // position among the features remaining at that step
	VIF     float64
}

// VIFResult is the outcome of CalculateVIF.
type VIFResult struct {
	Remaining []string
	Dropped   []VIFDrop
	// VIF holds the final VIF of each remaining feature.
	VIF []float64
}

// CalculateVIF standardizes the features and repeatedly drops the one with
// the largest variance inflation factor while it exceeds thresh.
func CalculateVIF(t *dataset.Table, features []string, thresh float64) (*VIFResult, error) {
	if len(features) == 0 {
		return nil, errors.NewDataError("CalculateVIF", "feature list is empty")
	}
	X, err := t.Matrix(features...)
	if err != nil {
		return nil, err
	}
	if err := errors.CheckMatrix("CalculateVIF", X); err != nil {
		return nil, err
	}
	Xs, err := preprocessing.NewStandardScalerDefault().FitTransform(X)
	if err != nil {
		return nil, err
	}

	logger := log.GetLoggerWithName("featureselection.vif")
	variables := make([]int, len(features))
	for i := range variables {
		variables[i] = i
	}

	res := &VIFResult{}
	for {
		vif, err := vifs(Xs, variables)
		if err != nil {
			return nil, err
		}
		maxloc := 0
		for i, v := range vif {
			if v > vif[maxloc] {
				maxloc = i
			}
		}
		if len(variables) < 2 || vif[maxloc] <= thresh {
			res.VIF = vif
			break
		}
		name := features[variables[maxloc]]
		logger.Info("dropping feature",
			log.FeatureKey, name,
			"index", maxloc,
			log.VIFKey, vif[maxloc],
		)
		res.Dropped = append(res.Dropped, VIFDrop{Feature: name, Index: maxloc, VIF: vif[maxloc]})
		variables = append(variables[:maxloc], variables[maxloc+1:]...)
	}

	for _, v := range variables {
		res.Remaining = append(res.Remaining, features[v])
	}
	logger.Info("remaining variables", "features", res.Remaining)
	return res, nil
}

// vifs returns 1/(1−R²) of each column in variables regressed on the other
// columns in variables. A column that is constant, or perfectly explained by
// the others, gets +Inf.
func vifs(X mat.Matrix, variables []int) ([]float64, error) {
	out := make([]float64, len(variables))
	if len(variables) == 1 {
		out[0] = 1
		return out, nil
	}
	r, _ := X.Dims()
	for i, col := range variables {
		others := mat.NewDense(r, len(variables)-1, nil)
		k := 0
		for _, v := range variables {
			if v == col {
				continue
			}
			others.SetCol(k, mat.Col(nil, v, X))
			k++
		}
		y := model.ColumnMatrix(mat.Col(nil, col, X))

		lr := linear.NewLinearRegression()
		if err := lr.Fit(others, y); err != nil {
			return nil, err
		}
		pred, err := lr.Predict(others)
		if err != nil {
			return nil, err
		}
		r2, err := metrics.R2ScoreMatrix(y, pred)
		if err != nil || r2 >= 1 {
			out[i] = math.Inf(1)
			continue
		}
		out[i] = 1 / (1 - r2)
	}
	return out, nil
}
