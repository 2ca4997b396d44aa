// Package inspection implements permutation feature importance.
package inspection

import (
	"context"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/shrubheight/cvtune/core/model"
	"github.com/shrubheight/cvtune/core/parallel"
	"github.com/shrubheight/cvtune/metrics"
	"github.com/shrubheight/cvtune/pkg/errors"
)

// Result holds permutation importances.
type Result struct {
	// Importances is (n_features × n_repeats): baseline r² minus the r²
	// with that feature column shuffled.
	Importances     *mat.Dense
	ImportancesMean []float64
	ImportancesStd  []float64
	Baseline        float64
}

// PermutationImportance は各特徴量列をシャッフルしたときのr²の低下量を計測する。
// 全ての列は同じシードから始まる乱数列でシャッフルされるため、列ごとに並列に計算できる。
func PermutationImportance(ctx context.Context, est model.Predictor, X, y mat.Matrix, nRepeats int, seed uint64) (res *Result, err error) {
	defer errors.Recover(&err, "PermutationImportance")

	n, nFeatures, err := model.CheckXY("PermutationImportance", X, y)
	if err != nil {
		return nil, err
	}
	if nRepeats < 1 {
		return nil, errors.NewValidationError("n_repeats", "must be at least 1", nRepeats)
	}

	score := func(Xs mat.Matrix) (float64, error) {
		pred, err := est.Predict(Xs)
		if err != nil {
			return 0, err
		}
		return metrics.R2ScoreMatrix(y, pred)
	}
	baseline, err := score(X)
	if err != nil {
		return nil, errors.Wrap(err, "baseline score")
	}

	imp := mat.NewDense(nFeatures, nRepeats, nil)
	err = parallel.ForEach(ctx, nFeatures, 0, func(_ context.Context, j int) error {
		Xp := mat.DenseCopyOf(X)
		col := mat.Col(nil, j, X)
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		rng := rand.New(rand.NewPCG(seed, seed))
		for r := 0; r < nRepeats; r++ {
			rng.Shuffle(n, func(a, b int) { order[a], order[b] = order[b], order[a] })
			for i, src := range order {
				Xp.Set(i, j, col[src])
			}
			s, err := score(Xp)
			if err != nil {
				return errors.Wrapf(err, "feature %d repeat %d", j, r)
			}
			imp.Set(j, r, baseline-s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res = &Result{
		Importances:     imp,
		ImportancesMean: make([]float64, nFeatures),
		ImportancesStd:  make([]float64, nFeatures),
		Baseline:        baseline,
	}
	for j := 0; j < nFeatures; j++ {
		row := imp.RawRowView(j)
		res.ImportancesMean[j], res.ImportancesStd[j] = stat.PopMeanStdDev(row, nil)
	}
	return res, nil
}
