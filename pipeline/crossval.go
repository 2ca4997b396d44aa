package pipeline

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/shrubheight/cvtune/core/model"
	"github.com/shrubheight/cvtune/pkg/errors"
	"github.com/shrubheight/cvtune/pkg/log"
	ms "github.com/shrubheight/cvtune/sklearn/model_selection"
)

// k-foldでは全行が学習にも評価にも使われるので欠損は許さない
const missingTargetMsg = "target has missing values; only the dataset method accepts them"

// CVOptions configures CrossValidate.
type CVOptions struct {
	// NSplits is the number of outer folds; 0 means 10.
	NSplits int
	// Seed shuffles the rows before splitting.
	Seed uint64
	// Evaluator runs each fold; nil means NewEvaluator().
	Evaluator *Evaluator
}

// DefaultCVOptions returns 10 shuffled folds seeded with 42.
func DefaultCVOptions() CVOptions {
	return CVOptions{NSplits: 10, Seed: 42}
}

// FoldSummary describes one outer fold of a cross-validation.
type FoldSummary struct {
	Fold             int                    `json:"fold" yaml:"fold"`
	TrainSize        int                    `json:"train_size" yaml:"train_size"`
	TestSize         int                    `json:"test_size" yaml:"test_size"`
	BestParams       map[string]interface{} `json:"best_params" yaml:"best_params"`
	BestScore        float64                `json:"best_score" yaml:"best_score"`
	ImportanceFailed bool                   `json:"importance_failed" yaml:"importance_failed"`
}

// AggregatedResult is the outcome of CrossValidate.
type AggregatedResult struct {
	// Predictions has one out-of-fold prediction per row of X.
	Predictions []float64
	// Importances stacks the per-fold importance matrices in fold order:
	// (NSplits·NRepeats × n_features).
	Importances *mat.Dense
	Folds       []FoldSummary
}

// CrossValidate runs the evaluator on every fold of a shuffled k-fold split
// and aggregates the out-of-fold predictions and the importances. Folds run
// one after another; the context is checked between folds.
func CrossValidate(ctx context.Context, X, y mat.Matrix, factory model.Factory, space ms.SearchSpace, opts CVOptions) (*AggregatedResult, error) {
	n, nFeatures, err := model.CheckXY("CrossValidate", X, y)
	if err != nil {
		return nil, err
	}
	if errors.CheckMatrix("CrossValidate", y) != nil {
		return nil, errors.NewDataError("CrossValidate", missingTargetMsg)
	}
	if opts.NSplits == 0 {
		opts.NSplits = 10
	}
	ev := opts.Evaluator
	if ev == nil {
		ev = NewEvaluator()
	}

	folds, err := ms.NewKFold(opts.NSplits, true, opts.Seed).Split(n)
	if err != nil {
		return nil, err
	}

	logger := log.GetLoggerWithName("pipeline.crossval")
	if ev.ModelName != "" {
		logger = logger.With(log.ModelIDKey, ev.ModelName)
	}

	out := &AggregatedResult{
		Predictions: make([]float64, n),
		Importances: mat.NewDense(opts.NSplits*ev.NRepeats, nFeatures, nil),
		Folds:       make([]FoldSummary, 0, opts.NSplits),
	}
	for f, fold := range folds {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "cross-validation stopped before fold %d", f)
		}
		start := time.Now()

		res, err := ev.evaluate(ctx, f, X, y, fold.TrainIndices, fold.TestIndices, factory, space)
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d", f)
		}
		for i, row := range res.TestIndices {
			out.Predictions[row] = res.Predictions[i]
		}
		for r := 0; r < ev.NRepeats; r++ {
			out.Importances.SetRow(f*ev.NRepeats+r, res.Importances.RawRowView(r))
		}
		out.Folds = append(out.Folds, FoldSummary{
			Fold:             f,
			TrainSize:        len(fold.TrainIndices),
			TestSize:         len(fold.TestIndices),
			BestParams:       res.BestParams,
			BestScore:        res.BestScore,
			ImportanceFailed: res.ImportanceErr != nil,
		})

		elapsed := time.Since(start)
		ev.Metrics.FoldDone(ev.ModelName, elapsed.Seconds())
		fields := []interface{}{
			log.FoldKey, f,
			log.ProgressKey, float64(f+1) * 100 / float64(opts.NSplits),
			log.TrainSizeKey, len(fold.TrainIndices),
			log.TestSizeKey, len(fold.TestIndices),
			log.DurationMsKey, elapsed.Milliseconds(),
		}
		// JSONハンドラはNaNを出力できない
		if !math.IsNaN(res.BestScore) {
			fields = append(fields, log.BestScoreKey, res.BestScore)
		}
		logger.Info("processing", fields...)
	}
	return out, nil
}
