package pipeline

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/shrubheight/cvtune/core/model"
	"github.com/shrubheight/cvtune/pkg/errors"
	"github.com/shrubheight/cvtune/pkg/log"
	"github.com/shrubheight/cvtune/pkg/telemetry"
	"github.com/shrubheight/cvtune/sklearn/inspection"
	ms "github.com/shrubheight/cvtune/sklearn/model_selection"
)

// FoldResult is the outcome of evaluating one train/test partition.
type FoldResult struct {
	Fold        int
	TestIndices []int
	// Predictions are aligned with TestIndices.
	Predictions []float64
	// Importances is (NRepeats × n_features) of baseline − permuted r².
	// All zeros when ImportanceErr is set.
	Importances   *mat.Dense
	ImportanceErr error
	BestParams    map[string]interface{}
	// BestScore is the mean inner r² of the chosen configuration; NaN when
	// no search ran.
	BestScore float64
}

// Evaluator tunes, refits, predicts and measures permutation importance on
// one train/test partition.
type Evaluator struct {
	NIter          int    // sampled configurations (default 100)
	InnerFolds     int    // unshuffled inner folds (default 5)
	NRepeats       int    // permutation repeats (default 10)
	SearchSeed     uint64 // seed of the configuration stream
	ImportanceSeed uint64 // seed of the permutations (default 0)
	NJobs          int    // concurrent search fits; <= 0 means NumCPU

	ModelName string
	Logger    log.Logger
	Metrics   *telemetry.Metrics
}

// NewEvaluator returns an Evaluator with the default search and importance
// settings.
func NewEvaluator() *Evaluator {
	return &Evaluator{NIter: 100, InnerFolds: 5, NRepeats: 10}
}

func (e *Evaluator) logger() log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.GetLoggerWithName("pipeline.evaluator")
}

// Evaluate runs one partition: rows trainIdx of (X, y) tune and fit the
// estimator, rows testIdx are predicted and used for permutation importance.
func (e *Evaluator) Evaluate(ctx context.Context, X, y mat.Matrix, trainIdx, testIdx []int,
	factory model.Factory, space ms.SearchSpace) (*FoldResult, error) {
	return e.evaluate(ctx, -1, X, y, trainIdx, testIdx, factory, space)
}

func (e *Evaluator) evaluate(ctx context.Context, fold int, X, y mat.Matrix, trainIdx, testIdx []int,
	factory model.Factory, space ms.SearchSpace) (*FoldResult, error) {
	if len(trainIdx) == 0 || len(testIdx) == 0 {
		return nil, errors.NewValueError("Evaluator.Evaluate", "train and test partitions must be non-empty")
	}
	logger := e.logger()
	if fold >= 0 {
		logger = logger.With(log.FoldKey, fold)
	}

	Xtr, ytr := model.SelectRows(X, trainIdx), model.SelectRows(y, trainIdx)
	Xte, yte := model.SelectRows(X, testIdx), model.SelectRows(y, testIdx)

	res := &FoldResult{
		Fold:        fold,
		TestIndices: append([]int(nil), testIdx...),
		BestParams:  map[string]interface{}{},
		BestScore:   math.NaN(),
	}

	var est model.Estimator
	if len(space) > 0 {
		search := ms.NewRandomizedSearchCV(factory, space)
		search.NIter = e.NIter
		search.CV = e.InnerFolds
		search.Seed = e.SearchSeed
		search.NJobs = e.NJobs
		search.Logger = logger
		search.Progress = func(done, total int) {
			e.Metrics.CandidateDone(e.ModelName)
			if done%10 == 0 || done == total {
				logger.Debug("search progress", log.EvaluatedKey, done, log.NIterKey, total)
			}
		}
		if err := search.Fit(ctx, Xtr, ytr); err != nil {
			return nil, errors.Wrap(err, "hyperparameter search")
		}
		est = search.BestEstimator
		res.BestParams = search.BestParams
		res.BestScore = search.BestScore
	} else {
		est = factory()
		if err := errors.SafeExecute("Evaluator.fit", func() error { return est.Fit(Xtr, ytr) }); err != nil {
			return nil, errors.Wrap(err, "fit default estimator")
		}
	}

	var pred mat.Matrix
	err := errors.SafeExecute("Evaluator.predict", func() error {
		var err error
		pred, err = est.Predict(Xte)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "predict test partition")
	}
	res.Predictions = model.ColumnVector(pred)

	_, nFeatures := X.Dims()
	var perm *inspection.Result
	err = errors.SafeExecute(log.OperationPermute, func() error {
		var err error
		perm, err = inspection.PermutationImportance(ctx, est, Xte, yte, e.NRepeats, e.ImportanceSeed)
		return err
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		w := errors.NewComputationWarning(log.OperationPermute, fold, "zero matrix", err)
		errors.Warn(w)
		logger.Warn("permutation importance failed", log.ErrAttrKey, err.Error(), log.OperationKey, log.OperationPermute)
		e.Metrics.ImportanceFailed(e.ModelName)
		res.Importances = mat.NewDense(e.NRepeats, nFeatures, nil)
		res.ImportanceErr = w
		return res, nil
	}

	res.Importances = mat.DenseCopyOf(perm.Importances.T())
	return res, nil
}
