package pipeline

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/shrubheight/cvtune/core/model"
	"github.com/shrubheight/cvtune/metrics"
	"github.com/shrubheight/cvtune/pkg/errors"
	"github.com/shrubheight/cvtune/pkg/log"
	"github.com/shrubheight/cvtune/pkg/telemetry"
	"github.com/shrubheight/cvtune/preprocessing"
)

// Method selects how RunModel partitions the rows.
type Method string

const (
	// KFoldMethod predicts every row out-of-fold with CrossValidate.
	KFoldMethod Method = "k-fold"
	// DatasetMethod trains on the rows with an observed target and
	// predicts every row.
	DatasetMethod Method = "dataset"
)

// Methods returns every supported method.
func Methods() []Method {
	return []Method{KFoldMethod, DatasetMethod}
}

// RunOptions configures RunModel.
type RunOptions struct {
	CV CVOptions
	// FeatureNames label the importance columns; optional.
	FeatureNames []string
	Metrics      *telemetry.Metrics
}

// DefaultRunOptions returns the defaults of every stage.
func DefaultRunOptions() RunOptions {
	opts := RunOptions{CV: DefaultCVOptions()}
	opts.CV.Evaluator = NewEvaluator()
	return opts
}

// RunResult is the outcome of RunModel.
type RunResult struct {
	Model  ModelID
	Method Method
	// Predictions has one entry per row of X.
	Predictions []float64
	Observed    []float64
	// Importances is (repeats × n_features); for k-fold the per-fold
	// matrices are stacked in fold order.
	Importances  *mat.Dense
	FeatureNames []string
	Folds        []FoldSummary
	// Stats compares Predictions with the observed rows; nil when it could
	// not be computed.
	Stats *metrics.Summary
	// Classification is set for classifier ids.
	Classification *metrics.Report
	Elapsed        time.Duration
}

// RunModel resolves id, min-max scales X and runs method. An unknown id or
// method fails before any data is touched.
//
// DatasetMethod trains on the rows with a defined target and predicts every
// row, so its Stats are in-sample. It is the only method that accepts NaN
// targets.
func RunModel(ctx context.Context, X, y mat.Matrix, id ModelID, method Method, opts RunOptions) (*RunResult, error) {
	start := time.Now()

	factory, space, err := Resolve(id)
	if err != nil {
		return nil, err
	}
	if method != KFoldMethod && method != DatasetMethod {
		return nil, errors.NewConfigurationError("method", string(method), []string{string(KFoldMethod), string(DatasetMethod)})
	}
	n, nFeatures, err := model.CheckXY("RunModel", X, y)
	if err != nil {
		return nil, err
	}
	if err := errors.CheckMatrix("RunModel", X); err != nil {
		return nil, err
	}
	if method == KFoldMethod && errors.CheckMatrix("RunModel", y) != nil {
		return nil, errors.NewDataError("RunModel", missingTargetMsg)
	}
	if opts.FeatureNames != nil && len(opts.FeatureNames) != nFeatures {
		return nil, errors.NewDimensionError("RunModel", nFeatures, len(opts.FeatureNames), 1)
	}

	logger := log.GetLoggerWithName("pipeline.driver").With(
		log.ModelIDKey, string(id),
		log.MethodKey, string(method),
	)

	ev := opts.CV.Evaluator
	if ev == nil {
		ev = NewEvaluator()
	}
	evCopy := *ev
	evCopy.ModelName = string(id)
	evCopy.Metrics = opts.Metrics
	opts.CV.Evaluator = &evCopy

	Xs, err := preprocessing.NewMinMaxScalerDefault().FitTransform(X)
	if err != nil {
		return nil, err
	}

	res := &RunResult{
		Model:        id,
		Method:       method,
		Observed:     model.ColumnVector(y),
		FeatureNames: opts.FeatureNames,
	}
	logger.Info("run started", log.SamplesKey, n, log.FeaturesKey, nFeatures)

	switch method {
	case KFoldMethod:
		agg, err := CrossValidate(ctx, Xs, y, factory, space, opts.CV)
		if err != nil {
			return nil, err
		}
		res.Predictions = agg.Predictions
		res.Importances = agg.Importances
		res.Folds = agg.Folds

	case DatasetMethod:
		var train, test []int
		for i, v := range res.Observed {
			if !math.IsNaN(v) {
				train = append(train, i)
			}
			test = append(test, i)
		}
		fr, err := evCopy.evaluate(ctx, 0, Xs, y, train, test, factory, space)
		if err != nil {
			return nil, err
		}
		res.Predictions = fr.Predictions
		res.Importances = fr.Importances
		res.Folds = []FoldSummary{{
			Fold:             0,
			TrainSize:        len(train),
			TestSize:         len(test),
			BestParams:       fr.BestParams,
			BestScore:        fr.BestScore,
			ImportanceFailed: fr.ImportanceErr != nil,
		}}
	}

	res.Elapsed = time.Since(start)

	scores := map[string]float64{}
	if s, err := metrics.Stats(res.Predictions, res.Observed); err == nil {
		res.Stats = &s
		scores = map[string]float64{"r2": s.R2, "rmse": s.RMSE, "bias": s.Bias, "rq75": s.RQ75}
		for _, kv := range []struct {
			key string
			v   float64
		}{{log.R2ScoreKey, s.R2}, {log.RMSEKey, s.RMSE}, {log.BiasKey, s.Bias}} {
			if !math.IsNaN(kv.v) && !math.IsInf(kv.v, 0) {
				logger = logger.With(kv.key, kv.v)
			}
		}
	} else {
		logger.Warn("could not compute run statistics", log.ErrAttrKey, err.Error())
	}
	if id.IsClassifier() {
		var obs, pred []float64
		for i, o := range res.Observed {
			if !math.IsNaN(o) {
				obs = append(obs, o)
				pred = append(pred, res.Predictions[i])
			}
		}
		if rep, err := metrics.ClassificationReport(obs, pred); err == nil {
			res.Classification = rep
			scores["accuracy"] = rep.Accuracy
			logger = logger.With(log.AccuracyKey, rep.Accuracy)
		}
	}
	opts.Metrics.RunDone(string(id), string(method), res.Elapsed.Seconds(), scores)

	logger.Info("time to process",
		log.DurationSecondsKey, res.Elapsed.Seconds(),
	)
	return res, nil
}
