package model_selection

import (
	"context"
	"math"
	"math/rand/v2"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"

	"github.com/shrubheight/cvtune/core/model"
	"github.com/shrubheight/cvtune/core/parallel"
	"github.com/shrubheight/cvtune/metrics"
	"github.com/shrubheight/cvtune/pkg/errors"
	"github.com/shrubheight/cvtune/pkg/log"
)

// CandidateResult is the outcome of one sampled configuration.
type CandidateResult struct {
	Params map[string]interface{}
	// Scores holds the r² of each inner fold; NaN when the fit or the
	// scoring failed.
	Scores    []float64
	MeanScore float64
}

// RandomizedSearchCV はパラメータ分布から NIter 個の設定を抽出し、
// 内側のK分割交差検証のr²平均で最良の設定を選ぶ。
type RandomizedSearchCV struct {
	Factory model.Factory
	Space   SearchSpace

	// NIter is the number of sampled configurations (default 100).
	NIter int
	// CV is the number of unshuffled inner folds (default 5).
	CV int
	// Seed seeds the configuration stream.
	Seed uint64
	// NJobs bounds the concurrent candidate fits; <= 0 means NumCPU.
	NJobs int
	// Refit fits BestEstimator on all rows after the search.
	Refit bool
	// Progress, when set, is called after each candidate finishes.
	Progress func(done, total int)

	Logger log.Logger

	CVResults     []CandidateResult
	BestIndex     int
	BestParams    map[string]interface{}
	BestScore     float64
	BestEstimator model.Estimator
}

// NewRandomizedSearchCV creates a search with NIter=100, CV=5 and refit.
func NewRandomizedSearchCV(factory model.Factory, space SearchSpace) *RandomizedSearchCV {
	return &RandomizedSearchCV{
		Factory: factory,
		Space:   space,
		NIter:   100,
		CV:      5,
		Refit:   true,
	}
}

// Fit runs the search on (X, y).
func (rs *RandomizedSearchCV) Fit(ctx context.Context, X, y mat.Matrix) error {
	n, _, err := model.CheckXY("RandomizedSearchCV.Fit", X, y)
	if err != nil {
		return err
	}
	if rs.NIter < 1 {
		return errors.NewValidationError("n_iter", "must be at least 1", rs.NIter)
	}
	nIter := rs.NIter
	if len(rs.Space) == 0 {
		// 空の探索空間ではデフォルト設定1つだけを評価する
		nIter = 1
	}
	logger := rs.Logger
	if logger == nil {
		logger = log.GetLoggerWithName("model_selection.search")
	}

	folds, err := NewKFold(rs.CV, false, 0).Split(n)
	if err != nil {
		return err
	}

	// 全設定を先に1本の乱数列から抽出するので、結果はワーカーの実行順に依存しない
	rng := rand.New(rand.NewPCG(rs.Seed, rs.Seed))
	candidates := make([]CandidateResult, nIter)
	for i := range candidates {
		candidates[i].Params = rs.Space.Sample(rng)
	}

	logger.Debug("randomized search started",
		log.NIterKey, nIter,
		log.NSplitsKey, rs.CV,
		log.SamplesKey, n,
	)

	var done atomic.Int64
	err = parallel.ForEach(ctx, nIter, rs.NJobs, func(ctx context.Context, i int) error {
		c := &candidates[i]
		c.Scores = make([]float64, len(folds))
		for f, fold := range folds {
			if err := ctx.Err(); err != nil {
				return err
			}
			c.Scores[f] = rs.scoreFold(c.Params, X, y, fold)
		}
		c.MeanScore = mean(c.Scores)
		d := int(done.Add(1))
		if rs.Progress != nil {
			rs.Progress(d, nIter)
		}
		return nil
	})
	if err != nil {
		return err
	}

	best := 0
	for i := 1; i < len(candidates); i++ {
		if better(candidates[i].MeanScore, candidates[best].MeanScore) {
			best = i
		}
	}

	rs.CVResults = candidates
	rs.BestIndex = best
	rs.BestParams = candidates[best].Params
	rs.BestScore = candidates[best].MeanScore

	if math.IsNaN(rs.BestScore) {
		errors.Warn(errors.NewUndefinedMetricWarning("r2", "every candidate failed on at least one inner fold", math.NaN()))
		logger.Info("randomized search finished",
			log.EvaluatedKey, int(done.Load()),
			log.BestParamsKey, rs.BestParams,
		)
	} else {
		logger.Info("randomized search finished",
			log.EvaluatedKey, int(done.Load()),
			log.BestScoreKey, rs.BestScore,
			log.BestParamsKey, rs.BestParams,
		)
	}

	if !rs.Refit {
		return nil
	}
	est, err := model.Clone(rs.Factory, rs.BestParams)
	if err != nil {
		return err
	}
	if err := est.Fit(X, y); err != nil {
		return errors.Wrap(err, "refit best estimator")
	}
	rs.BestEstimator = est
	return nil
}

// scoreFold fits a fresh estimator on the training part of fold and returns
// its r² on the held-out part. Any failure, including a panic, scores NaN.
func (rs *RandomizedSearchCV) scoreFold(params map[string]interface{}, X, y mat.Matrix, fold Fold) (score float64) {
	err := errors.SafeExecute("RandomizedSearchCV.scoreFold", func() error {
		est, err := model.Clone(rs.Factory, params)
		if err != nil {
			return err
		}
		if err := est.Fit(model.SelectRows(X, fold.TrainIndices), model.SelectRows(y, fold.TrainIndices)); err != nil {
			return err
		}
		pred, err := est.Predict(model.SelectRows(X, fold.TestIndices))
		if err != nil {
			return err
		}
		score, err = metrics.R2ScoreMatrix(model.SelectRows(y, fold.TestIndices), pred)
		return err
	})
	if err != nil {
		return math.NaN()
	}
	return score
}

// better reports whether a beats b; NaN ranks below every number and ties
// keep the earlier candidate.
func better(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	return a > b
}

func mean(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}
