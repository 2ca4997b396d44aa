// Package ensemble implements the bagged ("RF", "RF_C") and boosted
// ("GBM", "GBM_C") tree ensembles on top of the CART builder in
// sklearn/tree.
package ensemble

import (
	"github.com/shrubheight/cvtune/core/model"
	"github.com/shrubheight/cvtune/pkg/errors"
	"github.com/shrubheight/cvtune/sklearn/tree"
)

// settings are the hyperparameters of both ensemble families.
type settings struct {
	tree         tree.Params
	nEstimators  int
	learningRate float64
	bootstrap    bool

	// boosting reports whether learning_rate (true) or bootstrap (false)
	// is accepted by SetParams.
	boosting bool
}

// Option is a function that configures an ensemble.
type Option func(*settings)

// WithNEstimators sets the number of trees (boosting stages).
func WithNEstimators(n int) Option {
	return func(s *settings) { s.nEstimators = n }
}

// WithLearningRate shrinks the contribution of each boosting stage.
func WithLearningRate(lr float64) Option {
	return func(s *settings) { s.learningRate = lr }
}

// WithBootstrap toggles bootstrap sampling in random forests.
func WithBootstrap(b bool) Option {
	return func(s *settings) { s.bootstrap = b }
}

// WithMaxDepth limits the depth of every tree. 0 means unlimited.
func WithMaxDepth(d int) Option {
	return func(s *settings) { s.tree.MaxDepth = d }
}

// WithMaxLeafNodes grows every tree best-first up to n leaves.
func WithMaxLeafNodes(n int) Option {
	return func(s *settings) { s.tree.MaxLeafNodes = n }
}

// WithMinSamplesLeaf sets the minimum number of samples per leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(s *settings) { s.tree.MinSamplesLeaf = n }
}

// WithMaxFeatures sets the number of features tried per split.
func WithMaxFeatures(v interface{}) Option {
	return func(s *settings) { s.tree.MaxFeatures = v }
}

// WithRandomState seeds bootstrap draws and feature sampling.
func WithRandomState(seed uint64) Option {
	return func(s *settings) { s.tree.RandomState = seed }
}

func (s *settings) validate() error {
	if s.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", s.nEstimators)
	}
	if s.boosting && s.learningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be positive", s.learningRate)
	}
	return s.tree.Validate()
}

func (s *settings) toMap() map[string]interface{} {
	m := s.tree.ToMap()
	m["n_estimators"] = s.nEstimators
	if s.boosting {
		m["learning_rate"] = s.learningRate
	} else {
		m["bootstrap"] = s.bootstrap
	}
	return m
}

func (s *settings) setParams(name string, params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch {
		case k == "n_estimators":
			s.nEstimators, err = model.IntParam(k, v)
		case k == "learning_rate" && s.boosting:
			s.learningRate, err = model.FloatParam(k, v)
		case k == "bootstrap" && !s.boosting:
			b, ok := v.(bool)
			if !ok {
				err = errors.NewValidationError(k, "must be a bool", v)
			}
			s.bootstrap = b
		default:
			var ok bool
			ok, err = s.tree.Set(k, v)
			if !ok {
				return model.UnknownParam(name, k)
			}
		}
		if err != nil {
			return err
		}
	}
	return s.validate()
}

func samplesRange(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// averageImportances returns the mean of the per-tree importances.
func averageImportances(trees []*tree.Tree, nFeatures int) []float64 {
	out := make([]float64, nFeatures)
	if len(trees) == 0 {
		return out
	}
	for _, t := range trees {
		for j, v := range t.FeatureImportances() {
			out[j] += v
		}
	}
	for j := range out {
		out[j] /= float64(len(trees))
	}
	return out
}
