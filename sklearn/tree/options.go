package tree

import (
	"math"

	"github.com/shrubheight/cvtune/core/model"
	"github.com/shrubheight/cvtune/pkg/errors"
)

// Params are the growth controls shared by all trees. Zero MaxDepth and
// zero MaxLeafNodes mean unlimited.
type Params struct {
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxLeafNodes    int
	// MaxFeatures is nil (all features), an int count, a float64 fraction,
	// "sqrt" or "log2".
	MaxFeatures interface{}
	RandomState uint64
}

func (p Params) withDefaults() Params {
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = 1
	}
	return p
}

func (p Params) resolveMaxFeatures(nFeatures int) int {
	n := nFeatures
	switch v := p.MaxFeatures.(type) {
	case int:
		n = v
	case float64:
		n = int(v * float64(nFeatures))
	case string:
		switch v {
		case "sqrt":
			n = int(math.Sqrt(float64(nFeatures)))
		case "log2":
			n = int(math.Log2(float64(nFeatures)))
		}
	}
	if n < 1 {
		n = 1
	}
	if n > nFeatures {
		n = nFeatures
	}
	return n
}

// Validate checks the parameter ranges.
func (p Params) Validate() error {
	if p.MaxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be positive", p.MaxDepth)
	}
	if p.MinSamplesLeaf < 0 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", p.MinSamplesLeaf)
	}
	if p.MaxLeafNodes == 1 || p.MaxLeafNodes < 0 {
		return errors.NewValidationError("max_leaf_nodes", "must be at least 2", p.MaxLeafNodes)
	}
	switch v := p.MaxFeatures.(type) {
	case nil:
	case int:
		if v < 1 {
			return errors.NewValidationError("max_features", "must be at least 1", v)
		}
	case float64:
		if v <= 0 || v > 1 {
			return errors.NewValidationError("max_features", "fraction must be in (0, 1]", v)
		}
	case string:
		if v != "sqrt" && v != "log2" {
			return errors.NewValidationError("max_features", "must be sqrt or log2", v)
		}
	default:
		return errors.NewValidationError("max_features", "unsupported type", v)
	}
	return nil
}

// ToMap returns the parameters under their scikit-learn names.
func (p Params) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         p.Criterion,
		"max_depth":         p.MaxDepth,
		"min_samples_split": p.MinSamplesSplit,
		"min_samples_leaf":  p.MinSamplesLeaf,
		"max_leaf_nodes":    p.MaxLeafNodes,
		"max_features":      p.MaxFeatures,
		"random_state":      p.RandomState,
	}
}

// Set applies one named parameter. ok is false for names that are not tree
// parameters so that ensembles can handle their own names.
func (p *Params) Set(name string, v interface{}) (ok bool, err error) {
	switch name {
	case "criterion":
		s, isStr := v.(string)
		if !isStr {
			return true, errors.NewValidationError(name, "must be a string", v)
		}
		p.Criterion = s
	case "max_depth":
		p.MaxDepth, err = optionalInt(name, v)
	case "min_samples_split":
		p.MinSamplesSplit, err = model.IntParam(name, v)
	case "min_samples_leaf":
		p.MinSamplesLeaf, err = model.IntParam(name, v)
	case "max_leaf_nodes":
		p.MaxLeafNodes, err = optionalInt(name, v)
	case "max_features":
		if f, isFloat := v.(float64); isFloat && f >= 1 && f == math.Trunc(f) {
			v = int(f)
		}
		p.MaxFeatures = v
	case "random_state":
		var seed int
		seed, err = model.IntParam(name, v)
		p.RandomState = uint64(seed)
	default:
		return false, nil
	}
	return true, err
}

// optionalInt maps nil to 0 (unlimited).
func optionalInt(name string, v interface{}) (int, error) {
	if v == nil {
		return 0, nil
	}
	return model.IntParam(name, v)
}

// Option is a function that configures a decision tree.
type Option func(*Params)

// WithCriterion sets the split criterion: "squared_error" for regressors,
// "gini" or "entropy" for classifiers.
func WithCriterion(c string) Option {
	return func(p *Params) { p.Criterion = c }
}

// WithMaxDepth limits the depth of the tree. 0 means unlimited.
func WithMaxDepth(d int) Option {
	return func(p *Params) { p.MaxDepth = d }
}

// WithMinSamplesSplit sets the minimum number of samples required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(p *Params) { p.MinSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(p *Params) { p.MinSamplesLeaf = n }
}

// WithMaxLeafNodes grows the tree best-first up to n leaves. 0 means unlimited.
func WithMaxLeafNodes(n int) Option {
	return func(p *Params) { p.MaxLeafNodes = n }
}

// WithMaxFeatures sets the number of features considered per split.
func WithMaxFeatures(v interface{}) Option {
	return func(p *Params) { p.MaxFeatures = v }
}

// WithRandomState seeds the feature sampling.
func WithRandomState(seed uint64) Option {
	return func(p *Params) { p.RandomState = seed }
}
