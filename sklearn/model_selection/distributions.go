package model_selection

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

// Distribution is a parameter distribution sampled by RandomizedSearchCV.
type Distribution interface {
	Sample(rng *rand.Rand) interface{}
	String() string
}

// RandInt is the discrete uniform distribution on [Low, High).
type RandInt struct {
	Low, High int
}

// Sample returns an int in [Low, High).
func (d RandInt) Sample(rng *rand.Rand) interface{} {
	if d.High <= d.Low {
		return d.Low
	}
	return d.Low + rng.IntN(d.High-d.Low)
}

func (d RandInt) String() string { return fmt.Sprintf("randint(%d, %d)", d.Low, d.High) }

// LogUniform is the reciprocal distribution on [Low, High]: log(x) is uniform.
type LogUniform struct {
	Low, High float64
}

// Sample returns a float64 in [Low, High).
func (d LogUniform) Sample(rng *rand.Rand) interface{} {
	lo, hi := math.Log(d.Low), math.Log(d.High)
	return math.Exp(lo + rng.Float64()*(hi-lo))
}

func (d LogUniform) String() string { return fmt.Sprintf("loguniform(%g, %g)", d.Low, d.High) }

// Choice draws uniformly from a fixed list of values.
type Choice []interface{}

// Sample returns one of the values.
func (d Choice) Sample(rng *rand.Rand) interface{} {
	return d[rng.IntN(len(d))]
}

func (d Choice) String() string { return fmt.Sprintf("choice%v", []interface{}(d)) }

// SearchSpace maps a hyperparameter name to its distribution. An empty
// space means the estimator is used with its defaults.
type SearchSpace map[string]Distribution

// Keys returns the parameter names in sorted order.
func (s SearchSpace) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sample draws one configuration. Names are visited in sorted order so the
// result depends only on the state of rng.
func (s SearchSpace) Sample(rng *rand.Rand) map[string]interface{} {
	params := make(map[string]interface{}, len(s))
	for _, k := range s.Keys() {
		params[k] = s[k].Sample(rng)
	}
	return params
}
