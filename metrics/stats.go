package metrics

import (
	"math"
	"sort"

	"github.com/shrubheight/cvtune/pkg/errors"
)

// Summary holds the agreement statistics between predictions and observations.
type Summary struct {
	// RQ75 is the 75th percentile of max(|p/o|, |o/p|).
	RQ75 float64 `json:"rq75" yaml:"rq75"`
	// R2 is the Nash–Sutcliffe efficiency.
	R2   float64 `json:"r2" yaml:"r2"`
	RMSE float64 `json:"rmse" yaml:"rmse"`
	// Bias is Σ(p−o)/Σo in percent.
	Bias float64 `json:"bias" yaml:"bias"`
	// N is the number of pairs used; pairs with a non-finite value are skipped.
	N int `json:"n" yaml:"n"`
}

// Stats computes the run summary of pred against obs.
func Stats(pred, obs []float64) (Summary, error) {
	if len(pred) != len(obs) {
		return Summary{}, errors.NewDimensionError("Stats", len(obs), len(pred), 0)
	}

	var p, o []float64
	for i := range pred {
		if isFinite(pred[i]) && isFinite(obs[i]) {
			p = append(p, pred[i])
			o = append(o, obs[i])
		}
	}
	n := len(p)
	if n == 0 {
		return Summary{}, errors.NewValueError("Stats", "no finite prediction/observation pairs")
	}

	var sumO, sumDiff, sse float64
	ratios := make([]float64, n)
	for i := 0; i < n; i++ {
		d := p[i] - o[i]
		sumO += o[i]
		sumDiff += d
		sse += d * d
		ratios[i] = math.Max(math.Abs(p[i]/o[i]), math.Abs(o[i]/p[i]))
	}
	mean := sumO / float64(n)
	var sst float64
	for _, v := range o {
		sst += (v - mean) * (v - mean)
	}

	return Summary{
		RQ75: Percentile(ratios, 75),
		R2:   1 - sse/sst,
		RMSE: math.Sqrt(sse / float64(n)),
		Bias: sumDiff / sumO * 100,
		N:    n,
	}, nil
}

// Percentile returns the q-th percentile (0..100) of values using linear
// interpolation between closest ranks at position q/100·(n−1).
func Percentile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	pos := q / 100 * float64(len(s)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return s[lo]
	}
	frac := pos - float64(lo)
	return s[lo] + (s[hi]-s[lo])*frac
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
