package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats(t *testing.T) {
	pred := []float64{1.1, 1.9, 3.3, 4.0}
	obs := []float64{1, 2, 3, 4}

	s, err := Stats(pred, obs)
	require.NoError(t, err)

	sse := 0.01 + 0.01 + 0.09
	assert.InDelta(t, 1-sse/5.0, s.R2, 1e-12)
	assert.InDelta(t, math.Sqrt(sse/4), s.RMSE, 1e-12)
	assert.InDelta(t, 0.3/10*100, s.Bias, 1e-9)
	assert.Equal(t, 4, s.N)

	// ratios: 1.1, 2/1.9, 1.1, 1 -> sorted 1, 1.0526, 1.1, 1.1
	assert.InDelta(t, 1.1, s.RQ75, 1e-12)
}

func TestStats_SkipsMissingObservations(t *testing.T) {
	s, err := Stats([]float64{1, 2, 3}, []float64{1, math.NaN(), 3})
	require.NoError(t, err)
	assert.Equal(t, 2, s.N)
	assert.InDelta(t, 1.0, s.R2, 1e-12)

	_, err = Stats([]float64{1}, []float64{math.NaN()})
	assert.Error(t, err)

	_, err = Stats([]float64{1, 2}, []float64{1})
	assert.Error(t, err)
}

func TestPercentile(t *testing.T) {
	v := []float64{4, 1, 3, 2}
	assert.InDelta(t, 3.25, Percentile(v, 75), 1e-12)
	assert.Equal(t, 1.0, Percentile(v, 0))
	assert.Equal(t, 4.0, Percentile(v, 100))
	assert.True(t, math.IsNaN(Percentile(nil, 50)))
	assert.Equal(t, []float64{4, 1, 3, 2}, v)
}
