package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrubheight/cvtune/pkg/errors"
)

func TestAccuracy(t *testing.T) {
	acc, err := Accuracy([]float64{0, 1, 1, 2}, []float64{0, 1, 2, 2})
	require.NoError(t, err)
	assert.Equal(t, 0.75, acc)

	_, err = Accuracy(nil, nil)
	assert.Error(t, err)
	_, err = Accuracy([]float64{1}, []float64{1, 2})
	assert.Error(t, err)
}

func TestClassificationReport(t *testing.T) {
	yTrue := []float64{0, 0, 1, 1, 1, 2}
	yPred := []float64{0, 1, 1, 1, 0, 2}

	rep, err := ClassificationReport(yTrue, yPred)
	require.NoError(t, err)
	require.Len(t, rep.Classes, 3)

	c0 := rep.Classes[0]
	assert.Equal(t, 0.0, c0.Label)
	assert.InDelta(t, 0.5, c0.Precision, 1e-12)
	assert.InDelta(t, 0.5, c0.Recall, 1e-12)
	assert.Equal(t, 2, c0.Support)

	c1 := rep.Classes[1]
	assert.InDelta(t, 2.0/3.0, c1.Precision, 1e-12)
	assert.InDelta(t, 2.0/3.0, c1.Recall, 1e-12)

	assert.InDelta(t, 4.0/6.0, rep.Accuracy, 1e-12)
	assert.Equal(t, 6, rep.WeightedAvg.Support)
	assert.Contains(t, rep.String(), "weighted avg")
}

func TestClassificationReport_UndefinedPrecisionWarns(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(nil)

	rep, err := ClassificationReport([]float64{0, 1}, []float64{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, rep.Classes[1].Precision)
	require.NotEmpty(t, warnings)

	var um *errors.UndefinedMetricWarning
	assert.True(t, errors.As(warnings[0], &um))
}
