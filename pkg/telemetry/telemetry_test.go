package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.FoldDone("RF", 0.5)
	m.FoldDone("RF", 0.7)
	m.CandidateDone("RF")
	m.ImportanceFailed("RF")
	m.RunDone("RF", "k-fold", 12.5, map[string]float64{"r2": 0.8})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FoldsCompleted.WithLabelValues("RF")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchCandidates.WithLabelValues("RF")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImportanceFailures.WithLabelValues("RF")))
	assert.Equal(t, 12.5, testutil.ToFloat64(m.RunDuration.WithLabelValues("RF", "k-fold")))
	assert.Equal(t, 0.8, testutil.ToFloat64(m.RunScore.WithLabelValues("RF", "r2")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.FoldDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.FoldDone("DT", 1)
		m.CandidateDone("DT")
		m.ImportanceFailed("DT")
		m.RunDone("DT", "dataset", 1, nil)
	})
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.FoldDone("KNN", 0.1)

	path := filepath.Join(t.TempDir(), "cvtune.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `cvtune_folds_completed_total{model="KNN"} 1`)
}
