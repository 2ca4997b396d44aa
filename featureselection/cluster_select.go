// Package featureselection reduces a feature set to decorrelated
// representatives: correlation clustering, VIF pruning and per-cluster PCA.
package featureselection

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/shrubheight/cvtune/dataset"
	"github.com/shrubheight/cvtune/pkg/errors"
	"github.com/shrubheight/cvtune/pkg/log"
	"github.com/shrubheight/cvtune/sklearn/cluster"
	"github.com/shrubheight/cvtune/stats"
)

// DefaultThreshold はクラスタを切る高さのデフォルト値
const DefaultThreshold = 0.4

// Cluster is a group of mutually correlated features.
type Cluster struct {
	ID       int
	Features []string
}

// Result is the outcome of ClusterAndSelect.
type Result struct {
	// Clusters are ordered by ID; IDs are 1-based and numbered by the first
	// feature (in input order) that belongs to each cluster.
	Clusters []Cluster
	// Selected holds one feature per cluster, in cluster order.
	Selected []string
	// Features is the input feature order the matrices below refer to.
	Features []string
	// Correlation is |ρ| between features, NaN replaced by 0, diagonal 1.
	Correlation *mat.SymDense
	// TargetCorrelation is |ρ| between each feature and the target.
	TargetCorrelation []float64
	Linkage           cluster.Linkage
	Labels            []int
}

// ClusterAndSelect groups features by Ward clustering of 1−|Spearman ρ| and
// keeps, from each cluster, the feature most correlated with target. Ties
// go to the feature listed first.
func ClusterAndSelect(t *dataset.Table, features []string, target string, threshold float64) (*Result, error) {
	if len(features) == 0 {
		return nil, errors.NewDataError("ClusterAndSelect", "feature list is empty")
	}
	if missing := t.Missing(append(append([]string(nil), features...), target)...); len(missing) > 0 {
		return nil, errors.NewDataError("ClusterAndSelect", "columns not found", missing...)
	}
	if threshold < 0 || math.IsNaN(threshold) {
		return nil, errors.NewValidationError("threshold", "must be non-negative", threshold)
	}

	logger := log.GetLoggerWithName("featureselection")

	X, err := t.Matrix(features...)
	if err != nil {
		return nil, err
	}
	y, err := t.Column(target)
	if err != nil {
		return nil, err
	}

	corr := stats.AbsCorrelation(stats.SpearmanMatrix(X))
	n := len(features)
	dist := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dist.SetSym(i, j, 1-corr.At(i, j))
		}
	}

	link, err := cluster.Link(dist, cluster.Ward)
	if err != nil {
		return nil, err
	}
	labels := cluster.FCluster(link, n, threshold)

	targetCorr := make([]float64, n)
	for j := 0; j < n; j++ {
		v := math.Abs(stats.Spearman(mat.Col(nil, j, X), y))
		if math.IsNaN(v) {
			v = 0
		}
		targetCorr[j] = v
	}

	nClusters := 0
	for _, l := range labels {
		if l > nClusters {
			nClusters = l
		}
	}
	res := &Result{
		Clusters:          make([]Cluster, nClusters),
		Selected:          make([]string, nClusters),
		Features:          append([]string(nil), features...),
		Correlation:       corr,
		TargetCorrelation: targetCorr,
		Linkage:           link,
		Labels:            labels,
	}
	best := make([]int, nClusters)
	for k := range best {
		best[k] = -1
		res.Clusters[k].ID = k + 1
	}
	for j, l := range labels {
		k := l - 1
		res.Clusters[k].Features = append(res.Clusters[k].Features, features[j])
		if best[k] < 0 || targetCorr[j] > targetCorr[best[k]] {
			best[k] = j
		}
	}
	for k, j := range best {
		res.Selected[k] = features[j]
	}

	logger.Info("features clustered",
		log.FeaturesKey, n,
		log.ClustersKey, nClusters,
		log.ThresholdKey, threshold,
		"selected", res.Selected,
	)
	return res, nil
}

// ClusterOf returns the cluster that holds feature, or nil.
func (r *Result) ClusterOf(feature string) *Cluster {
	for i := range r.Clusters {
		for _, f := range r.Clusters[i].Features {
			if f == feature {
				return &r.Clusters[i]
			}
		}
	}
	return nil
}
