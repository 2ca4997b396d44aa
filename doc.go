// Package cvtune predicts shrub height from plot-level predictors with a
// cross-validated, hyperparameter-tuned model and reports which predictors
// matter.
//
// A run has three stages:
//
//   - featureselection: cluster the predictors by Spearman correlation and
//     keep one per cluster (optionally filter by VIF or collapse each
//     cluster to its first principal component).
//   - pipeline: resolve a model id to an estimator and a search space,
//     min-max scale the predictors and run a shuffled k-fold in which every
//     training fold is tuned with a randomized search.
//   - report: out-of-fold predictions, permutation importances, plots and
//     agreement statistics.
//
// # Quick Start
//
//	t, err := dataset.LoadCSV("plots.csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sel, err := featureselection.ClusterAndSelect(t, features, "height", featureselection.DefaultThreshold)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	X, _ := t.Matrix(sel.Selected...)
//	y, _ := t.Target("height")
//
//	opts := pipeline.DefaultRunOptions()
//	opts.FeatureNames = sel.Selected
//	res, err := pipeline.RunModel(ctx, X, y, pipeline.RF, pipeline.KFoldMethod, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("r²=%.3f rmse=%.3f\n", res.Stats.R2, res.Stats.RMSE)
//
// # Packages
//
//   - core/model: estimator interfaces and matrix helpers
//   - core/parallel: bounded parallel loops
//   - linear, sklearn/tree, sklearn/neighbors, sklearn/svm, sklearn/ensemble:
//     the registered estimators
//   - sklearn/model_selection: KFold and RandomizedSearchCV
//   - sklearn/inspection: permutation importance
//   - sklearn/cluster: hierarchical clustering
//   - stats: ranks and Spearman correlation
//   - metrics: r², RMSE, run statistics, classification report
//   - pkg/config, pkg/log, pkg/errors, pkg/store, pkg/telemetry: ambient stack
//
// The cvtune command (cmd/cvtune) wraps all of this.
package cvtune
