// Package pipeline ties the estimators, the randomized search and the
// permutation importance into the cross-validated model run.
package pipeline

import (
	"github.com/shrubheight/cvtune/core/model"
	"github.com/shrubheight/cvtune/linear"
	"github.com/shrubheight/cvtune/pkg/errors"
	"github.com/shrubheight/cvtune/sklearn/ensemble"
	ms "github.com/shrubheight/cvtune/sklearn/model_selection"
	"github.com/shrubheight/cvtune/sklearn/neighbors"
	"github.com/shrubheight/cvtune/sklearn/svm"
	"github.com/shrubheight/cvtune/sklearn/tree"
)

var (
	_ model.Regressor  = (*linear.LinearRegression)(nil)
	_ model.Regressor  = (*tree.DecisionTreeRegressor)(nil)
	_ model.Regressor  = (*neighbors.KNeighborsRegressor)(nil)
	_ model.Regressor  = (*svm.SVR)(nil)
	_ model.Classifier = (*svm.SVC)(nil)
	_ model.Regressor  = (*ensemble.GradientBoostingRegressor)(nil)
	_ model.Classifier = (*ensemble.GradientBoostingClassifier)(nil)
	_ model.Regressor  = (*ensemble.RandomForestRegressor)(nil)
	_ model.Classifier = (*ensemble.RandomForestClassifier)(nil)
)

// ModelID names one of the supported estimator and search-space pairs.
type ModelID string

const (
	MLR  ModelID = "MLR"   // linear regression, no search
	DT   ModelID = "DT"    // decision tree regressor
	KNN  ModelID = "KNN"   // k-nearest neighbors regressor
	SVM  ModelID = "SVM"   // ε-SVR with RBF kernel
	SVMC ModelID = "SVM_C" // C-SVC with RBF kernel
	GBM  ModelID = "GBM"   // gradient boosting regressor
	GBMC ModelID = "GBM_C" // gradient boosting classifier
	RF   ModelID = "RF"    // random forest regressor
	RFC  ModelID = "RF_C"  // random forest classifier
)

// ModelIDs returns every supported identifier.
func ModelIDs() []ModelID {
	return []ModelID{MLR, DT, KNN, SVM, SVMC, GBM, GBMC, RF, RFC}
}

func modelIDStrings() []string {
	ids := ModelIDs()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// IsClassifier reports whether id resolves to a classifier.
func (id ModelID) IsClassifier() bool {
	return id == SVMC || id == GBMC || id == RFC
}

// Resolve returns a factory of unfitted estimators with default
// hyperparameters and the search space sampled for id. An empty space means
// the defaults are used as they are.
func Resolve(id ModelID) (model.Factory, ms.SearchSpace, error) {
	switch id {
	case MLR:
		return func() model.Estimator { return linear.NewLinearRegression() }, ms.SearchSpace{}, nil
	case DT:
		return func() model.Estimator { return tree.NewDecisionTreeRegressor() }, ms.SearchSpace{
			"max_depth":        ms.RandInt{Low: 2, High: 20},
			"min_samples_leaf": ms.RandInt{Low: 5, High: 100},
		}, nil
	case KNN:
		return func() model.Estimator { return neighbors.NewKNeighborsRegressor() }, ms.SearchSpace{
			"leaf_size":   ms.RandInt{Low: 1, High: 50},
			"n_neighbors": ms.RandInt{Low: 1, High: 30},
			"p":           ms.RandInt{Low: 1, High: 5},
		}, nil
	case SVM:
		return func() model.Estimator { return svm.NewSVR() }, svmSpace(), nil
	case SVMC:
		return func() model.Estimator { return svm.NewSVC() }, svmSpace(), nil
	case GBM:
		return func() model.Estimator { return ensemble.NewGradientBoostingRegressor() }, boostingSpace(), nil
	case GBMC:
		return func() model.Estimator { return ensemble.NewGradientBoostingClassifier() }, boostingSpace(), nil
	case RF:
		return func() model.Estimator { return ensemble.NewRandomForestRegressor() }, forestSpace(), nil
	case RFC:
		return func() model.Estimator { return ensemble.NewRandomForestClassifier() }, forestSpace(), nil
	default:
		return nil, nil, errors.NewConfigurationError("model", string(id), modelIDStrings())
	}
}

func svmSpace() ms.SearchSpace {
	return ms.SearchSpace{
		"gamma": ms.LogUniform{Low: 1e-4, High: 1},
		"C":     ms.LogUniform{Low: 0.1, High: 100},
	}
}

func boostingSpace() ms.SearchSpace {
	return ms.SearchSpace{
		"n_estimators":   ms.RandInt{Low: 1, High: 500},
		"max_leaf_nodes": ms.RandInt{Low: 2, High: 100},
		"learning_rate":  ms.LogUniform{Low: 0.01, High: 1},
	}
}

func forestSpace() ms.SearchSpace {
	return ms.SearchSpace{
		"n_estimators":   ms.RandInt{Low: 1, High: 500},
		"max_leaf_nodes": ms.RandInt{Low: 2, High: 100},
	}
}
