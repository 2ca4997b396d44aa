// Standard attribute keys for cvtune log records.
//
// Keys use a dotted hierarchy ("cv.fold", "search.best_score") so that JSON
// logs can be filtered per concern.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "RandomForestRegressor".
	ModelNameKey = "model.name"

	// ModelIDKey is the registry identifier, e.g. "RF" or "SVM_C".
	ModelIDKey = "model.id"

	// OperationKey names the operation being performed ("fit", "predict", ...).
	OperationKey = "ml.operation"

	// ComponentKey identifies the package doing the work.
	ComponentKey = "ml.component"

	// MethodKey is the evaluation method ("k-fold" or "dataset").
	MethodKey = "run.method"

	// RunIDKey identifies a stored run.
	RunIDKey = "run.id"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"

	// FeatureKey names a single feature column.
	FeatureKey = "data.feature"

	// ClustersKey is the number of correlation clusters found.
	ClustersKey = "data.clusters"
)

// Cross-validation and search progress.
const (
	FoldKey       = "cv.fold"
	NSplitsKey    = "cv.n_splits"
	ProgressKey   = "cv.progress_pct"
	TrainSizeKey  = "cv.train_size"
	TestSizeKey   = "cv.test_size"
	RepeatKey     = "importance.repeat"
	NIterKey      = "search.n_iter"
	EvaluatedKey  = "search.evaluated"
	BestParamsKey = "search.best_params"
	BestScoreKey  = "search.best_score"
	RandomSeedKey = "config.random_seed"
	ThresholdKey  = "select.threshold"
	VIFKey        = "select.vif"
)

// Metrics and timing.
const (
	DurationMsKey      = "perf.duration_ms"
	DurationSecondsKey = "perf.duration_seconds"
	R2ScoreKey         = "metrics.r2_score"
	RMSEKey            = "metrics.rmse"
	BiasKey            = "metrics.bias_pct"
	AccuracyKey        = "metrics.accuracy"
	IterationKey       = "training.iteration"
)

// Error context.
const (
	ErrorTypeKey = "error.type"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"
	OperationSearch    = "search"
	OperationPermute   = "permutation_importance"
)
