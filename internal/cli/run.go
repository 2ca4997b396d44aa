package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shrubheight/cvtune/featureselection"
	"github.com/shrubheight/cvtune/pipeline"
	"github.com/shrubheight/cvtune/pkg/log"
	"github.com/shrubheight/cvtune/pkg/store"
	"github.com/shrubheight/cvtune/pkg/telemetry"
	"github.com/shrubheight/cvtune/report"
)

var runWithSelect bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Tune and cross-validate a model",
	Long: `Min-max scale the features, then either
  k-fold:  predict every row out-of-fold with a shuffled k-fold, tuning the
           model with a randomized search inside each training fold, or
  dataset: train on the rows with an observed target and predict every row.

Predictions, importances and plots are written to the output directory and
a summary of the run is saved in the run store. With --select the features
are first reduced to one per correlation cluster.`,
	Example: `  cvtune run -i plots.csv -t height --model RF --method k-fold
  CVTUNE_MODEL=SVM cvtune run --config cvtune.yaml`,
	RunE: runModel,
}

func init() {
	addDataFlags(runCmd)
	f := runCmd.Flags()
	f.String("model", "", "model id: MLR, DT, KNN, SVM, SVM_C, GBM, GBM_C, RF or RF_C (default RF)")
	f.String("method", "", "k-fold or dataset (default k-fold)")
	f.Int("n-splits", 0, "outer folds (default 10)")
	f.Uint64("cv-seed", 0, "seed of the outer shuffle (default 42)")
	f.Int("n-iter", 0, "search configurations per fold (default 100)")
	f.Int("inner-folds", 0, "folds of the inner search (default 5)")
	f.Uint64("search-seed", 0, "seed of the configuration sampler")
	f.Int("n-jobs", 0, "concurrent search fits (default: number of CPUs)")
	f.Int("repeats", 0, "permutation repeats (default 10)")
	f.Uint64("importance-seed", 0, "seed of the permutations")
	f.BoolVar(&runWithSelect, "select", false, "reduce the features with correlation clustering first")
	f.Float64("threshold", 0, "cluster distance threshold used by --select (default 0.4)")
	f.String("metrics-file", "", "write Prometheus metrics to this textfile")
}

func runModel(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	t, features, err := loadInput(true)
	if err != nil {
		return err
	}
	if runWithSelect {
		sel, err := featureselection.ClusterAndSelect(t, features, cfg.Target, cfg.Threshold)
		if err != nil {
			return err
		}
		features = sel.Selected
	}
	X, err := t.Matrix(features...)
	if err != nil {
		return err
	}
	y, err := t.Target(cfg.Target)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	id := pipeline.ModelID(cfg.Model)
	method := pipeline.Method(cfg.Method)
	opts := cfg.RunOptions()
	opts.FeatureNames = features
	opts.Metrics = telemetry.New()

	started := time.Now()
	res, err := pipeline.RunModel(ctx, X, y, id, method, opts)
	if err != nil {
		return err
	}
	logger := log.GetLoggerWithName("cli.run").With(log.ModelIDKey, cfg.Model, log.MethodKey, cfg.Method)

	dir := filepath.Join(cfg.OutputDir, fmt.Sprintf("%s_%s", cfg.Model, cfg.Method))
	if err := writeOutputs(dir, res); err != nil {
		return err
	}

	rec, err := store.NewRecord(res, started)
	if err != nil {
		return err
	}
	rec.Input = cfg.Input
	rec.Target = cfg.Target
	s, err := store.Open(cfg.StorePath)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Put(rec); err != nil {
		return err
	}
	logger.Info("run stored", log.RunIDKey, rec.ID)

	if cfg.MetricsFile != "" {
		if err := opts.Metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s finished in %s\n", rec.ID, res.Elapsed.Round(time.Millisecond))
	if res.Stats != nil {
		fmt.Fprintf(out, "r2=%.4f rmse=%.4f bias=%.2f%% rq75=%.4f (n=%d)\n",
			res.Stats.R2, res.Stats.RMSE, res.Stats.Bias, res.Stats.RQ75, res.Stats.N)
		if res.Method == pipeline.DatasetMethod {
			fmt.Fprintln(out, "note: dataset method scores are in-sample")
		}
	}
	if res.Classification != nil {
		fmt.Fprint(out, res.Classification.String())
	}
	fmt.Fprintf(out, "outputs written to %s\n", dir)
	return nil
}

func writeOutputs(dir string, res *pipeline.RunResult) error {
	if err := report.WritePredictions(filepath.Join(dir, "predictions.csv"), res.Observed, res.Predictions); err != nil {
		return err
	}
	if err := report.WriteImportances(filepath.Join(dir, "importances.csv"), res.Importances, res.FeatureNames); err != nil {
		return err
	}
	if err := report.ImportanceBoxPlot(filepath.Join(dir, "importance.png"), res.Importances, res.FeatureNames, report.DefaultTopFeatures); err != nil {
		return err
	}
	title := fmt.Sprintf("%s (%s)", res.Model, res.Method)
	if res.Stats != nil {
		title = fmt.Sprintf("%s  r²=%.3f  RMSE=%.3f", title, res.Stats.R2, res.Stats.RMSE)
	}
	return report.ScatterPlot(filepath.Join(dir, "scatter.png"), res.Observed, res.Predictions, title)
}
