// Package cli implements the cvtune command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/shrubheight/cvtune/pkg/config"
	"github.com/shrubheight/cvtune/pkg/log"
)

var (
	configPath string
	envFile    string

	// cfg is loaded before every subcommand runs.
	cfg *config.Config
)

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"input":           "input",
	"target":          "target",
	"features":        "features",
	"threshold":       "threshold",
	"vif-threshold":   "vif_threshold",
	"model":           "model",
	"method":          "method",
	"n-splits":        "cv.n_splits",
	"cv-seed":         "cv.seed",
	"n-iter":          "search.n_iter",
	"inner-folds":     "search.inner_folds",
	"search-seed":     "search.seed",
	"n-jobs":          "search.n_jobs",
	"repeats":         "importance.n_repeats",
	"importance-seed": "importance.seed",
	"output-dir":      "output_dir",
	"store":           "store",
	"metrics-file":    "metrics_file",
	"log-level":       "log_level",
}

var rootCmd = &cobra.Command{
	Use:   "cvtune",
	Short: "Cross-validated model tuning for shrub height",
	Long: `cvtune selects uncorrelated predictors, tunes a regression or
classification model with a randomized search inside every fold of a
k-fold cross-validation, and reports out-of-fold predictions together
with permutation feature importances.

Settings come from defaults, an optional YAML file (--config), CVTUNE_*
environment variables (a .env file is read first) and flags, in that order.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML config file")
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file read before the environment")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("output-dir", "", "directory for CSV files and plots (default out)")
	pf.String("store", "", "run store database (default out/runs.db)")

	rootCmd.AddCommand(selectCmd, vifCmd, runCmd, runsCmd, configCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate(fmt.Sprintf("cvtune version %s\n", rootCmd.Version))
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(configPath, envFile, func(v *viper.Viper) error {
		return bindFlags(v, cmd)
	})
	if err != nil {
		return err
	}
	if err := log.SetupLogger(cfg.LogLevel, cmd.ErrOrStderr()); err != nil {
		return err
	}
	log.SetupWarnings(cmd.ErrOrStderr())
	return nil
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	var err error
	bind := func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		err = v.BindPFlag(key, f)
	}
	cmd.Flags().VisitAll(bind)
	cmd.InheritedFlags().VisitAll(bind)
	return err
}

// addDataFlags registers the flags shared by the commands reading a CSV.
func addDataFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("input", "i", "", "input CSV file")
	f.StringP("target", "t", "", "target column")
	f.StringSlice("features", nil, "feature columns (default: every column but the target)")
}
