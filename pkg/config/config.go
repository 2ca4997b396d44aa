// Package config loads the settings of a cvtune run.
//
// Values are layered: defaults, then an optional YAML config file, then
// CVTUNE_* environment variables (a .env file is read first when present),
// then any command-line flags bound by the caller.
package config

import (
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/shrubheight/cvtune/featureselection"
	"github.com/shrubheight/cvtune/pipeline"
	"github.com/shrubheight/cvtune/pkg/errors"
)

// EnvPrefix is the prefix of the environment variables read by Load.
const EnvPrefix = "CVTUNE"

// CVConfig configures the outer k-fold.
type CVConfig struct {
	NSplits int    `mapstructure:"n_splits" yaml:"n_splits"`
	Seed    uint64 `mapstructure:"seed" yaml:"seed"`
}

// SearchConfig configures the randomized search inside each fold.
type SearchConfig struct {
	NIter      int    `mapstructure:"n_iter" yaml:"n_iter"`
	InnerFolds int    `mapstructure:"inner_folds" yaml:"inner_folds"`
	Seed       uint64 `mapstructure:"seed" yaml:"seed"`
	NJobs      int    `mapstructure:"n_jobs" yaml:"n_jobs"`
}

// ImportanceConfig configures permutation importance.
type ImportanceConfig struct {
	NRepeats int    `mapstructure:"n_repeats" yaml:"n_repeats"`
	Seed     uint64 `mapstructure:"seed" yaml:"seed"`
}

// Config is the effective configuration of a run.
type Config struct {
	Input    string   `mapstructure:"input" yaml:"input"`
	Target   string   `mapstructure:"target" yaml:"target"`
	Features []string `mapstructure:"features" yaml:"features"`

	Model     string  `mapstructure:"model" yaml:"model"`
	Method    string  `mapstructure:"method" yaml:"method"`
	Threshold float64 `mapstructure:"threshold" yaml:"threshold"`
	VIF       float64 `mapstructure:"vif_threshold" yaml:"vif_threshold"`

	CV         CVConfig         `mapstructure:"cv" yaml:"cv"`
	Search     SearchConfig     `mapstructure:"search" yaml:"search"`
	Importance ImportanceConfig `mapstructure:"importance" yaml:"importance"`

	OutputDir   string `mapstructure:"output_dir" yaml:"output_dir"`
	StorePath   string `mapstructure:"store" yaml:"store"`
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("input", "")
	v.SetDefault("target", "")
	v.SetDefault("features", []string{})
	v.SetDefault("model", string(pipeline.RF))
	v.SetDefault("method", string(pipeline.KFoldMethod))
	v.SetDefault("threshold", featureselection.DefaultThreshold)
	v.SetDefault("vif_threshold", featureselection.DefaultVIFThreshold)

	v.SetDefault("cv.n_splits", 10)
	v.SetDefault("cv.seed", 42)
	v.SetDefault("search.n_iter", 100)
	v.SetDefault("search.inner_folds", 5)
	v.SetDefault("search.seed", 0)
	v.SetDefault("search.n_jobs", 0)
	v.SetDefault("importance.n_repeats", 10)
	v.SetDefault("importance.seed", 0)

	v.SetDefault("output_dir", "out")
	v.SetDefault("store", "out/runs.db")
	v.SetDefault("metrics_file", "")
	v.SetDefault("log_level", "info")
}

// Load builds the configuration. path and envFile are optional; a missing
// envFile is ignored, a missing config file is an error. bind, when non-nil,
// can attach command-line flags to the viper instance before decoding.
func Load(path, envFile string, bind func(v *viper.Viper) error) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "load env file %s", envFile)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}
	if bind != nil {
		if err := bind(v); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	// 環境変数の "a, b" は空白付きの要素になる
	cfg.Features = splitList(strings.Join(cfg.Features, ","))
	return &cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the values a run depends on.
func (c *Config) Validate() error {
	if _, _, err := pipeline.Resolve(pipeline.ModelID(c.Model)); err != nil {
		return err
	}
	valid := false
	var methods []string
	for _, m := range pipeline.Methods() {
		methods = append(methods, string(m))
		valid = valid || string(m) == c.Method
	}
	if !valid {
		return errors.NewConfigurationError("method", c.Method, methods)
	}
	switch {
	case c.Threshold < 0:
		return errors.NewValidationError("threshold", "must be non-negative", c.Threshold)
	case c.VIF <= 1:
		return errors.NewValidationError("vif_threshold", "must be greater than 1", c.VIF)
	case c.CV.NSplits < 2:
		return errors.NewValidationError("cv.n_splits", "must be at least 2", c.CV.NSplits)
	case c.Search.NIter < 1:
		return errors.NewValidationError("search.n_iter", "must be at least 1", c.Search.NIter)
	case c.Search.InnerFolds < 2:
		return errors.NewValidationError("search.inner_folds", "must be at least 2", c.Search.InnerFolds)
	case c.Search.NJobs < 0:
		return errors.NewValidationError("search.n_jobs", "must be non-negative", c.Search.NJobs)
	case c.Importance.NRepeats < 1:
		return errors.NewValidationError("importance.n_repeats", "must be at least 1", c.Importance.NRepeats)
	}
	return nil
}

// RunOptions converts the configuration into pipeline options.
func (c *Config) RunOptions() pipeline.RunOptions {
	ev := pipeline.NewEvaluator()
	ev.NIter = c.Search.NIter
	ev.InnerFolds = c.Search.InnerFolds
	ev.SearchSeed = c.Search.Seed
	ev.NJobs = c.Search.NJobs
	ev.NRepeats = c.Importance.NRepeats
	ev.ImportanceSeed = c.Importance.Seed
	return pipeline.RunOptions{
		CV: pipeline.CVOptions{NSplits: c.CV.NSplits, Seed: c.CV.Seed, Evaluator: ev},
	}
}

// Write encodes the configuration as YAML.
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return errors.Wrap(err, "encode config")
	}
	return enc.Close()
}
