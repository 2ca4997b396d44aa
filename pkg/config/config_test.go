package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/shrubheight/cvtune/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", "", nil)
	require.NoError(t, err)

	assert.Equal(t, "RF", cfg.Model)
	assert.Equal(t, "k-fold", cfg.Method)
	assert.Equal(t, 0.4, cfg.Threshold)
	assert.Equal(t, 10, cfg.CV.NSplits)
	assert.Equal(t, uint64(42), cfg.CV.Seed)
	assert.Equal(t, 100, cfg.Search.NIter)
	assert.Equal(t, 5, cfg.Search.InnerFolds)
	assert.Equal(t, 10, cfg.Importance.NRepeats)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cvtune.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
input: plots.csv
target: height
features: [p95, cover, rumple]
model: GBM
cv:
  n_splits: 5
search:
  n_iter: 20
`), 0o600))

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("CVTUNE_SEARCH_SEED=7\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CVTUNE_SEARCH_SEED") })
	t.Setenv("CVTUNE_METHOD", "dataset")

	cfg, err := Load(path, envFile, func(v *viper.Viper) error {
		v.Set("importance.n_repeats", 3)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "plots.csv", cfg.Input)
	assert.Equal(t, []string{"p95", "cover", "rumple"}, cfg.Features)
	assert.Equal(t, "GBM", cfg.Model)
	assert.Equal(t, "dataset", cfg.Method)
	assert.Equal(t, 5, cfg.CV.NSplits)
	assert.Equal(t, 20, cfg.Search.NIter)
	assert.Equal(t, uint64(7), cfg.Search.Seed)
	assert.Equal(t, 3, cfg.Importance.NRepeats)

	opts := cfg.RunOptions()
	assert.Equal(t, 5, opts.CV.NSplits)
	assert.Equal(t, 20, opts.CV.Evaluator.NIter)
	assert.Equal(t, uint64(7), opts.CV.Evaluator.SearchSeed)
	assert.Equal(t, 3, opts.CV.Evaluator.NRepeats)
}

func TestLoad_FeaturesFromEnv(t *testing.T) {
	t.Setenv("CVTUNE_FEATURES", "a, b,c")
	cfg, err := Load("", "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Features)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "", nil)
	assert.Error(t, err)

	_, err = Load("", filepath.Join(t.TempDir(), "missing.env"), nil)
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	base, err := Load("", "", nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown model", func(c *Config) { c.Model = "NOPE" }},
		{"unknown method", func(c *Config) { c.Method = "loo" }},
		{"negative threshold", func(c *Config) { c.Threshold = -0.1 }},
		{"vif threshold", func(c *Config) { c.VIF = 1 }},
		{"one split", func(c *Config) { c.CV.NSplits = 1 }},
		{"no iterations", func(c *Config) { c.Search.NIter = 0 }},
		{"one inner fold", func(c *Config) { c.Search.InnerFolds = 1 }},
		{"no repeats", func(c *Config) { c.Importance.NRepeats = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *base
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	c := *base
	c.Model = "NOPE"
	var cfgErr *errors.ConfigurationError
	assert.True(t, errors.As(c.Validate(), &cfgErr))
}

func TestWrite(t *testing.T) {
	cfg, err := Load("", "", nil)
	require.NoError(t, err)
	cfg.Features = []string{"p95"}

	var buf bytes.Buffer
	require.NoError(t, cfg.Write(&buf))

	var back Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, *cfg, back)
	assert.Contains(t, buf.String(), "n_splits: 10")
}
