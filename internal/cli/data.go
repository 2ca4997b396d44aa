package cli

import (
	"os"
	"path/filepath"

	"github.com/shrubheight/cvtune/dataset"
	"github.com/shrubheight/cvtune/pkg/errors"
)

// loadInput reads the configured CSV and resolves the feature list. An
// empty feature list means every column except the target.
func loadInput(needTarget bool) (*dataset.Table, []string, error) {
	if cfg.Input == "" {
		return nil, nil, errors.NewValidationError("input", "an input CSV is required", cfg.Input)
	}
	if needTarget && cfg.Target == "" {
		return nil, nil, errors.NewValidationError("target", "a target column is required", cfg.Target)
	}
	t, err := dataset.LoadCSV(cfg.Input)
	if err != nil {
		return nil, nil, err
	}

	features := cfg.Features
	if len(features) == 0 {
		for _, name := range t.Names() {
			if name != cfg.Target {
				features = append(features, name)
			}
		}
	}
	if missing := t.Missing(features...); len(missing) > 0 {
		return nil, nil, errors.NewDataError("loadInput", "columns not found in "+cfg.Input, missing...)
	}
	return t, features, nil
}

func writeTableFile(path string, t *dataset.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create output file")
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
