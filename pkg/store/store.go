// Package store persists run records in a BoltDB file.
//
// Records are encoded as YAML, which keeps NaN scores intact, and
// compressed with zstd. Keys start with the UTC start time so a cursor walk
// returns runs in chronological order.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.etcd.io/bbolt"
	"gopkg.in/yaml.v3"

	"github.com/shrubheight/cvtune/metrics"
	"github.com/shrubheight/cvtune/pipeline"
	"github.com/shrubheight/cvtune/pkg/errors"
	"github.com/shrubheight/cvtune/report"
)

const runsBucket = "runs"

// ErrRunNotFound is returned by Get for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// FeatureImportance is the summary of one feature's permutation importance.
type FeatureImportance struct {
	Feature string  `yaml:"feature"`
	Median  float64 `yaml:"median"`
}

// Record is the stored summary of one RunModel call.
type Record struct {
	ID             string                 `yaml:"id"`
	Model          string                 `yaml:"model"`
	Method         string                 `yaml:"method"`
	Started        time.Time              `yaml:"started"`
	ElapsedSeconds float64                `yaml:"elapsed_seconds"`
	Input          string                 `yaml:"input,omitempty"`
	Target         string                 `yaml:"target,omitempty"`
	Rows           int                    `yaml:"rows"`
	Features       []string               `yaml:"features"`
	Stats          *metrics.Summary       `yaml:"stats,omitempty"`
	Importances    []FeatureImportance    `yaml:"importances"`
	Folds          []pipeline.FoldSummary `yaml:"folds"`
}

// NewRecord summarizes res. Importances are ranked by descending median.
func NewRecord(res *pipeline.RunResult, started time.Time) (*Record, error) {
	rec := &Record{
		ID:             RunID(started, string(res.Model)),
		Model:          string(res.Model),
		Method:         string(res.Method),
		Started:        started.UTC(),
		ElapsedSeconds: res.Elapsed.Seconds(),
		Rows:           len(res.Predictions),
		Features:       res.FeatureNames,
		Stats:          res.Stats,
		Folds:          res.Folds,
	}
	names := res.FeatureNames
	if names == nil && res.Importances != nil {
		_, c := res.Importances.Dims()
		names = make([]string, c)
		for j := range names {
			names[j] = fmt.Sprintf("x%d", j)
		}
	}
	if res.Importances != nil {
		ranks, err := report.RankByMedian(res.Importances, names)
		if err != nil {
			return nil, err
		}
		for _, r := range ranks {
			rec.Importances = append(rec.Importances, FeatureImportance{Feature: r.Feature, Median: r.Median})
		}
	}
	return rec, nil
}

// RunID builds the key of a run started at t.
func RunID(t time.Time, model string) string {
	return t.UTC().Format("20060102T150405.000000000Z") + "_" + model
}

// Store is a run store backed by BoltDB.
type Store struct {
	db  *bbolt.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create store directory")
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(runsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create runs bucket")
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "zstd encoder")
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "zstd decoder")
	}
	return &Store{db: db, enc: enc, dec: dec}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.dec.Close()
	if err := s.enc.Close(); err != nil {
		s.db.Close()
		return err
	}
	return s.db.Close()
}

// Put stores rec under rec.ID, replacing any previous record.
func (s *Store) Put(rec *Record) error {
	if rec.ID == "" {
		return errors.NewValidationError("id", "must not be empty", rec.ID)
	}
	data, err := yaml.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal run record")
	}
	packed := s.enc.EncodeAll(data, nil)
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).Put([]byte(rec.ID), packed)
	})
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (*Record, error) {
	var rec *Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(runsBucket)).Get([]byte(id))
		if v == nil {
			return errors.Wrapf(ErrRunNotFound, "%q", id)
		}
		var err error
		rec, err = s.decode(v)
		return err
	})
	return rec, err
}

// List returns the stored records in chronological order. A non-empty
// model keeps only that model's runs.
func (s *Store) List(model string) ([]*Record, error) {
	var out []*Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).ForEach(func(k, v []byte) error {
			rec, err := s.decode(v)
			if err != nil {
				return errors.Wrapf(err, "run %s", k)
			}
			if model == "" || rec.Model == model {
				out = append(out, rec)
			}
			return nil
		})
	})
	return out, err
}

// Delete removes a record; deleting an unknown id is not an error.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).Delete([]byte(id))
	})
}

func (s *Store) decode(v []byte) (*Record, error) {
	// bboltの値はトランザクション外では無効なのでDecodeAllでコピーする
	data, err := s.dec.DecodeAll(v, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decompress with zstd")
	}
	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(err, "unmarshal run record")
	}
	return &rec, nil
}
