// Package dataset holds the named-column feature table the pipeline works
// on and its CSV loader.
package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/shrubheight/cvtune/pkg/errors"
)

// Table is an ordered set of named numeric columns of equal length.
// Missing cells are NaN.
type Table struct {
	names []string
	index map[string]int
	cols  [][]float64
	rows  int
}

// NewTable builds a table from column-major data.
func NewTable(names []string, cols [][]float64) (*Table, error) {
	if len(names) != len(cols) {
		return nil, errors.NewDimensionError("dataset.NewTable", len(names), len(cols), 1)
	}
	t := &Table{index: make(map[string]int, len(names))}
	for i, name := range names {
		if _, dup := t.index[name]; dup {
			return nil, errors.NewDataError("dataset.NewTable", "duplicate column "+strconv.Quote(name))
		}
		if i == 0 {
			t.rows = len(cols[i])
		} else if len(cols[i]) != t.rows {
			return nil, errors.NewDimensionError("dataset.NewTable", t.rows, len(cols[i]), 0)
		}
		t.index[name] = i
		t.names = append(t.names, name)
		t.cols = append(t.cols, cols[i])
	}
	return t, nil
}

// FromMatrix builds a table whose columns are the columns of X.
func FromMatrix(names []string, X mat.Matrix) (*Table, error) {
	_, c := X.Dims()
	cols := make([][]float64, c)
	for j := range cols {
		cols[j] = mat.Col(nil, j, X)
	}
	return NewTable(names, cols)
}

// Names returns the column names in order.
func (t *Table) Names() []string { return append([]string(nil), t.names...) }

// NRows returns the number of rows.
func (t *Table) NRows() int { return t.rows }

// Has reports whether the table has a column called name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Missing returns the names that are not columns of the table.
func (t *Table) Missing(names ...string) []string {
	var out []string
	for _, n := range names {
		if !t.Has(n) {
			out = append(out, n)
		}
	}
	return out
}

// Column returns the values of one column. The slice is shared with the table.
func (t *Table) Column(name string) ([]float64, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, errors.NewDataError("dataset.Column", "unknown column", name)
	}
	return t.cols[i], nil
}

// Matrix returns the named columns as an (n_rows × len(names)) matrix.
// With no names every column is returned.
func (t *Table) Matrix(names ...string) (*mat.Dense, error) {
	if len(names) == 0 {
		names = t.names
	}
	if missing := t.Missing(names...); len(missing) > 0 {
		return nil, errors.NewDataError("dataset.Matrix", "unknown columns", missing...)
	}
	if len(names) == 0 || t.rows == 0 {
		return nil, errors.WithStack(errors.ErrEmptyData)
	}
	out := mat.NewDense(t.rows, len(names), nil)
	for j, name := range names {
		out.SetCol(j, t.cols[t.index[name]])
	}
	return out, nil
}

// Target returns one column as an (n_rows × 1) matrix.
func (t *Table) Target(name string) (*mat.Dense, error) {
	col, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	return mat.NewDense(t.rows, 1, append([]float64(nil), col...)), nil
}

// Select returns a new table with only the named columns, in that order.
func (t *Table) Select(names ...string) (*Table, error) {
	if missing := t.Missing(names...); len(missing) > 0 {
		return nil, errors.NewDataError("dataset.Select", "unknown columns", missing...)
	}
	cols := make([][]float64, len(names))
	for j, name := range names {
		cols[j] = t.cols[t.index[name]]
	}
	return NewTable(names, cols)
}

// ReadCSV reads a table with a header row. Empty cells and the usual
// missing-value markers (NA, NaN, null) become NaN; any other non-numeric
// cell is an error.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.WithStack(errors.ErrEmptyData)
		}
		return nil, errors.Wrap(err, "read csv header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	cols := make([][]float64, len(header))
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read csv")
		}
		line++
		for j, cell := range rec {
			v, err := parseCell(cell)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d column %q", line, header[j])
			}
			cols[j] = append(cols[j], v)
		}
	}
	return NewTable(header, cols)
}

// LoadCSV opens path and reads it with ReadCSV.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open dataset")
	}
	defer f.Close()
	return ReadCSV(f)
}

func parseCell(cell string) (float64, error) {
	s := strings.TrimSpace(cell)
	switch strings.ToLower(s) {
	case "", "na", "nan", "null", "none":
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.NewValueError("dataset.ReadCSV", "non-numeric cell "+strconv.Quote(cell))
	}
	return v, nil
}

// WriteCSV writes the table with a header row. NaN cells are written empty.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.names); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	rec := make([]string, len(t.names))
	for i := 0; i < t.rows; i++ {
		for j := range t.cols {
			v := t.cols[j][i]
			if math.IsNaN(v) {
				rec[j] = ""
			} else {
				rec[j] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		if err := cw.Write(rec); err != nil {
			return errors.Wrap(err, "write csv")
		}
	}
	cw.Flush()
	return cw.Error()
}
