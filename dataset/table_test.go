package dataset

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrubheight/cvtune/pkg/errors"
)

const sample = `height,ndvi,slope,aspect
1.5,0.2,10,NA
2.0,0.4,12,180
,0.6,14,90
`

func TestReadCSV(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, []string{"height", "ndvi", "slope", "aspect"}, tbl.Names())
	assert.Equal(t, 3, tbl.NRows())

	h, err := tbl.Column("height")
	require.NoError(t, err)
	assert.Equal(t, 1.5, h[0])
	assert.True(t, math.IsNaN(h[2]))

	a, err := tbl.Column("aspect")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(a[0]))
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	_, err = ReadCSV(strings.NewReader("a,b\n1,x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "b"`)

	_, err = ReadCSV(strings.NewReader("a,b\n1,2,3\n"))
	assert.Error(t, err)
}

func TestTable_MatrixAndSelect(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(sample))
	require.NoError(t, err)

	X, err := tbl.Matrix("slope", "ndvi")
	require.NoError(t, err)
	r, c := X.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 14.0, X.At(2, 0))
	assert.Equal(t, 0.4, X.At(1, 1))

	y, err := tbl.Target("height")
	require.NoError(t, err)
	assert.Equal(t, 2.0, y.At(1, 0))

	_, err = tbl.Matrix("slope", "elevation")
	var dataErr *errors.DataError
	require.True(t, errors.As(err, &dataErr))
	assert.Equal(t, []string{"elevation"}, dataErr.Missing)

	sub, err := tbl.Select("ndvi", "height")
	require.NoError(t, err)
	assert.Equal(t, []string{"ndvi", "height"}, sub.Names())
	assert.Equal(t, []string{"x"}, sub.Missing("ndvi", "x"))
}

func TestNewTable_Validation(t *testing.T) {
	_, err := NewTable([]string{"a", "a"}, [][]float64{{1}, {2}})
	assert.Error(t, err)

	_, err = NewTable([]string{"a", "b"}, [][]float64{{1, 2}, {3}})
	assert.Error(t, err)

	_, err = NewTable([]string{"a"}, nil)
	assert.Error(t, err)
}

func TestTable_WriteCSV_RoundTrip(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(sample))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteCSV(&buf))
	assert.True(t, strings.HasPrefix(buf.String(), "height,ndvi,slope,aspect\n1.5,0.2,10,\n"))

	again, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, tbl.NRows(), again.NRows())
}
