package model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/shrubheight/cvtune/pkg/errors"
)

// ColumnVector returns the first column of m as a new slice.
func ColumnVector(m mat.Matrix) []float64 {
	r, _ := m.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = m.At(i, 0)
	}
	return out
}

// ColumnMatrix wraps v as an (n×1) matrix without copying.
func ColumnMatrix(v []float64) *mat.Dense {
	return mat.NewDense(len(v), 1, v)
}

// SelectRows copies the rows of X at idx into a new matrix.
func SelectRows(X mat.Matrix, idx []int) *mat.Dense {
	_, c := X.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for i, row := range idx {
		for j := 0; j < c; j++ {
			out.Set(i, j, X.At(row, j))
		}
	}
	return out
}

// CheckXY validates that X is non-empty and y is a column with one entry per row.
func CheckXY(op string, X, y mat.Matrix) (rows, cols int, err error) {
	rows, cols = X.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, errors.WithStack(errors.ErrEmptyData)
	}
	yr, yc := y.Dims()
	if yr != rows {
		return 0, 0, errors.NewDimensionError(op, rows, yr, 0)
	}
	if yc != 1 {
		return 0, 0, errors.NewValueError(op, "y must be a single column")
	}
	return rows, cols, nil
}

// Rows copies X into a slice of row slices, the layout tree and neighbor
// searches work on.
func Rows(X mat.Matrix) [][]float64 {
	r, c := X.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = make([]float64, c)
		for j := 0; j < c; j++ {
			out[i][j] = X.At(i, j)
		}
	}
	return out
}
