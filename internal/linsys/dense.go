package linsys

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/23skdu/longbow-jordan/internal/simd"
)

// Augment builds the augmented matrix [a|b] in a fresh buffer.
func Augment(a mat.Matrix, b mat.Vector) (*Matrix[float64], error) {
	r, c := a.Dims()
	if b.Len() != r {
		return nil, fmt.Errorf("Augment: A is %dx%d, b has %d entries: %w", r, c, b.Len(), ErrDimensionMismatch)
	}
	cols := c + 1
	data := make([]float64, r*cols)
	for i := 0; i < r; i++ {
		row := data[i*cols : (i+1)*cols]
		for j := 0; j < c; j++ {
			row[j] = a.At(i, j)
		}
		row[c] = b.AtVec(i)
	}
	return NewMatrix(r, cols, data)
}

// Coefficients copies the coefficient block A into a gonum matrix.
func (m *Matrix[T]) Coefficients() *mat.Dense {
	nvars := m.NumVariables()
	out := mat.NewDense(m.rows, nvars, nil)
	for i := 0; i < m.rows; i++ {
		row := m.Row(i)
		for j := 0; j < nvars; j++ {
			out.Set(i, j, float64(row[j]))
		}
	}
	return out
}

// Residual returns ‖A·x − b‖∞.
func Residual(a mat.Matrix, x, b []float64) (float64, error) {
	r, c := a.Dims()
	if len(x) != c || len(b) != r || c == 0 {
		return 0, fmt.Errorf("Residual: A is %dx%d, len(x)=%d, len(b)=%d: %w", r, c, len(x), len(b), ErrDimensionMismatch)
	}
	var ax mat.VecDense
	ax.MulVec(a, mat.NewVecDense(c, x))
	ax.SubVec(&ax, mat.NewVecDense(r, b))
	return mat.Norm(&ax, math.Inf(1)), nil
}

// Residual evaluates ‖A·x − b‖∞ against m, which must still hold the
// original (unreduced) system.
func (m *Matrix[T]) Residual(x []T) (T, error) {
	nvars := m.NumVariables()
	if len(x) != nvars {
		return 0, fmt.Errorf("Residual: len(x)=%d, want %d: %w", len(x), nvars, ErrDimensionMismatch)
	}
	ax := make([]T, m.rows)
	simd.MatVecMul(ax, m.data, x, m.rows, m.cols)
	var worst T
	last := m.cols - 1
	for i, v := range ax {
		d := v - m.data[i*m.cols+last]
		if d < 0 {
			d = -d
		}
		if d > worst {
			worst = d
		}
	}
	return worst, nil
}
