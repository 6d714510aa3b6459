// Package linsys solves dense linear systems given as an augmented matrix
// [A|b] using Gauss-Jordan elimination. The elimination step can be split
// across worker goroutines; results do not depend on the worker count.
package linsys

import (
	"fmt"

	"github.com/23skdu/longbow-jordan/internal/simd"
)

// Matrix is a row-major view over a caller-owned buffer holding an
// augmented matrix. The last column is the right-hand side.
//
// The solver mutates the buffer in place and never reallocates it.
type Matrix[T Float] struct {
	data []T
	rows int
	cols int
}

// NewMatrix wraps data as a rows x cols augmented matrix. data may be longer
// than rows*cols; the tail is ignored and never touched.
func NewMatrix[T Float](rows, cols int, data []T) (*Matrix[T], error) {
	if rows <= 0 || cols <= 1 {
		return nil, fmt.Errorf("NewMatrix: %dx%d: %w", rows, cols, ErrInvalidDimensions)
	}
	if len(data) < rows*cols {
		return nil, fmt.Errorf("NewMatrix: have %d values, need %d: %w", len(data), rows*cols, ErrBufferTooSmall)
	}
	return &Matrix[T]{
		data: data[:rows*cols : rows*cols],
		rows: rows,
		cols: cols,
	}, nil
}

// FromRows copies a slice of equal-length rows into a new matrix.
func FromRows[T Float](rows [][]T) (*Matrix[T], error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("FromRows: no rows: %w", ErrInvalidDimensions)
	}
	cols := len(rows[0])
	data := make([]T, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("FromRows: row %d has %d columns, want %d: %w", i, len(r), cols, ErrDimensionMismatch)
		}
		data = append(data, r...)
	}
	return NewMatrix(len(rows), cols, data)
}

// Dims returns (rows, cols) including the right-hand side column.
func (m *Matrix[T]) Dims() (int, int) {
	return m.rows, m.cols
}

// NumVariables returns cols-1.
func (m *Matrix[T]) NumVariables() int {
	return m.cols - 1
}

func (m *Matrix[T]) checkIndex(i, j int) {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(fmt.Errorf("(%d,%d) in %dx%d: %w", i, j, m.rows, m.cols, ErrIndexOutOfRange))
	}
}

// At returns the element at (i, j). It panics on out-of-range indices.
func (m *Matrix[T]) At(i, j int) T {
	m.checkIndex(i, j)
	return m.data[i*m.cols+j]
}

// Set stores v at (i, j). It panics on out-of-range indices.
func (m *Matrix[T]) Set(i, j int, v T) {
	m.checkIndex(i, j)
	m.data[i*m.cols+j] = v
}

// Row returns row i as a slice aliasing the backing buffer.
func (m *Matrix[T]) Row(i int) []T {
	m.checkIndex(i, 0)
	start := i * m.cols
	return m.data[start : start+m.cols : start+m.cols]
}

// RawData returns the backing buffer limited to rows*cols.
func (m *Matrix[T]) RawData() []T {
	return m.data
}

// RHS returns a copy of the right-hand side column.
func (m *Matrix[T]) RHS() []T {
	out := make([]T, m.rows)
	last := m.cols - 1
	for i := range out {
		out[i] = m.data[i*m.cols+last]
	}
	return out
}

// ToRows copies the matrix into a slice of rows.
func (m *Matrix[T]) ToRows() [][]T {
	out := make([][]T, m.rows)
	for i := range out {
		out[i] = append([]T(nil), m.Row(i)...)
	}
	return out
}

// Clone returns a deep copy backed by a fresh buffer.
func (m *Matrix[T]) Clone() *Matrix[T] {
	data := make([]T, len(m.data))
	copy(data, m.data)
	return &Matrix[T]{data: data, rows: m.rows, cols: m.cols}
}

// SwapRows exchanges rows a and b from column fromCol to the end.
func (m *Matrix[T]) SwapRows(a, b, fromCol int) {
	if a == b {
		return
	}
	simd.Swap(m.Row(a)[fromCol:], m.Row(b)[fromCol:])
}

// validate checks the numeric content. Shape is already guaranteed by the
// constructors.
func (m *Matrix[T]) validate() error {
	for idx, v := range m.data {
		if !isFinite(v) {
			return fmt.Errorf("element (%d,%d) = %v: %w", idx/m.cols, idx%m.cols, v, ErrNonFinite)
		}
	}
	return nil
}
