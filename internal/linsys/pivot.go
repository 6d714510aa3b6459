package linsys

import (
	"fmt"
	"strings"

	"github.com/23skdu/longbow-jordan/internal/simd"
)

// PivotStrategy selects how a pivot row is chosen for a column.
type PivotStrategy int

const (
	// PivotFirstNonZero keeps the current row when its element is non-zero,
	// otherwise takes the first row below it with a non-zero element.
	PivotFirstNonZero PivotStrategy = iota
	// PivotMaxAbs takes the row with the largest magnitude in the column
	// (partial pivoting). Ties resolve to the lowest row.
	PivotMaxAbs
)

func (p PivotStrategy) String() string {
	switch p {
	case PivotFirstNonZero:
		return "first"
	case PivotMaxAbs:
		return "maxabs"
	default:
		return fmt.Sprintf("PivotStrategy(%d)", int(p))
	}
}

// ParsePivotStrategy maps "first" / "maxabs" (case-insensitive) to a strategy.
// An empty string selects PivotFirstNonZero.
func ParsePivotStrategy(s string) (PivotStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first", "first-nonzero":
		return PivotFirstNonZero, nil
	case "maxabs", "partial":
		return PivotMaxAbs, nil
	default:
		return 0, fmt.Errorf("%q: %w", s, ErrUnknownPivot)
	}
}

// findPivot returns the row in [start, rows) to use as pivot for col, or -1
// when every candidate is effectively zero.
func findPivot[T Float](m *Matrix[T], col, start int, eps T, strategy PivotStrategy) int {
	switch strategy {
	case PivotMaxAbs:
		column := make([]T, m.rows-start)
		for i := range column {
			column[i] = m.data[(start+i)*m.cols+col]
		}
		best := simd.MaxAbsIndex(column)
		if best < 0 || IsZero(column[best], eps) {
			return -1
		}
		return start + best
	default:
		for r := start; r < m.rows; r++ {
			if !IsZero(m.data[r*m.cols+col], eps) {
				return r
			}
		}
		return -1
	}
}

// normalizeRow divides row[col:] by the pivot so that (row, col) becomes 1.
func normalizeRow[T Float](m *Matrix[T], row, col int) {
	r := m.Row(row)
	pivot := r[col]
	simd.DivUnrolled(r[col:], pivot)
	r[col] = 1
}
