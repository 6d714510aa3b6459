package linsys

import (
	"fmt"
)

// Result classifies the solution set of a reduced system.
type Result int

const (
	NoSolution        Result = 0
	UniqueSolution    Result = 1
	InfiniteSolutions Result = 2
)

func (r Result) String() string {
	switch r {
	case NoSolution:
		return "no_solution"
	case UniqueSolution:
		return "unique_solution"
	case InfiniteSolutions:
		return "infinite_solutions"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// MarshalText encodes the result by name.
func (r Result) MarshalText() ([]byte, error) {
	switch r {
	case NoSolution, UniqueSolution, InfiniteSolutions:
		return []byte(r.String()), nil
	}
	return nil, fmt.Errorf("linsys: cannot marshal %v", r)
}

// UnmarshalText is the inverse of MarshalText.
func (r *Result) UnmarshalText(b []byte) error {
	switch string(b) {
	case "no_solution":
		*r = NoSolution
	case "unique_solution":
		*r = UniqueSolution
	case "infinite_solutions":
		*r = InfiniteSolutions
	default:
		return fmt.Errorf("linsys: unknown result %q", b)
	}
	return nil
}

// Classify inspects a reduced matrix and returns its result together with
// the rank (rows with at least one non-zero coefficient).
//
// A row with zero coefficients and a non-zero right-hand side makes the
// system inconsistent no matter what the other rows hold. Otherwise a rank
// below the number of variables leaves free variables.
func Classify[T Float](m *Matrix[T], eps T) (Result, int) {
	nvars := m.NumVariables()
	rank := 0
	inconsistent := false
	for i := 0; i < m.rows; i++ {
		row := m.Row(i)
		nonZero := false
		for _, v := range row[:nvars] {
			if !IsZero(v, eps) {
				nonZero = true
				break
			}
		}
		if nonZero {
			rank++
		} else if !IsZero(row[nvars], eps) {
			inconsistent = true
		}
	}

	switch {
	case inconsistent:
		return NoSolution, rank
	case rank < nvars:
		return InfiniteSolutions, rank
	default:
		return UniqueSolution, rank
	}
}

// clearRHS snaps effectively-zero right-hand side values, -0.0 included,
// to +0.0.
func clearRHS[T Float](m *Matrix[T], eps T) {
	last := m.cols - 1
	for i := 0; i < m.rows; i++ {
		idx := i*m.cols + last
		if IsZero(m.data[idx], eps) {
			m.data[idx] = 0
		}
	}
}

// Solution returns the unique solution of a matrix reduced by Solve. It
// fails with ErrNotUnique for any other classification.
func Solution[T Float](m *Matrix[T], rep Report) ([]T, error) {
	if rep.Result != UniqueSolution {
		return nil, fmt.Errorf("Solution: %v: %w", rep.Result, ErrNotUnique)
	}
	return ParticularSolution(m, rep)
}

// ParticularSolution returns one solution of a consistent reduced system,
// taking every free variable as zero. For a unique system it is the
// solution.
func ParticularSolution[T Float](m *Matrix[T], rep Report) ([]T, error) {
	if rep.Result == NoSolution {
		return nil, fmt.Errorf("ParticularSolution: %v: %w", rep.Result, ErrNotUnique)
	}
	x := make([]T, m.NumVariables())
	last := m.cols - 1
	for row, col := range rep.Pivots {
		if row >= m.rows || col >= len(x) {
			return nil, fmt.Errorf("ParticularSolution: pivot (%d,%d) outside %dx%d: %w", row, col, m.rows, m.cols, ErrDimensionMismatch)
		}
		x[col] = m.data[row*m.cols+last]
	}
	return x, nil
}
