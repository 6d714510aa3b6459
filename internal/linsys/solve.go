package linsys

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// Config tunes a single solve.
type Config struct {
	// Threads is the requested number of elimination workers. 1 selects the
	// sequential path; larger values are clamped to MaxThreads and to the
	// number of rows.
	Threads int
	Pivot   PivotStrategy
	// Epsilon overrides the zero threshold. 0 selects DefaultEpsilon for the
	// element type.
	Epsilon float64
}

// DefaultConfig returns a sequential, first-non-zero configuration.
func DefaultConfig() Config {
	return Config{
		Threads: 1,
		Pivot:   PivotFirstNonZero,
	}
}

func (c Config) validate() error {
	if c.Threads <= 0 {
		return fmt.Errorf("threads=%d: %w", c.Threads, ErrInvalidThreadCount)
	}
	if c.Epsilon < 0 || math.IsNaN(c.Epsilon) || math.IsInf(c.Epsilon, 0) {
		return fmt.Errorf("epsilon=%v: %w", c.Epsilon, ErrInvalidEpsilon)
	}
	if c.Pivot != PivotFirstNonZero && c.Pivot != PivotMaxAbs {
		return fmt.Errorf("%v: %w", c.Pivot, ErrUnknownPivot)
	}
	return nil
}

// Report describes a finished solve.
type Report struct {
	Result Result
	// Rank is the number of rows with a non-zero coefficient after reduction.
	Rank int
	// Pivots[i] is the pivot column placed in row i.
	Pivots []int
	// FreeColumns lists variable columns without a pivot.
	FreeColumns []int
	// Swaps counts row exchanges.
	Swaps int
	// Workers is the effective number of elimination workers.
	Workers int
}

// SolveBuffer reduces the rows x cols augmented matrix stored row-major in
// data, in place, and classifies it.
func SolveBuffer[T Float](data []T, rows, cols, threads int) (Result, error) {
	m, err := NewMatrix(rows, cols, data)
	if err != nil {
		return NoSolution, err
	}
	return Solve(m, threads)
}

// Solve reduces m in place with the default pivot strategy and tolerance.
func Solve[T Float](m *Matrix[T], threads int) (Result, error) {
	cfg := DefaultConfig()
	cfg.Threads = threads
	rep, err := SolveContext(context.Background(), m, cfg)
	if err != nil {
		return NoSolution, err
	}
	return rep.Result, nil
}

// SolveContext reduces m in place to reduced row echelon form and classifies
// the system. The context is checked between pivot iterations; after an
// error the contents of m are unspecified.
func SolveContext[T Float](ctx context.Context, m *Matrix[T], cfg Config) (Report, error) {
	if m == nil {
		return Report{}, ErrNilMatrix
	}
	if err := cfg.validate(); err != nil {
		return Report{}, fmt.Errorf("SolveContext: %w", err)
	}
	if err := m.validate(); err != nil {
		return Report{}, fmt.Errorf("SolveContext: %w", err)
	}

	start := time.Now()
	mode := "sequential"
	eps := epsilonFor[T](cfg.Epsilon)
	workers := clampWorkers(cfg.Threads, m.rows)
	if workers > 1 {
		mode = "parallel"
	}

	rep := Report{Workers: workers}
	nvars := m.NumVariables()
	pivotRow := 0
	col := 0
	for ; col < nvars && pivotRow < m.rows; col++ {
		if err := ctx.Err(); err != nil {
			return rep, fmt.Errorf("SolveContext: column %d: %w: %w", col, ErrCanceled, err)
		}

		r := findPivot(m, col, pivotRow, eps, cfg.Pivot)
		if r < 0 {
			rep.FreeColumns = append(rep.FreeColumns, col)
			log.Trace().Int("col", col).Int("pivot_row", pivotRow).Msg("No pivot, free column")
			continue
		}
		if r != pivotRow {
			m.SwapRows(pivotRow, r, col)
			rep.Swaps++
		}

		normalizeRow(m, pivotRow, col)
		if err := eliminate(m, pivotRow, col, workers, eps); err != nil {
			workerFailures.Inc()
			log.Warn().Err(err).Int("col", col).Int("workers", workers).Msg("Elimination aborted")
			return rep, fmt.Errorf("SolveContext: column %d: %w", col, err)
		}
		log.Trace().Int("col", col).Int("pivot_row", pivotRow).Int("swapped_from", r).Msg("Column eliminated")

		rep.Pivots = append(rep.Pivots, col)
		pivotRow++
	}
	for ; col < nvars; col++ {
		rep.FreeColumns = append(rep.FreeColumns, col)
	}

	clearRHS(m, eps)
	rep.Result, rep.Rank = Classify(m, eps)

	elapsed := time.Since(start)
	solvesTotal.WithLabelValues(rep.Result.String(), mode).Inc()
	solveDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	pivotSwaps.Add(float64(rep.Swaps))
	freeColumns.Add(float64(len(rep.FreeColumns)))

	log.Debug().
		Int("rows", m.rows).
		Int("cols", m.cols).
		Int("workers", workers).
		Int("rank", rep.Rank).
		Int("swaps", rep.Swaps).
		Str("result", rep.Result.String()).
		Dur("elapsed", elapsed).
		Msg("Solved linear system")

	return rep, nil
}
