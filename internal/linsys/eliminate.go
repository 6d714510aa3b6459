package linsys

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/23skdu/longbow-jordan/internal/simd"
)

// MaxThreads bounds the number of elimination workers per pivot iteration.
const MaxThreads = 64

// rowRange is a half-open block of rows owned by one worker.
type rowRange struct {
	start, end int
}

// beforeBlock is called by every parallel worker before it touches its rows.
// Tests use it to inject failures.
var beforeBlock func(rowRange)

// clampWorkers returns the number of blocks elimination will be split into.
func clampWorkers(threads, rows int) int {
	w := threads
	if w > MaxThreads {
		w = MaxThreads
	}
	if w > rows {
		w = rows
	}
	if w < 1 {
		w = 1
	}
	return w
}

// partitionRows splits [0, rows) into workers contiguous blocks. The last
// block absorbs the remainder so every row is covered exactly once.
func partitionRows(rows, workers int) []rowRange {
	if workers < 1 {
		workers = 1
	}
	if workers > rows {
		workers = rows
	}
	per := rows / workers
	blocks := make([]rowRange, workers)
	start := 0
	for i := range blocks {
		end := start + per
		if i == workers-1 {
			end = rows
		}
		blocks[i] = rowRange{start: start, end: end}
		start = end
	}
	return blocks
}

// eliminateRows zeroes column col in rows [start, end) except pivotRow by
// subtracting multiples of the normalized pivot row. Only columns >= col are
// touched; the pivot row is read, never written.
func eliminateRows[T Float](m *Matrix[T], pivotRow, col, start, end int, eps T) {
	pivot := m.Row(pivotRow)[col:]
	for r := start; r < end; r++ {
		if r == pivotRow {
			continue
		}
		row := m.Row(r)[col:]
		factor := row[0]
		if IsZero(factor, eps) {
			continue
		}
		simd.AxpyUnrolled(row, pivot, -factor)
		row[0] = 0
	}
}

// eliminateSequential runs the kernel over every row on the calling goroutine.
func eliminateSequential[T Float](m *Matrix[T], pivotRow, col int, eps T) {
	eliminateRows(m, pivotRow, col, 0, m.rows, eps)
}

// eliminateParallel forks one goroutine per block and joins them before
// returning. Blocks are disjoint and the pivot row is read-only, so workers
// share the buffer without locking. A panicking worker is reported as
// ErrWorkerFailed once all workers have finished.
func eliminateParallel[T Float](m *Matrix[T], pivotRow, col, workers int, eps T) error {
	var g errgroup.Group
	for _, blk := range partitionRows(m.rows, workers) {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("rows [%d,%d) pivot %d: %v: %w", blk.start, blk.end, pivotRow, r, ErrWorkerFailed)
				}
			}()
			if beforeBlock != nil {
				beforeBlock(blk)
			}
			eliminateRows(m, pivotRow, col, blk.start, blk.end, eps)
			return nil
		})
	}
	return g.Wait()
}

// eliminate dispatches to the sequential fast path for a single worker.
func eliminate[T Float](m *Matrix[T], pivotRow, col, workers int, eps T) error {
	if workers <= 1 {
		eliminateSequential(m, pivotRow, col, eps)
		return nil
	}
	return eliminateParallel(m, pivotRow, col, workers, eps)
}
