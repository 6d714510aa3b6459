package solver

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/23skdu/longbow-jordan/internal/cache"
	"github.com/23skdu/longbow-jordan/internal/linsys"
)

var (
	// ErrInvalidPrecision is returned for precisions other than fp64/fp32.
	ErrInvalidPrecision = errors.New("solver: precision must be fp64 or fp32")
	// ErrInvalidConfig is returned for non-positive limits.
	ErrInvalidConfig = errors.New("solver: invalid config")
)

var tracer = otel.Tracer("jordan-solver")

// Config holds service-level settings.
type Config struct {
	// Threads is the number of elimination workers per solve.
	Threads int
	// Precision is "fp64" (default) or "fp32".
	Precision string
	// Pivot is "first" (default) or "maxabs".
	Pivot string
	// Epsilon overrides the zero threshold; 0 keeps the per-precision default.
	Epsilon float64
	// CacheEntries bounds the result cache; 0 disables caching.
	CacheEntries int
	// MaxConcurrent bounds the total number of elimination workers across
	// in-flight solves.
	MaxConcurrent int
	// BatchParallelism bounds how many systems of one batch run at once.
	BatchParallelism int
	// Verify computes the residual of unique solutions against the input.
	Verify bool
}

// DefaultConfig returns settings sized for the current machine.
func DefaultConfig() Config {
	threads := runtime.NumCPU()
	if threads > linsys.MaxThreads {
		threads = linsys.MaxThreads
	}
	return Config{
		Threads:          threads,
		Precision:        "fp64",
		Pivot:            "first",
		CacheEntries:     1024,
		MaxConcurrent:    4 * threads,
		BatchParallelism: 4,
		Verify:           true,
	}
}

// System is one augmented matrix to solve. Variables optionally names the
// unknowns, one per coefficient column. Threads overrides the solver's
// worker count when positive.
type System struct {
	ID        string
	Rows      [][]float64
	Variables []string
	Threads   int
}

// Solution is the outcome of solving a System.
type Solution struct {
	ID     string
	Result linsys.Result
	Rank   int
	// Values is set only for a unique solution.
	Values []float64
	// Named maps variable names to Values when names were supplied.
	Named map[string]float64
	// Reduced is the matrix after elimination.
	Reduced  [][]float64
	Residual float64
	Cached   bool
	Elapsed  time.Duration
}

// StreamResult carries one batch item. Index refers to the input slice.
type StreamResult struct {
	Index    int
	Solution *Solution
	Err      error
}

// Solver wraps the elimination core with caching, admission control,
// metrics and tracing.
type Solver struct {
	cfg      Config
	lcfg     linsys.Config
	cache    cache.ResultCache
	sem      *semaphore.Weighted
	settings string
}

// NewSolver validates cfg and creates a solver.
func NewSolver(cfg Config) (*Solver, error) {
	if cfg.Precision == "" {
		cfg.Precision = "fp64"
	}
	if cfg.Precision != "fp64" && cfg.Precision != "fp32" {
		return nil, fmt.Errorf("NewSolver: %q: %w", cfg.Precision, ErrInvalidPrecision)
	}
	pivot, err := linsys.ParsePivotStrategy(cfg.Pivot)
	if err != nil {
		return nil, fmt.Errorf("NewSolver: %w", err)
	}
	if cfg.Threads <= 0 {
		return nil, fmt.Errorf("NewSolver: threads=%d: %w", cfg.Threads, linsys.ErrInvalidThreadCount)
	}
	if cfg.MaxConcurrent <= 0 || cfg.BatchParallelism <= 0 || cfg.CacheEntries < 0 {
		return nil, fmt.Errorf("NewSolver: max_concurrent=%d batch_parallelism=%d cache_entries=%d: %w",
			cfg.MaxConcurrent, cfg.BatchParallelism, cfg.CacheEntries, ErrInvalidConfig)
	}

	s := &Solver{
		cfg: cfg,
		lcfg: linsys.Config{
			Threads: cfg.Threads,
			Pivot:   pivot,
			Epsilon: cfg.Epsilon,
		},
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		settings: fmt.Sprintf("%s/%s/%g", cfg.Precision, pivot, cfg.Epsilon),
	}
	if cfg.CacheEntries > 0 {
		s.cache = cache.NewMapCache(cfg.CacheEntries)
	}

	log.Info().
		Int("threads", cfg.Threads).
		Str("precision", cfg.Precision).
		Str("pivot", pivot.String()).
		Int("cache_entries", cfg.CacheEntries).
		Int("max_concurrent", cfg.MaxConcurrent).
		Msg("Initialized solver")
	return s, nil
}

// Config returns the settings the solver was built with.
func (s *Solver) Config() Config {
	return s.cfg
}

// Solve reduces a copy of sys and classifies it. Precondition failures
// are returned as errors wrapping the linsys sentinels.
func (s *Solver) Solve(ctx context.Context, sys System) (sol *Solution, err error) {
	ctx, span := tracer.Start(ctx, "Solve", trace.WithAttributes(
		attribute.String("system.id", sys.ID),
		attribute.Int("system.rows", len(sys.Rows)),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			requestErrors.Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}
		requestsTotal.WithLabelValues(sol.Result.String()).Inc()
		span.SetAttributes(
			attribute.String("solution.result", sol.Result.String()),
			attribute.Int("solution.rank", sol.Rank),
			attribute.Bool("solution.cached", sol.Cached),
		)
	}()

	lcfg := s.lcfg
	if sys.Threads < 0 {
		return nil, fmt.Errorf("system %q: threads=%d: %w", sys.ID, sys.Threads, linsys.ErrInvalidThreadCount)
	}
	if sys.Threads > 0 {
		lcfg.Threads = sys.Threads
	}

	m, err := linsys.FromRows(sys.Rows)
	if err != nil {
		return nil, fmt.Errorf("system %q: %w", sys.ID, err)
	}
	rows, cols := m.Dims()
	names, err := normalizeVariables(sys.Variables, cols-1)
	if err != nil {
		return nil, fmt.Errorf("system %q: %w", sys.ID, err)
	}

	var key uint64
	if s.cache != nil {
		key = cache.Key(rows, cols, m.RawData(), s.settings)
		if e, ok := s.cache.Get(key); ok {
			cacheHits.Inc()
			sol = &Solution{
				ID:      sys.ID,
				Result:  e.Result,
				Rank:    e.Rank,
				Values:  e.Values,
				Reduced: unflatten(e.Reduced, cols),
				Cached:  true,
				Elapsed: time.Since(start),
			}
			sol.Named = nameValues(names, sol.Values)
			return sol, nil
		}
		cacheMisses.Inc()
	}

	weight := int64(min(lcfg.Threads, rows, linsys.MaxThreads, s.cfg.MaxConcurrent))
	if err := s.sem.Acquire(ctx, weight); err != nil {
		return nil, fmt.Errorf("system %q: waiting for workers: %w", sys.ID, err)
	}
	inflightWorkers.Add(float64(weight))
	defer func() {
		inflightWorkers.Sub(float64(weight))
		s.sem.Release(weight)
	}()

	var out outcome
	if s.cfg.Precision == "fp32" {
		out, err = run[float32](ctx, m, lcfg, s.cfg.Verify)
	} else {
		out, err = run[float64](ctx, m, lcfg, s.cfg.Verify)
	}
	if err != nil {
		return nil, fmt.Errorf("system %q: %w", sys.ID, err)
	}

	if s.cache != nil {
		s.cache.Put(key, cache.Entry{
			Result:  out.rep.Result,
			Rank:    out.rep.Rank,
			Reduced: out.reduced,
			Values:  out.values,
		})
	}
	if out.values != nil && s.cfg.Verify {
		residuals.Observe(out.residual)
	}

	sol = &Solution{
		ID:       sys.ID,
		Result:   out.rep.Result,
		Rank:     out.rep.Rank,
		Values:   out.values,
		Named:    nameValues(names, out.values),
		Reduced:  unflatten(out.reduced, cols),
		Residual: out.residual,
		Elapsed:  time.Since(start),
	}
	return sol, nil
}

// SolveBatch solves systems concurrently, at most BatchParallelism at a
// time, and streams the results in input order. The channel is closed after
// the last result.
func (s *Solver) SolveBatch(ctx context.Context, systems []System) <-chan StreamResult {
	out := make(chan StreamResult, s.cfg.BatchParallelism)
	slots := make([]chan StreamResult, len(systems))
	for i := range slots {
		slots[i] = make(chan StreamResult, 1)
	}

	go func() {
		var g errgroup.Group
		g.SetLimit(s.cfg.BatchParallelism)
		for i, sys := range systems {
			g.Go(func() error {
				sol, err := s.Solve(ctx, sys)
				slots[i] <- StreamResult{Index: i, Solution: sol, Err: err}
				return nil
			})
		}
		_ = g.Wait()
	}()

	go func() {
		defer close(out)
		// Slots are buffered, so producers finish even if nobody reads.
		for _, slot := range slots {
			var res StreamResult
			select {
			case res = <-slot:
			case <-ctx.Done():
				return
			}
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// outcome is the precision-independent result of one run.
type outcome struct {
	rep      linsys.Report
	reduced  []float64
	values   []float64
	residual float64
}

// run converts m to T, solves it and converts the results back.
func run[T linsys.Float](ctx context.Context, m *linsys.Matrix[float64], cfg linsys.Config, verify bool) (outcome, error) {
	rows, cols := m.Dims()
	src := m.RawData()
	buf := make([]T, len(src))
	for i, v := range src {
		buf[i] = T(v)
	}
	work, err := linsys.NewMatrix(rows, cols, buf)
	if err != nil {
		return outcome{}, err
	}
	var orig *linsys.Matrix[T]
	if verify {
		orig = work.Clone()
	}

	rep, err := linsys.SolveContext(ctx, work, cfg)
	if err != nil {
		return outcome{}, err
	}

	out := outcome{rep: rep, reduced: make([]float64, len(buf))}
	for i, v := range work.RawData() {
		out.reduced[i] = float64(v)
	}
	if rep.Result != linsys.UniqueSolution {
		return out, nil
	}

	x, err := linsys.Solution(work, rep)
	if err != nil {
		return outcome{}, err
	}
	out.values = make([]float64, len(x))
	for i, v := range x {
		out.values[i] = float64(v)
	}
	if orig != nil {
		r, err := orig.Residual(x)
		if err != nil {
			return outcome{}, err
		}
		out.residual = float64(r)
	}
	return out, nil
}

func unflatten(data []float64, cols int) [][]float64 {
	if cols <= 0 {
		return nil
	}
	out := make([][]float64, 0, len(data)/cols)
	for i := 0; i+cols <= len(data); i += cols {
		out = append(out, data[i:i+cols:i+cols])
	}
	return out
}
