package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/fxamacker/cbor/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/23skdu/longbow-jordan/internal/client"
	"github.com/23skdu/longbow-jordan/internal/linsys"
	"github.com/23skdu/longbow-jordan/internal/solver"
)

const arrowStreamType = "application/vnd.apache.arrow.stream"

var (
	systemsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jordan_http_systems_total",
		Help: "Systems received over HTTP",
	}, []string{"endpoint"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jordan_http_request_duration_seconds",
		Help:    "Time spent handling solve requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "code"})

	forwardFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jordan_forward_failures_total",
		Help: "Solution batches that could not be forwarded",
	})
)

// SolverInterface is the part of *solver.Solver the transports use.
type SolverInterface interface {
	Solve(ctx context.Context, sys solver.System) (*solver.Solution, error)
	SolveBatch(ctx context.Context, systems []solver.System) <-chan solver.StreamResult
}

type FlightClientInterface interface {
	DoPut(ctx context.Context, datasetName string, record arrow.RecordBatch) error
	Close() error
}

// SolveRequest is the CBOR body of POST /solve.
type SolveRequest struct {
	ID        string      `cbor:"id"`
	Matrix    [][]float64 `cbor:"matrix"`
	Variables []string    `cbor:"variables,omitempty"`
	Threads   int         `cbor:"threads,omitempty"`
}

// SolveResponse is the CBOR body answered by POST /solve.
type SolveResponse struct {
	ID       string             `cbor:"id"`
	Result   string             `cbor:"result"`
	Rank     int                `cbor:"rank"`
	Values   []float64          `cbor:"values,omitempty"`
	Named    map[string]float64 `cbor:"named,omitempty"`
	Reduced  [][]float64        `cbor:"reduced"`
	Residual float64            `cbor:"residual"`
	Cached   bool               `cbor:"cached"`
	Micros   int64              `cbor:"elapsed_us"`
}

type Server struct {
	solver       SolverInterface
	flightClient FlightClientInterface
	datasetName  string
	timeout      time.Duration
	alloc        memory.Allocator
}

func NewServer(s SolverInterface, fc FlightClientInterface, dataset string, timeout time.Duration) *Server {
	return &Server{
		solver:       s,
		flightClient: fc,
		datasetName:  dataset,
		timeout:      timeout,
		alloc:        memory.NewGoAllocator(),
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/solve", s.handleSolve)
	mux.HandleFunc("/solve/arrow", s.handleSolveArrow)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

func startServer(addr string, srv *Server) {
	log.Info().Str("addr", addr).Msg("Starting Jordan HTTP Server")
	if srv.flightClient != nil {
		log.Info().Str("dataset", srv.datasetName).Msg("Forwarding solutions over Flight")
	}

	if err := http.ListenAndServe(addr, srv.routes()); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

var tracer = otel.Tracer("jordan-server")

func (s *Server) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "handleSolve")
	defer span.End()

	start := time.Now()
	code := http.StatusOK
	defer func() {
		httpDuration.WithLabelValues("solve", fmt.Sprint(code)).Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodPost {
		code = http.StatusMethodNotAllowed
		http.Error(w, "Method not allowed", code)
		return
	}

	var req SolveRequest
	if err := cbor.NewDecoder(r.Body).Decode(&req); err != nil {
		span.RecordError(err)
		code = http.StatusBadRequest
		http.Error(w, fmt.Sprintf("Bad Request (CBOR decode): %v", err), code)
		return
	}
	systemsReceived.WithLabelValues("solve").Inc()
	span.SetAttributes(
		attribute.String("system.id", req.ID),
		attribute.Int("system.rows", len(req.Matrix)),
	)

	ctx, cancel := s.requestContext(ctx)
	defer cancel()

	sol, err := s.solver.Solve(ctx, solver.System{
		ID:        req.ID,
		Rows:      req.Matrix,
		Variables: req.Variables,
		Threads:   req.Threads,
	})
	if err != nil {
		code = statusFor(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Debug().Err(err).Str("id", req.ID).Int("code", code).Msg("Solve rejected")
		http.Error(w, err.Error(), code)
		return
	}

	s.forward(ctx, []*solver.Solution{sol})

	body, err := cbor.Marshal(toResponse(sol))
	if err != nil {
		code = http.StatusInternalServerError
		http.Error(w, err.Error(), code)
		return
	}
	w.Header().Set("Content-Type", "application/cbor")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func (s *Server) handleSolveArrow(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "handleSolveArrow")
	defer span.End()

	start := time.Now()
	code := http.StatusOK
	defer func() {
		httpDuration.WithLabelValues("solve_arrow", fmt.Sprint(code)).Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodPost {
		code = http.StatusMethodNotAllowed
		http.Error(w, "Method not allowed", code)
		return
	}

	reader, err := ipc.NewReader(r.Body, ipc.WithAllocator(s.alloc))
	if err != nil {
		code = http.StatusBadRequest
		http.Error(w, fmt.Sprintf("Failed to create IPC reader: %v", err), code)
		return
	}
	defer reader.Release()

	var systems []solver.System
	for reader.Next() {
		batch, err := client.SystemsFromRecord(reader.Record())
		if err != nil {
			code = http.StatusBadRequest
			http.Error(w, err.Error(), code)
			return
		}
		systems = append(systems, batch...)
	}
	if err := reader.Err(); err != nil {
		log.Error().Err(err).Msg("Error reading Arrow stream")
		code = http.StatusBadRequest
		http.Error(w, "Stream error", code)
		return
	}
	systemsReceived.WithLabelValues("solve_arrow").Add(float64(len(systems)))
	span.SetAttributes(attribute.Int("system.count", len(systems)))

	ctx, cancel := s.requestContext(ctx)
	defer cancel()

	sols, err := s.solveAll(ctx, systems)
	if err != nil {
		code = statusFor(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		http.Error(w, err.Error(), code)
		return
	}
	s.forward(ctx, sols)

	w.Header().Set("Content-Type", arrowStreamType)
	writer := ipc.NewWriter(w, ipc.WithSchema(client.SolutionSchema), ipc.WithAllocator(s.alloc))
	defer func() {
		if err := writer.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close arrow stream")
		}
	}()
	if len(sols) == 0 {
		return
	}
	rec, err := client.NewRecordBatchBuilder(s.alloc).BuildSolutionBatch(sols)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build solution batch")
		return
	}
	defer rec.Release()
	if err := writer.Write(rec); err != nil {
		log.Warn().Err(err).Msg("Failed to write arrow stream")
	}
}

// solveAll solves systems through SolveBatch and returns the solutions in
// input order. The first failing system aborts the batch.
func (s *Server) solveAll(ctx context.Context, systems []solver.System) ([]*solver.Solution, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sols := make([]*solver.Solution, 0, len(systems))
	for res := range s.solver.SolveBatch(ctx, systems) {
		if res.Err != nil {
			return nil, res.Err
		}
		sols = append(sols, res.Solution)
	}
	if len(sols) != len(systems) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("solved %d of %d systems", len(sols), len(systems))
	}
	return sols, nil
}

// forward sends solutions to the Flight sink when one is configured.
// Failures are logged and counted; they never fail the request.
func (s *Server) forward(ctx context.Context, sols []*solver.Solution) {
	if s.flightClient == nil || len(sols) == 0 {
		return
	}
	rec, err := client.NewRecordBatchBuilder(s.alloc).BuildSolutionBatch(sols)
	if err != nil {
		forwardFailures.Inc()
		log.Error().Err(err).Msg("Failed to build forward batch")
		return
	}
	defer rec.Release()

	if err := s.flightClient.DoPut(ctx, s.datasetName, rec); err != nil {
		forwardFailures.Inc()
		log.Error().Err(err).Msg("Error forwarding solutions")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

var badRequestErrors = []error{
	linsys.ErrInvalidDimensions,
	linsys.ErrBufferTooSmall,
	linsys.ErrDimensionMismatch,
	linsys.ErrInvalidThreadCount,
	linsys.ErrInvalidEpsilon,
	linsys.ErrNonFinite,
	linsys.ErrNilMatrix,
	solver.ErrInvalidVariables,
	client.ErrSchema,
}

// statusFor maps solve errors to HTTP status codes.
func statusFor(err error) int {
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func toResponse(sol *solver.Solution) SolveResponse {
	return SolveResponse{
		ID:       sol.ID,
		Result:   sol.Result.String(),
		Rank:     sol.Rank,
		Values:   sol.Values,
		Named:    sol.Named,
		Reduced:  sol.Reduced,
		Residual: sol.Residual,
		Cached:   sol.Cached,
		Micros:   sol.Elapsed.Microseconds(),
	}
}
