package main

import (
	"context"
	"flag"
	"io"
	"math"
	"os"
	"runtime/pprof"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/23skdu/longbow-jordan/internal/client"
	"github.com/23skdu/longbow-jordan/internal/linsys"
	"github.com/23skdu/longbow-jordan/internal/solver"
)

var defaults = solver.DefaultConfig()

var (
	threads       = flag.Int("threads", defaults.Threads, "Elimination workers per system (1-64)")
	precision     = flag.String("precision", defaults.Precision, "Precision (fp64, fp32)")
	pivot         = flag.String("pivot", defaults.Pivot, "Pivot strategy (first, maxabs)")
	epsilon       = flag.Float64("epsilon", 0, "Zero threshold; 0 uses the precision default")
	size          = flag.Int("size", 64, "Generated system size (unknowns)")
	count         = flag.Int("count", 16, "Number of generated systems")
	seed          = flag.Uint64("seed", 1, "Generator seed")
	duration      = flag.Duration("duration", 0, "Run soak test for specified duration (e.g. 10s, 20m)")
	listenAddr    = flag.String("listen", "", "Address to listen on for HTTP Server (e.g. :8080)")
	flightAddr    = flag.String("flight", "", "Address to listen on for Flight Server (e.g. :9090)")
	serverAddr    = flag.String("server", "", "Flight sink address for solutions (e.g. localhost:3000)")
	datasetName   = flag.String("dataset", "jordan_solutions", "Target dataset name on the sink")
	maxConcurrent = flag.Int("max-concurrent", defaults.MaxConcurrent, "Maximum elimination workers across in-flight solves")
	cacheEntries  = flag.Int("cache", defaults.CacheEntries, "Result cache entries (0 disables)")
	timeout       = flag.Duration("timeout", 30*time.Second, "Per-request solve timeout")
	enableOTel    = flag.Bool("otel", false, "Enable OpenTelemetry tracing (stdout)")
	cpuProfile    = flag.String("cpuprofile", "", "Write cpu profile to file")
	logLevel      = flag.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		log.Fatal().Err(err).Str("level", *logLevel).Msg("Invalid log level")
	}
	zerolog.SetGlobalLevel(level)

	if *enableOTel {
		shutdown, err := initTracer()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize tracer")
		}
		defer shutdown(context.Background())
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create CPU profile file")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal().Err(err).Msg("Could not start CPU profile")
		}
		defer pprof.StopCPUProfile()
	}

	cfg := defaults
	cfg.Threads = *threads
	cfg.Precision = *precision
	cfg.Pivot = *pivot
	cfg.Epsilon = *epsilon
	cfg.MaxConcurrent = *maxConcurrent
	cfg.CacheEntries = *cacheEntries
	s, err := solver.NewSolver(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create solver")
	}

	var fc *client.FlightClient
	if *serverAddr != "" {
		fc, err = client.NewFlightClient(*serverAddr)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create flight client")
		}
		defer func() {
			if err := fc.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close flight client")
			}
		}()
		log.Info().Str("addr", *serverAddr).Msg("Flight sink configured")
	}

	if *listenAddr != "" || *flightAddr != "" {
		var sink FlightClientInterface
		if fc != nil {
			sink = fc
		}
		srv := NewServer(s, sink, *datasetName, *timeout)
		if *listenAddr != "" {
			go startServer(*listenAddr, srv)
		}
		if *flightAddr != "" {
			StartFlightServer(*flightAddr, srv)
			return
		}
		select {}
	}

	if *duration > 0 {
		soak(s, *duration)
		return
	}

	gen := generateSystems(*count, *size, *seed)
	systems := make([]solver.System, len(gen))
	for i, g := range gen {
		systems[i] = g.system
	}

	start := time.Now()
	sols := make([]*solver.Solution, 0, len(systems))
	counts := make(map[linsys.Result]int)
	var maxErr float64
	for res := range s.SolveBatch(context.Background(), systems) {
		if res.Err != nil {
			log.Fatal().Err(res.Err).Int("index", res.Index).Msg("Solve failed")
		}
		sol := res.Solution
		counts[sol.Result]++
		for j, v := range sol.Values {
			maxErr = math.Max(maxErr, math.Abs(v-gen[res.Index].want[j]))
		}
		sols = append(sols, sol)
	}
	elapsed := time.Since(start)
	log.Info().
		Int("count", len(sols)).
		Int("size", *size).
		Int("unique", counts[linsys.UniqueSolution]).
		Int("infinite", counts[linsys.InfiniteSolutions]).
		Int("none", counts[linsys.NoSolution]).
		Float64("max_abs_error", maxErr).
		Dur("elapsed", elapsed).
		Float64("systems_per_sec", float64(len(sols))/elapsed.Seconds()).
		Msg("Solved systems")

	rec, err := client.NewRecordBatchBuilder(memory.NewGoAllocator()).BuildSolutionBatch(sols)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build solution batch")
	}
	if rec == nil {
		return
	}
	defer rec.Release()

	if fc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		log.Info().Int("count", len(sols)).Str("server", *serverAddr).Str("dataset", *datasetName).Msg("Sending solutions")
		if err := fc.DoPut(ctx, *datasetName, rec); err != nil {
			log.Fatal().Err(err).Msg("Flight DoPut failed")
		}
		log.Info().Msg("Successfully sent solutions")
		return
	}
	if err := writeArrowStream(os.Stdout, rec); err != nil {
		log.Warn().Err(err).Msg("Failed to write arrow stream")
	}
}

// soak solves freshly generated batches until d has elapsed.
func soak(s *solver.Solver, d time.Duration) {
	log.Info().Str("duration", d.String()).Msg("Starting soak test")

	startTime := time.Now()
	endTime := startTime.Add(d)
	var total int64
	var iter int

	for time.Now().Before(endTime) {
		gen := generateSystems(*count, *size, *seed+uint64(iter))
		systems := make([]solver.System, len(gen))
		for i, g := range gen {
			systems[i] = g.system
		}
		for res := range s.SolveBatch(context.Background(), systems) {
			if res.Err != nil {
				log.Error().Err(res.Err).Int("index", res.Index).Msg("Soak solve failed")
			}
		}
		total += int64(len(systems))
		iter++

		if iter%10 == 0 {
			elapsed := time.Since(startTime)
			log.Info().
				Str("elapsed", elapsed.Round(time.Second).String()).
				Int("iter", iter).
				Int64("total_systems", total).
				Float64("sps", float64(total)/elapsed.Seconds()).
				Msg("Soak test progress")
		}
	}

	totalElapsed := time.Since(startTime)
	log.Info().
		Int64("total_systems", total).
		Dur("total_time", totalElapsed).
		Float64("avg_sps", float64(total)/totalElapsed.Seconds()).
		Msg("Soak test complete")
}

func writeArrowStream(w io.Writer, rec arrow.RecordBatch) error {
	writer := ipc.NewWriter(w, ipc.WithSchema(rec.Schema()))
	if err := writer.Write(rec); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

func initTracer() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint(), stdouttrace.WithWriter(os.Stderr))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("jordan"),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp.Shutdown, nil
}
