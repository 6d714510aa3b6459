package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/23skdu/longbow-jordan/internal/client"
	"github.com/23skdu/longbow-jordan/internal/linsys"
	"github.com/23skdu/longbow-jordan/internal/solver"
)

// JordanFlightServer solves system records received over Flight.
type JordanFlightServer struct {
	flight.BaseFlightServer
	srv   *Server
	alloc memory.Allocator
}

func NewJordanFlightServer(srv *Server) *JordanFlightServer {
	return &JordanFlightServer{
		srv:   srv,
		alloc: memory.NewGoAllocator(),
	}
}

// DoExchange answers each system record with a solution record of the same
// length and order.
func (s *JordanFlightServer) DoExchange(stream flight.FlightService_DoExchangeServer) error {
	reader, err := flight.NewRecordReader(stream, ipc.WithAllocator(s.alloc))
	if err != nil {
		return err
	}
	defer reader.Release()

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(client.SolutionSchema), ipc.WithAllocator(s.alloc))
	defer writer.Close()

	builder := client.NewRecordBatchBuilder(s.alloc)
	for reader.Next() {
		sols, err := s.solveRecord(stream.Context(), reader)
		if err != nil {
			return err
		}
		if len(sols) == 0 {
			continue
		}
		out, err := builder.BuildSolutionBatch(sols)
		if err != nil {
			return status.Error(codes.Internal, err.Error())
		}
		err = writer.Write(out)
		out.Release()
		if err != nil {
			return err
		}
	}
	return reader.Err()
}

// DoPut solves every received system, logs the outcome and forwards the
// solutions when a sink is configured.
func (s *JordanFlightServer) DoPut(stream flight.FlightService_DoPutServer) error {
	reader, err := flight.NewRecordReader(stream, ipc.WithAllocator(s.alloc))
	if err != nil {
		return err
	}
	defer reader.Release()

	counts := make(map[linsys.Result]int)
	for reader.Next() {
		sols, err := s.solveRecord(stream.Context(), reader)
		if err != nil {
			return err
		}
		for _, sol := range sols {
			counts[sol.Result]++
		}
		s.srv.forward(stream.Context(), sols)
	}
	log.Info().
		Int("unique", counts[linsys.UniqueSolution]).
		Int("infinite", counts[linsys.InfiniteSolutions]).
		Int("none", counts[linsys.NoSolution]).
		Msg("DoPut solved systems")
	return reader.Err()
}

func (s *JordanFlightServer) solveRecord(ctx context.Context, reader *flight.Reader) ([]*solver.Solution, error) {
	systems, err := client.SystemsFromRecord(reader.Record())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	systemsReceived.WithLabelValues("flight").Add(float64(len(systems)))
	sols, err := s.srv.solveAll(ctx, systems)
	if err != nil {
		return nil, status.Error(grpcCode(err), err.Error())
	}
	return sols, nil
}

func grpcCode(err error) codes.Code {
	switch statusFor(err) {
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusServiceUnavailable:
		if errors.Is(err, context.Canceled) {
			return codes.Canceled
		}
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// newFlightServer binds addr and registers the solving service.
func newFlightServer(addr string, srv *Server) (flight.Server, error) {
	server := flight.NewServerWithMiddleware(nil)
	server.RegisterFlightService(NewJordanFlightServer(srv))
	if err := server.Init(addr); err != nil {
		return nil, err
	}
	return server, nil
}

func StartFlightServer(addr string, srv *Server) {
	server, err := newFlightServer(addr, srv)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init Flight server")
	}

	log.Info().Str("addr", server.Addr().String()).Msg("Starting Jordan Flight Server")
	if err := server.Serve(); err != nil {
		log.Fatal().Err(err).Msg("Flight server failed")
	}
}
