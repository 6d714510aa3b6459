package client

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/longbow-jordan/internal/linsys"
	"github.com/23skdu/longbow-jordan/internal/solver"
)

type mockFlightServer struct {
	flight.BaseFlightServer

	mu       sync.Mutex
	paths    []string
	received int64
}

func (s *mockFlightServer) DoPut(stream flight.FlightService_DoPutServer) error {
	reader, err := flight.NewRecordReader(stream)
	if err != nil {
		return err
	}
	defer reader.Release()

	s.mu.Lock()
	if desc := reader.LatestFlightDescriptor(); desc != nil {
		s.paths = append(s.paths, desc.Path...)
	}
	s.mu.Unlock()

	for reader.Next() {
		s.mu.Lock()
		s.received += reader.Record().NumRows()
		s.mu.Unlock()
	}
	return nil
}

// DoExchange answers every system with a rank-0 infinite solution.
func (s *mockFlightServer) DoExchange(stream flight.FlightService_DoExchangeServer) error {
	reader, err := flight.NewRecordReader(stream)
	if err != nil {
		return err
	}
	defer reader.Release()

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(SolutionSchema))
	defer writer.Close()

	builder := NewRecordBatchBuilder(memory.DefaultAllocator)
	for reader.Next() {
		systems, err := SystemsFromRecord(reader.Record())
		if err != nil {
			return err
		}
		sols := make([]*solver.Solution, len(systems))
		for i, sys := range systems {
			sols[i] = &solver.Solution{ID: sys.ID, Result: linsys.InfiniteSolutions}
		}
		out, err := builder.BuildSolutionBatch(sols)
		if err != nil {
			return err
		}
		err = writer.Write(out)
		out.Release()
		if err != nil {
			return err
		}
	}
	if err := reader.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func startMockServer(t *testing.T) (*mockFlightServer, string) {
	t.Helper()
	mock := &mockFlightServer{}
	server := flight.NewServerWithMiddleware(nil)
	server.RegisterFlightService(mock)
	require.NoError(t, server.Init("localhost:0"))
	go func() {
		_ = server.Serve()
	}()
	t.Cleanup(server.Shutdown)
	return mock, server.Addr().String()
}

func systemRecord(t *testing.T, systems ...solver.System) arrow.RecordBatch {
	t.Helper()
	rb, err := NewRecordBatchBuilder(memory.DefaultAllocator).BuildSystemBatch(systems)
	require.NoError(t, err)
	return rb
}

func TestFlightClient_DoPut(t *testing.T) {
	mock, addr := startMockServer(t)

	client, err := NewFlightClient(addr)
	require.NoError(t, err)
	defer client.Close()

	rb := systemRecord(t,
		solver.System{ID: "a", Rows: [][]float64{{1, 2}}},
		solver.System{ID: "b", Rows: [][]float64{{2, 4}}},
	)
	defer rb.Release()

	require.NoError(t, client.DoPut(context.Background(), "systems", rb))

	mock.mu.Lock()
	defer mock.mu.Unlock()
	assert.Equal(t, []string{"systems"}, mock.paths)
	assert.Equal(t, int64(2), mock.received)
	assert.Equal(t, StateClosed, client.Breaker().State())
}

func TestFlightClient_Exchange(t *testing.T) {
	_, addr := startMockServer(t)

	client, err := NewFlightClient(addr)
	require.NoError(t, err)
	defer client.Close()

	rb := systemRecord(t,
		solver.System{ID: "x", Rows: [][]float64{{1, 1, 2}}},
		solver.System{ID: "y", Rows: [][]float64{{0, 0, 0}}},
	)
	defer rb.Release()

	rows, err := client.Exchange(context.Background(), rb)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "x", rows[0].ID)
	assert.Equal(t, "y", rows[1].ID)
	assert.Equal(t, linsys.InfiniteSolutions, rows[1].Result)
}

func TestFlightClient_BreakerOpens(t *testing.T) {
	// Nothing listens on port 1.
	client, err := NewFlightClient("127.0.0.1:1")
	require.NoError(t, err)
	defer client.Close()
	client.breaker = NewCircuitBreaker(1, time.Hour)

	rb := systemRecord(t, solver.System{ID: "a", Rows: [][]float64{{1, 2}}})
	defer rb.Release()

	err = client.DoPut(context.Background(), "systems", rb)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCircuitOpen)

	err = client.DoPut(context.Background(), "systems", rb)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, StateOpen, client.Breaker().State())
}
