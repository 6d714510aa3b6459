package main

import (
	"context"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/23skdu/longbow-jordan/internal/client"
	"github.com/23skdu/longbow-jordan/internal/linsys"
	"github.com/23skdu/longbow-jordan/internal/solver"
)

func startFlight(t *testing.T, srv *Server) *client.FlightClient {
	t.Helper()
	server, err := newFlightServer("localhost:0", srv)
	require.NoError(t, err)
	go func() {
		_ = server.Serve()
	}()
	t.Cleanup(server.Shutdown)

	fc, err := client.NewFlightClient(server.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = fc.Close() })
	return fc
}

func TestFlightServer_Exchange(t *testing.T) {
	cfg := solver.DefaultConfig()
	cfg.Pivot = "maxabs"
	s, err := solver.NewSolver(cfg)
	require.NoError(t, err)
	fc := startFlight(t, NewServer(s, nil, "", time.Second))

	gen := generateSystems(4, 6, 42)
	systems := make([]solver.System, len(gen))
	for i, g := range gen {
		systems[i] = g.system
	}
	systems = append(systems, solver.System{ID: "none", Rows: [][]float64{{0, 0, 1}}})

	rec, err := client.NewRecordBatchBuilder(memory.NewGoAllocator()).BuildSystemBatch(systems)
	require.NoError(t, err)
	defer rec.Release()

	rows, err := fc.Exchange(context.Background(), rec)
	require.NoError(t, err)
	require.Len(t, rows, len(systems))
	for i, g := range gen {
		assert.Equal(t, g.system.ID, rows[i].ID)
		assert.Equal(t, linsys.UniqueSolution, rows[i].Result)
		assert.InDeltaSlice(t, g.want, rows[i].Values, 1e-6)
	}
	assert.Equal(t, linsys.NoSolution, rows[4].Result)
	assert.Equal(t, 0, rows[4].Rank)
}

func TestFlightServer_ExchangeInvalid(t *testing.T) {
	fc := startFlight(t, NewServer(newTestSolver(t), nil, "", time.Second))

	rec, err := client.NewRecordBatchBuilder(memory.NewGoAllocator()).BuildSystemBatch([]solver.System{
		{ID: "bad", Rows: [][]float64{{1}}},
	})
	require.NoError(t, err)
	defer rec.Release()

	_, err = fc.Exchange(context.Background(), rec)
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())
}

func TestFlightServer_DoPutForwards(t *testing.T) {
	mfc := &mockFlightClient{}
	mfc.On("DoPut", mock.Anything, "sink", mock.Anything).Return(nil).Once()
	fc := startFlight(t, NewServer(newTestSolver(t), mfc, "sink", time.Second))

	rec, err := client.NewRecordBatchBuilder(memory.NewGoAllocator()).BuildSystemBatch([]solver.System{
		{ID: "a", Rows: [][]float64{{1, 3}}},
		{ID: "b", Rows: [][]float64{{1, 1, 1}}},
	})
	require.NoError(t, err)
	defer rec.Release()

	require.NoError(t, fc.DoPut(context.Background(), "systems", rec))
	mfc.AssertExpectations(t)
}

func TestGenerateSystems(t *testing.T) {
	a := generateSystems(3, 4, 7)
	b := generateSystems(3, 4, 7)
	require.Len(t, a, 3)
	assert.Equal(t, a, b, "same seed must give the same systems")
	assert.NotEqual(t, a[0].system.Rows, generateSystems(1, 4, 8)[0].system.Rows)

	for _, g := range a {
		require.Len(t, g.system.Rows, 4)
		for _, row := range g.system.Rows {
			require.Len(t, row, 5)
		}
		m, err := linsys.FromRows(g.system.Rows)
		require.NoError(t, err)
		r, err := m.Residual(g.want)
		require.NoError(t, err)
		assert.Less(t, r, 1e-9)
	}
}
