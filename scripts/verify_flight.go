//go:build ignore

package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/23skdu/longbow-jordan/internal/client"
	"github.com/23skdu/longbow-jordan/internal/linsys"
	"github.com/23skdu/longbow-jordan/internal/solver"
)

// Sends a few known systems to a running `jordan -flight` and checks the
// classifications and values that come back.
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	addr := "localhost:9090"
	if len(os.Args) > 1 {
		addr = os.Args[1]
	}

	log.Info().Str("addr", addr).Msg("Connecting to Jordan Flight Server")

	c, err := client.NewFlightClient(addr)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create client")
	}
	defer c.Close()

	cases := []struct {
		sys    solver.System
		result linsys.Result
		values []float64
	}{
		{solver.System{ID: "unique", Rows: [][]float64{{1, 1, 1, 3}, {0, 1, 1, 2}, {1, 1, 0, 2}}}, linsys.UniqueSolution, []float64{1, 1, 1}},
		{solver.System{ID: "infinite", Rows: [][]float64{{1, 1, 2}, {2, 2, 4}}}, linsys.InfiniteSolutions, nil},
		{solver.System{ID: "none", Rows: [][]float64{{1, 1, 2}, {1, 1, 3}}}, linsys.NoSolution, nil},
	}
	systems := make([]solver.System, len(cases))
	for i, tc := range cases {
		systems[i] = tc.sys
	}

	rec, err := client.NewRecordBatchBuilder(memory.NewGoAllocator()).BuildSystemBatch(systems)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build systems")
	}
	defer rec.Release()

	var rows []client.SolutionRow
	start := time.Now()
	for i := 0; i < 10; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rows, err = c.Exchange(ctx, rec)
		cancel()
		if err == nil {
			break
		}
		log.Warn().Err(err).Msg("Exchange failed, retrying...")
		time.Sleep(1 * time.Second)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Exchange failed after retries")
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("Received solutions")

	if len(rows) != len(cases) {
		log.Fatal().Int("expected", len(cases)).Int("got", len(rows)).Msg("Count mismatch")
	}
	for i, row := range rows {
		tc := cases[i]
		if row.ID != tc.sys.ID || row.Result != tc.result {
			log.Fatal().Str("id", row.ID).Stringer("result", row.Result).Stringer("want", tc.result).Msg("Classification mismatch")
		}
		for j, v := range tc.values {
			if math.Abs(row.Values[j]-v) > 1e-9 {
				log.Fatal().Str("id", row.ID).Int("var", j).Float64("got", v).Msg("Value mismatch")
			}
		}
		log.Info().Str("id", row.ID).Stringer("result", row.Result).Int("rank", row.Rank).Msg("Solution valid")
	}

	fmt.Println("VERIFICATION PASSED")
}
