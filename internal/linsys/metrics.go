package linsys

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	solvesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jordan_solves_total",
		Help: "Total number of completed solves by classification and mode",
	}, []string{"result", "mode"})

	solveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jordan_solve_duration_seconds",
		Help:    "Time spent reducing and classifying a system",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
	}, []string{"mode"})

	pivotSwaps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jordan_pivot_swaps_total",
		Help: "Total number of row exchanges performed while pivoting",
	})

	freeColumns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jordan_free_columns_total",
		Help: "Total number of variable columns left without a pivot",
	})

	workerFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jordan_worker_failures_total",
		Help: "Total number of solves aborted by a failing elimination worker",
	})
)
