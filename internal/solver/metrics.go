package solver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jordan_requests_total",
		Help: "Total number of systems solved through the service by classification",
	}, []string{"result"})

	requestErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jordan_request_errors_total",
		Help: "Total number of systems rejected or aborted",
	})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jordan_request_duration_seconds",
		Help:    "Time spent handling one system including queueing",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jordan_cache_hits_total",
		Help: "Total number of systems answered from the result cache",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jordan_cache_misses_total",
		Help: "Total number of result cache misses",
	})

	inflightWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jordan_inflight_workers",
		Help: "Elimination workers currently reserved by running solves",
	})

	residuals = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jordan_solution_residual",
		Help:    "Infinity-norm residual of unique solutions",
		Buckets: prometheus.ExponentialBuckets(1e-16, 10, 14),
	})
)
