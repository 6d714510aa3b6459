package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	breakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jordan_forward_breaker_state",
		Help: "Forwarding circuit breaker state (0=closed, 1=open, 2=half_open)",
	})
	forwardRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jordan_forward_rejected_total",
		Help: "Forwarding calls rejected by an open circuit breaker",
	})
	forwardedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jordan_forwarded_records_total",
		Help: "Record batches sent over Flight",
	}, []string{"method", "status"})
)
