package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rpcRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pokemint",
		Subsystem: "rpc",
		Name:      "operations_total",
		Help:      "Count of chain RPC operations.",
	}, []string{"operation", "source", "status"})
	rpcRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pokemint",
		Subsystem: "rpc",
		Name:      "operation_duration_seconds",
		Help:      "Duration of chain RPC operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "source", "status"})
)

// RPC records chain calls made through one source (wallet or fallback).
type RPC struct {
	source string
}

func NewRPC(source string) *RPC {
	if source == "" {
		source = "unknown"
	}
	return &RPC{source: source}
}

func (m *RPC) Observe(operation string, err error, started time.Time) {
	if m == nil {
		return
	}
	status := statusLabel(err)
	rpcRequestsTotal.WithLabelValues(operation, m.source, status).Inc()
	rpcRequestDuration.WithLabelValues(operation, m.source, status).Observe(time.Since(started).Seconds())
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
