package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mintAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pokemint",
		Subsystem: "mint",
		Name:      "attempts_total",
		Help:      "Count of finished mint attempts by outcome.",
	}, []string{"network", "outcome"})
	mintConfirmDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pokemint",
		Subsystem: "mint",
		Name:      "confirmation_duration_seconds",
		Help:      "Time from submission to a terminal mint state.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"network", "outcome"})
	mintRejectedStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pokemint",
		Subsystem: "mint",
		Name:      "rejected_starts_total",
		Help:      "Count of mint starts refused by the controller guard.",
	}, []string{"network", "reason"})
)

// Mint records mint attempt outcomes.
type Mint struct {
	network string
}

func NewMint(network string) *Mint {
	if network == "" {
		network = "unknown"
	}
	return &Mint{network: network}
}

// ObserveOutcome records a terminal attempt. submitted is the zero time when
// the attempt failed before a transaction was sent.
func (m *Mint) ObserveOutcome(outcome string, submitted time.Time) {
	if m == nil {
		return
	}
	mintAttemptsTotal.WithLabelValues(m.network, outcome).Inc()
	if !submitted.IsZero() {
		mintConfirmDuration.WithLabelValues(m.network, outcome).Observe(time.Since(submitted).Seconds())
	}
}

func (m *Mint) ObserveRejectedStart(reason string) {
	if m == nil {
		return
	}
	mintRejectedStarts.WithLabelValues(m.network, reason).Inc()
}
