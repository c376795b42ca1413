package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pokemint",
		Subsystem: "session",
		Name:      "transitions_total",
		Help:      "Count of wallet session state transitions.",
	}, []string{"from", "to"})
	chainChangesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pokemint",
		Subsystem: "session",
		Name:      "chain_changes_total",
		Help:      "Count of wallet network changes that forced a session reset.",
	})
	leaderboardRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pokemint",
		Subsystem: "leaderboard",
		Name:      "refreshes_total",
		Help:      "Count of leaderboard refreshes.",
	}, []string{"status"})
	leaderboardRefreshDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pokemint",
		Subsystem: "leaderboard",
		Name:      "refresh_duration_seconds",
		Help:      "Duration of leaderboard refreshes.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})
	leaderboardRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pokemint",
		Subsystem: "leaderboard",
		Name:      "records",
		Help:      "Number of records in the last successful refresh.",
	})
)

func ObserveSessionTransition(from, to string) {
	sessionTransitionsTotal.WithLabelValues(from, to).Inc()
}

func ObserveChainChange() {
	chainChangesTotal.Inc()
}

func ObserveLeaderboardRefresh(err error, records int, started time.Time) {
	status := statusLabel(err)
	leaderboardRefreshTotal.WithLabelValues(status).Inc()
	leaderboardRefreshDuration.WithLabelValues(status).Observe(time.Since(started).Seconds())
	if err == nil {
		leaderboardRecords.Set(float64(records))
	}
}
