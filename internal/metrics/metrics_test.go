package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func delta(t *testing.T, collector prometheus.Collector, observe func()) float64 {
	t.Helper()

	before := testutil.ToFloat64(collector)
	observe()
	after := testutil.ToFloat64(collector)
	return after - before
}

func TestRPCObserve(t *testing.T) {
	start := time.Now().Add(-10 * time.Millisecond)

	t.Run("labels by source and status", func(t *testing.T) {
		m := NewRPC("fallback")
		inc := delta(t, rpcRequestsTotal.WithLabelValues("call_contract", "fallback", "success"), func() {
			m.Observe("call_contract", nil, start)
		})
		assert.Equal(t, 1.0, inc)

		inc = delta(t, rpcRequestsTotal.WithLabelValues("call_contract", "fallback", "error"), func() {
			m.Observe("call_contract", errors.New("boom"), start)
		})
		assert.Equal(t, 1.0, inc)
	})

	t.Run("empty source", func(t *testing.T) {
		m := NewRPC("")
		inc := delta(t, rpcRequestsTotal.WithLabelValues("chain_id", "unknown", "success"), func() {
			m.Observe("chain_id", nil, start)
		})
		assert.Equal(t, 1.0, inc)
	})

	t.Run("nil recorder is a no-op", func(t *testing.T) {
		var m *RPC
		assert.NotPanics(t, func() { m.Observe("chain_id", nil, start) })
	})
}

func TestMintObserve(t *testing.T) {
	m := NewMint("sepolia")

	inc := delta(t, mintAttemptsTotal.WithLabelValues("sepolia", "success"), func() {
		m.ObserveOutcome("success", time.Now().Add(-time.Second))
	})
	assert.Equal(t, 1.0, inc)

	inc = delta(t, mintAttemptsTotal.WithLabelValues("sepolia", "rejected"), func() {
		m.ObserveOutcome("rejected", time.Time{})
	})
	assert.Equal(t, 1.0, inc)

	inc = delta(t, mintRejectedStarts.WithLabelValues("sepolia", "in_progress"), func() {
		m.ObserveRejectedStart("in_progress")
	})
	assert.Equal(t, 1.0, inc)
}

func TestSessionObserve(t *testing.T) {
	inc := delta(t, sessionTransitionsTotal.WithLabelValues("unknown", "connected"), func() {
		ObserveSessionTransition("unknown", "connected")
	})
	assert.Equal(t, 1.0, inc)

	inc = delta(t, chainChangesTotal, ObserveChainChange)
	assert.Equal(t, 1.0, inc)
}

func TestLeaderboardObserve(t *testing.T) {
	start := time.Now()

	ObserveLeaderboardRefresh(nil, 7, start)
	assert.Equal(t, 7.0, testutil.ToFloat64(leaderboardRecords))

	inc := delta(t, leaderboardRefreshTotal.WithLabelValues("error"), func() {
		ObserveLeaderboardRefresh(errors.New("rpc down"), 0, start)
	})
	assert.Equal(t, 1.0, inc)
	assert.Equal(t, 7.0, testutil.ToFloat64(leaderboardRecords), "failed refresh keeps the gauge")
}
