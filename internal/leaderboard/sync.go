package leaderboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/yolodolo42/pokemint/internal/contract"
	"github.com/yolodolo42/pokemint/internal/metrics"
)

// ErrInvalidated is returned by a refresh whose result was discarded because
// the leaderboard was invalidated while it ran.
var ErrInvalidated = errors.New("leaderboard invalidated during refresh")

// Record is one past mint outcome.
type Record struct {
	Winner  common.Address
	Species string
}

// Reader fetches the hall of fame in contract (chronological) order.
type Reader interface {
	ReadHunters(ctx context.Context) ([]contract.Hunter, error)
}

// View is a snapshot of the leaderboard. Err is the last refresh error; it
// is cleared by the next successful refresh.
type View struct {
	Records   []Record
	Err       error
	UpdatedAt time.Time
}

// FromHunters maps contract entries to records, most recent first.
func FromHunters(hunters []contract.Hunter) []Record {
	out := make([]Record, len(hunters))
	for i, h := range hunters {
		out[len(hunters)-1-i] = Record{Winner: h.Winner, Species: h.Pokemon}
	}
	return out
}

// Sync keeps the latest successfully fetched leaderboard.
type Sync struct {
	reader Reader
	logger *zap.Logger

	mu         sync.Mutex
	view       View
	generation uint64
	// seq numbers refreshes in start order; applied is the newest one whose
	// result replaced the view.
	seq     uint64
	applied uint64
	current atomic.Pointer[View]

	notifyMu  sync.Mutex
	listeners map[uint64]func(View)
	nextSub   uint64
}

func NewSync(reader Reader, logger *zap.Logger) *Sync {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sync{
		reader:    reader,
		logger:    logger,
		listeners: make(map[uint64]func(View)),
	}
	s.current.Store(&View{})
	return s
}

// Snapshot returns the current view without waiting on a running refresh.
func (s *Sync) Snapshot() View {
	return copyView(*s.current.Load())
}

func copyView(v View) View {
	v.Records = append([]Record(nil), v.Records...)
	return v
}

// Subscribe registers fn for view changes. fn may call Snapshot but no Sync
// method that changes state.
func (s *Sync) Subscribe(fn func(View)) func() {
	s.notifyMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.notifyMu.Unlock()

	return func() {
		s.notifyMu.Lock()
		delete(s.listeners, id)
		s.notifyMu.Unlock()
	}
}

func (s *Sync) publishLocked(v View) {
	stored := copyView(v)
	s.current.Store(&stored)
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()
	for _, fn := range s.listeners {
		fn(copyView(v))
	}
}

// Refresh reads the full list and replaces the records. On failure the
// previous records are kept and the error is returned. A refresh that
// finishes after a newer one has been applied changes nothing and returns
// the newer records.
func (s *Sync) Refresh(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	gen := s.generation
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	started := time.Now()
	hunters, err := s.reader.ReadHunters(ctx)
	metrics.ObserveLeaderboardRefresh(err, len(hunters), started)

	s.mu.Lock()
	if gen != s.generation {
		records := append([]Record(nil), s.view.Records...)
		s.mu.Unlock()
		return records, ErrInvalidated
	}
	if seq < s.applied {
		records := append([]Record(nil), s.view.Records...)
		s.mu.Unlock()
		s.logger.Debug("discarding superseded leaderboard read", zap.Uint64("seq", seq), zap.Error(err))
		return records, err
	}
	s.applied = seq
	if err != nil {
		s.view.Err = err
		v := s.view
		s.publishLocked(v)
		s.logger.Warn("leaderboard refresh failed", zap.Int("kept", len(v.Records)), zap.Error(err))
		return append([]Record(nil), v.Records...), err
	}

	s.view = View{Records: FromHunters(hunters), UpdatedAt: time.Now()}
	v := s.view
	s.publishLocked(v)
	s.logger.Debug("leaderboard refreshed", zap.Int("records", len(v.Records)))
	return append([]Record(nil), v.Records...), nil
}

// Invalidate clears the records and discards the results of refreshes
// already running.
func (s *Sync) Invalidate() {
	s.mu.Lock()
	s.generation++
	s.view = View{}
	s.publishLocked(s.view)
}

// Poll refreshes every interval until ctx is done.
func (s *Sync) Poll(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.logger.Debug("leaderboard poll failed", zap.Error(err))
			}
		}
	}
}
