package leaderboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/pokemint/internal/contract"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

type fakeReader struct {
	mu      sync.Mutex
	hunters []contract.Hunter
	err     error
	calls   int
	hook    func()
}

func (r *fakeReader) ReadHunters(ctx context.Context) ([]contract.Hunter, error) {
	r.mu.Lock()
	r.calls++
	hook := r.hook
	hunters, err := r.hunters, r.err
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	return hunters, err
}

func (r *fakeReader) set(hunters []contract.Hunter, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hunters, r.err = hunters, err
}

func (r *fakeReader) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestFromHunters(t *testing.T) {
	t.Run("reverses contract order", func(t *testing.T) {
		got := FromHunters([]contract.Hunter{
			{Winner: alice, Pokemon: "Bulbasaur"},
			{Winner: bob, Pokemon: "Charmander"},
		})
		assert.Equal(t, []Record{
			{Winner: bob, Species: "Charmander"},
			{Winner: alice, Species: "Bulbasaur"},
		}, got)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, FromHunters(nil))
	})

	t.Run("preserves the record set", func(t *testing.T) {
		in := []contract.Hunter{
			{Winner: alice, Pokemon: "Pikachu"},
			{Winner: alice, Pokemon: "Pikachu"},
			{Winner: bob, Pokemon: "Mew"},
		}
		got := FromHunters(in)
		require.Len(t, got, len(in))
		for i, h := range in {
			assert.Equal(t, Record{Winner: h.Winner, Species: h.Pokemon}, got[len(in)-1-i])
		}
	})
}

func TestSyncRefresh(t *testing.T) {
	t.Run("replaces records", func(t *testing.T) {
		r := &fakeReader{hunters: []contract.Hunter{
			{Winner: alice, Pokemon: "Bulbasaur"},
			{Winner: bob, Pokemon: "Charmander"},
		}}
		s := NewSync(r, nil)

		got, err := s.Refresh(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Charmander", got[0].Species)

		v := s.Snapshot()
		assert.Len(t, v.Records, 2)
		assert.NoError(t, v.Err)
		assert.False(t, v.UpdatedAt.IsZero())
	})

	t.Run("failure keeps the last list", func(t *testing.T) {
		r := &fakeReader{hunters: []contract.Hunter{{Winner: alice, Pokemon: "Eevee"}}}
		s := NewSync(r, nil)
		_, err := s.Refresh(context.Background())
		require.NoError(t, err)

		boom := errors.New("rpc down")
		r.set(nil, boom)
		got, err := s.Refresh(context.Background())
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, []Record{{Winner: alice, Species: "Eevee"}}, got)

		v := s.Snapshot()
		assert.ErrorIs(t, v.Err, boom)
		assert.Len(t, v.Records, 1)

		r.set([]contract.Hunter{{Winner: bob, Pokemon: "Mew"}}, nil)
		_, err = s.Refresh(context.Background())
		require.NoError(t, err)
		assert.NoError(t, s.Snapshot().Err)
	})

	t.Run("invalidate discards running refresh", func(t *testing.T) {
		r := &fakeReader{hunters: []contract.Hunter{{Winner: alice, Pokemon: "Eevee"}}}
		s := NewSync(r, nil)
		r.hook = s.Invalidate

		_, err := s.Refresh(context.Background())
		assert.ErrorIs(t, err, ErrInvalidated)
		assert.Empty(t, s.Snapshot().Records)
	})

	t.Run("older refresh finishing last is discarded", func(t *testing.T) {
		entered := make(chan struct{})
		release := make(chan struct{})
		r := &fakeReader{hunters: []contract.Hunter{{Winner: alice, Pokemon: "Pidgey"}}}
		r.hook = func() {
			close(entered)
			<-release
		}
		s := NewSync(r, nil)

		slow := make(chan []Record, 1)
		go func() {
			records, err := s.Refresh(context.Background())
			assert.NoError(t, err)
			slow <- records
		}()
		<-entered

		r.mu.Lock()
		r.hook = nil
		r.hunters = []contract.Hunter{{Winner: alice, Pokemon: "Pidgey"}, {Winner: bob, Pokemon: "Mew"}}
		r.mu.Unlock()
		fresh, err := s.Refresh(context.Background())
		require.NoError(t, err)
		require.Len(t, fresh, 2)

		close(release)
		assert.Equal(t, fresh, <-slow)
		assert.Equal(t, fresh, s.Snapshot().Records)
	})

	t.Run("snapshot is a copy", func(t *testing.T) {
		r := &fakeReader{hunters: []contract.Hunter{{Winner: alice, Pokemon: "Eevee"}}}
		s := NewSync(r, nil)
		_, err := s.Refresh(context.Background())
		require.NoError(t, err)

		v := s.Snapshot()
		v.Records[0].Species = "Ditto"
		assert.Equal(t, "Eevee", s.Snapshot().Records[0].Species)
	})
}

func TestSyncSubscribe(t *testing.T) {
	r := &fakeReader{hunters: []contract.Hunter{{Winner: alice, Pokemon: "Eevee"}}}
	s := NewSync(r, nil)

	var mu sync.Mutex
	var views []View
	unsubscribe := s.Subscribe(func(v View) {
		mu.Lock()
		defer mu.Unlock()
		views = append(views, v)
	})

	_, _ = s.Refresh(context.Background())
	s.Invalidate()
	unsubscribe()
	_, _ = s.Refresh(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, views, 2)
	assert.Len(t, views[0].Records, 1)
	assert.Empty(t, views[1].Records)
}

func TestSyncPoll(t *testing.T) {
	r := &fakeReader{}
	s := NewSync(r, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Poll(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return r.callCount() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poll did not stop")
	}
}
