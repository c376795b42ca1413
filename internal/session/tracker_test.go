package session

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/pokemint/internal/wallet"
)

var sepolia = big.NewInt(11155111)

type fakeClient struct {
	mu         sync.Mutex
	available  bool
	chainID    *big.Int
	chainErr   error
	accounts   []common.Address
	accErr     error
	requestErr error
	requests   int

	// onRequest runs inside RequestAccounts before it returns.
	onRequest func()
}

func newFakeClient() *fakeClient {
	return &fakeClient{available: true, chainID: sepolia}
}

func (c *fakeClient) DetectWallet() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.available
}

func (c *fakeClient) CurrentChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chainID, c.chainErr
}

func (c *fakeClient) CurrentAccounts(ctx context.Context) ([]common.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accounts, c.accErr
}

func (c *fakeClient) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	c.mu.Lock()
	c.requests++
	hook := c.onRequest
	err := c.requestErr
	c.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts = []common.Address{alice}
	return c.accounts, nil
}

func (c *fakeClient) setChain(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chainID = big.NewInt(id)
}

func (c *fakeClient) requestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests
}

func newTracker(c *fakeClient) *Tracker {
	return NewTracker(c, sepolia, "sepolia", nil)
}

func TestTrackerDetect(t *testing.T) {
	t.Run("no wallet", func(t *testing.T) {
		c := newFakeClient()
		c.available = false
		tr := newTracker(c)

		s := tr.Detect(context.Background())
		assert.Equal(t, NoWallet, s.State)

		_, err := tr.Connect(context.Background())
		assert.ErrorIs(t, err, wallet.ErrNoWallet)
		assert.Zero(t, c.requestCount())
	})

	t.Run("wrong network", func(t *testing.T) {
		c := newFakeClient()
		c.chainID = big.NewInt(1)
		tr := newTracker(c)

		s := tr.Detect(context.Background())
		assert.Equal(t, WrongNetwork, s.State)
		assert.Contains(t, s.Warning, "sepolia")
	})

	t.Run("disconnected", func(t *testing.T) {
		tr := newTracker(newFakeClient())
		s := tr.Detect(context.Background())
		assert.Equal(t, WalletPresentDisconnected, s.State)
		assert.Equal(t, NetworkOK, s.Network)
	})

	t.Run("already authorized", func(t *testing.T) {
		c := newFakeClient()
		c.accounts = []common.Address{bob, alice}
		tr := newTracker(c)

		s := tr.Detect(context.Background())
		assert.Equal(t, Connected, s.State)
		assert.Equal(t, bob, *s.Account)
	})

	t.Run("chain query failure", func(t *testing.T) {
		c := newFakeClient()
		c.chainErr = errors.New("dial tcp: refused")
		tr := newTracker(c)

		s := tr.Detect(context.Background())
		assert.Equal(t, WalletPresentDisconnected, s.State)
		assert.Equal(t, NetworkUnknown, s.Network)
		assert.Nil(t, s.Account)
	})
}

func TestTrackerConnect(t *testing.T) {
	t.Run("connects", func(t *testing.T) {
		tr := newTracker(newFakeClient())
		tr.Detect(context.Background())

		s, err := tr.Connect(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Connected, s.State)
		assert.Equal(t, alice, *s.Account)
	})

	t.Run("wrong network does not prompt", func(t *testing.T) {
		c := newFakeClient()
		c.chainID = big.NewInt(1)
		tr := newTracker(c)
		tr.Detect(context.Background())

		s, err := tr.Connect(context.Background())
		assert.ErrorIs(t, err, ErrWrongNetwork)
		assert.Equal(t, WrongNetwork, s.State)
		assert.NotEmpty(t, s.Warning)
		assert.Zero(t, c.requestCount())
	})

	t.Run("switching to the right network allows connect", func(t *testing.T) {
		c := newFakeClient()
		c.chainID = big.NewInt(1)
		tr := newTracker(c)
		tr.Detect(context.Background())

		c.setChain(11155111)
		s, err := tr.Connect(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Connected, s.State)
	})

	t.Run("rejection leaves state unchanged", func(t *testing.T) {
		c := newFakeClient()
		c.requestErr = wallet.ErrUserRejected
		tr := newTracker(c)
		before := tr.Detect(context.Background())

		s, err := tr.Connect(context.Background())
		assert.ErrorIs(t, err, wallet.ErrUserRejected)
		assert.Equal(t, before.State, s.State)
		assert.Nil(t, s.Account)
		assert.NotEmpty(t, s.Warning)
	})

	t.Run("unavailable when connected or unknown", func(t *testing.T) {
		tr := newTracker(newFakeClient())
		_, err := tr.Connect(context.Background())
		assert.ErrorIs(t, err, ErrConnectUnavailable)

		tr.Detect(context.Background())
		_, err = tr.Connect(context.Background())
		require.NoError(t, err)

		_, err = tr.Connect(context.Background())
		assert.ErrorIs(t, err, ErrConnectUnavailable)
	})

	t.Run("concurrent connect is refused", func(t *testing.T) {
		c := newFakeClient()
		tr := newTracker(c)
		tr.Detect(context.Background())

		var second error
		c.onRequest = func() {
			_, second = tr.Connect(context.Background())
		}
		_, err := tr.Connect(context.Background())
		require.NoError(t, err)
		assert.ErrorIs(t, second, ErrConnectUnavailable)
		assert.Equal(t, 1, c.requestCount())
	})

	t.Run("reset during prompt discards the result", func(t *testing.T) {
		c := newFakeClient()
		tr := newTracker(c)
		tr.Detect(context.Background())

		c.onRequest = func() { tr.Reset() }
		s, err := tr.Connect(context.Background())
		assert.ErrorIs(t, err, ErrSessionReset)
		assert.Equal(t, Unknown, s.State)
		assert.Nil(t, tr.Snapshot().Account)
	})
}

func TestTrackerVerifyNetwork(t *testing.T) {
	t.Run("requires connection", func(t *testing.T) {
		tr := newTracker(newFakeClient())
		tr.Detect(context.Background())
		_, err := tr.VerifyNetwork(context.Background())
		assert.ErrorIs(t, err, ErrNotConnected)
	})

	t.Run("returns the account", func(t *testing.T) {
		c := newFakeClient()
		c.accounts = []common.Address{alice}
		tr := newTracker(c)
		tr.Detect(context.Background())

		account, err := tr.VerifyNetwork(context.Background())
		require.NoError(t, err)
		assert.Equal(t, alice, account)
	})

	t.Run("stale connection on another network", func(t *testing.T) {
		c := newFakeClient()
		c.accounts = []common.Address{alice}
		tr := newTracker(c)
		tr.Detect(context.Background())

		c.setChain(1)
		_, err := tr.VerifyNetwork(context.Background())
		assert.ErrorIs(t, err, ErrWrongNetwork)
		assert.Equal(t, WrongNetwork, tr.Snapshot().State)
		assert.Nil(t, tr.Snapshot().Account)
	})
}

func TestTrackerResetAndSubscribe(t *testing.T) {
	c := newFakeClient()
	c.accounts = []common.Address{alice}
	tr := newTracker(c)

	var mu sync.Mutex
	var transitions [][2]State
	unsubscribe := tr.Subscribe(func(prev, next Session) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, [2]State{prev.State, next.State})
	})

	first := tr.Detect(context.Background())
	require.Equal(t, Connected, first.State)

	reset := tr.Reset()
	assert.Equal(t, Unknown, reset.State)
	assert.NotEqual(t, first.ID, reset.ID)
	assert.Equal(t, first.Epoch+1, reset.Epoch)

	tr.Detect(context.Background())
	unsubscribe()
	tr.Reset()

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, transitions, [2]State{Unknown, WalletPresentDisconnected})
	assert.Contains(t, transitions, [2]State{WalletPresentDisconnected, Connected})
	assert.Contains(t, transitions, [2]State{Connected, Unknown})
	assert.Equal(t, [2]State{WalletPresentDisconnected, Connected}, transitions[len(transitions)-1])
}
