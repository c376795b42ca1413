package session

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yolodolo42/pokemint/internal/metrics"
	"github.com/yolodolo42/pokemint/internal/wallet"
)

// Client is the wallet surface the tracker queries. *web3.Client implements
// it.
type Client interface {
	DetectWallet() bool
	CurrentChainID(ctx context.Context) (*big.Int, error)
	CurrentAccounts(ctx context.Context) ([]common.Address, error)
	RequestAccounts(ctx context.Context) ([]common.Address, error)
}

// Listener receives every state change as a (prev, next) pair. Listeners
// run in transition order. They may call Snapshot but no Tracker method
// that changes state.
type Listener func(prev, next Session)

// Tracker owns the session state. Wallet calls run outside its lock; their
// results are applied only if the session was not reset in the meantime.
type Tracker struct {
	client      Client
	required    *big.Int
	networkName string
	logger      *zap.Logger

	mu         sync.Mutex
	state      Session
	connecting bool
	current    atomic.Pointer[Session]

	notifyMu  sync.Mutex
	listeners map[uint64]Listener
	nextID    uint64
}

// NewTracker creates a tracker in Unknown for the network named
// networkName with chain id required.
func NewTracker(client Client, required *big.Int, networkName string, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		client:      client,
		required:    new(big.Int).Set(required),
		networkName: networkName,
		logger:      logger,
		state:       Session{ID: uuid.NewString(), State: Unknown},
		listeners:   make(map[uint64]Listener),
	}
	initial := t.state
	t.current.Store(&initial)
	return t
}

// Snapshot returns the current session without waiting on a running
// transition.
func (t *Tracker) Snapshot() Session {
	return *t.current.Load()
}

// Subscribe registers fn for state changes.
func (t *Tracker) Subscribe(fn Listener) func() {
	t.notifyMu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	t.notifyMu.Unlock()

	return func() {
		t.notifyMu.Lock()
		delete(t.listeners, id)
		t.notifyMu.Unlock()
	}
}

// apply reduces ev into the state if epoch is still current.
func (t *Tracker) apply(epoch uint64, ev Event) (Session, bool) {
	t.mu.Lock()
	if t.state.Epoch != epoch {
		cur := t.state
		t.mu.Unlock()
		return cur, false
	}
	prev := t.state
	next := Reduce(prev, ev)
	t.state = next
	t.current.Store(&next)

	// Hand over to notifyMu before releasing mu so listeners observe
	// transitions in the order they were applied.
	t.notifyMu.Lock()
	t.mu.Unlock()
	defer t.notifyMu.Unlock()

	if prev.State != next.State {
		metrics.ObserveSessionTransition(prev.State.String(), next.State.String())
		t.logger.Info("session state changed",
			zap.String("session", next.ID),
			zap.Stringer("from", prev.State),
			zap.Stringer("to", next.State),
		)
	}
	if !sameSession(prev, next) {
		for _, fn := range t.listeners {
			fn(prev, next)
		}
	}
	return next, true
}

func sameSession(a, b Session) bool {
	if a.ID != b.ID || a.Epoch != b.Epoch || a.State != b.State || a.Network != b.Network ||
		a.WalletAvailable != b.WalletAvailable || a.Warning != b.Warning {
		return false
	}
	if (a.Account == nil) != (b.Account == nil) || (a.Account != nil && *a.Account != *b.Account) {
		return false
	}
	if (a.ChainID == nil) != (b.ChainID == nil) || (a.ChainID != nil && a.ChainID.Cmp(b.ChainID) != 0) {
		return false
	}
	return true
}

// Reset starts a new epoch in Unknown. Results of requests started before
// the reset are discarded.
func (t *Tracker) Reset() Session {
	t.mu.Lock()
	epoch := t.state.Epoch
	t.mu.Unlock()

	for {
		next, ok := t.apply(epoch, Reset{Epoch: epoch + 1, ID: uuid.NewString()})
		if ok {
			return next
		}
		epoch = next.Epoch
	}
}

func (t *Tracker) wrongNetworkWarning(got *big.Int) string {
	return fmt.Sprintf("Please switch your wallet to %s (chain %s); it is on chain %s.", t.networkName, t.required, got)
}

// checkNetwork queries the wallet's chain id and applies the result.
func (t *Tracker) checkNetwork(ctx context.Context, epoch uint64) (Session, error) {
	id, err := t.client.CurrentChainID(ctx)
	if err != nil {
		s, _ := t.apply(epoch, CheckFailed{Err: err})
		return s, err
	}
	ok := id.Cmp(t.required) == 0
	ev := NetworkChecked{ChainID: id, OK: ok}
	if !ok {
		ev.Warning = t.wrongNetworkWarning(id)
	}
	s, applied := t.apply(epoch, ev)
	if !applied {
		return s, ErrSessionReset
	}
	if !ok {
		return s, ErrWrongNetwork
	}
	return s, nil
}

// Detect runs wallet detection for the current epoch: wallet presence, then
// network, then already-authorized accounts. It never prompts.
func (t *Tracker) Detect(ctx context.Context) Session {
	epoch := t.Snapshot().Epoch

	if !t.client.DetectWallet() {
		s, _ := t.apply(epoch, WalletDetected{Available: false})
		return s
	}
	if _, ok := t.apply(epoch, WalletDetected{Available: true}); !ok {
		return t.Snapshot()
	}

	s, err := t.checkNetwork(ctx, epoch)
	if err != nil {
		if !errors.Is(err, ErrWrongNetwork) {
			t.logger.Warn("network check failed", zap.String("session", s.ID), zap.Error(err))
		}
		return s
	}

	accounts, err := t.client.CurrentAccounts(ctx)
	if err != nil {
		s, _ = t.apply(epoch, CheckFailed{Err: err})
		return s
	}
	s, _ = t.apply(epoch, AccountsLoaded{Accounts: accounts})
	return s
}

// Connect asks the user to authorize an account. It is valid only from
// WalletPresentDisconnected and WrongNetwork. The network is re-checked
// first and no prompt is shown when it is wrong. A declined prompt leaves
// the state unchanged and returns wallet.ErrUserRejected.
func (t *Tracker) Connect(ctx context.Context) (Session, error) {
	t.mu.Lock()
	s := t.state
	switch {
	case s.State == NoWallet:
		t.mu.Unlock()
		return s, wallet.ErrNoWallet
	case !s.CanConnect():
		t.mu.Unlock()
		return s, fmt.Errorf("%w: %s", ErrConnectUnavailable, s.State)
	case t.connecting:
		t.mu.Unlock()
		return s, fmt.Errorf("%w: connect already in progress", ErrConnectUnavailable)
	}
	t.connecting = true
	epoch := s.Epoch
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.connecting = false
		t.mu.Unlock()
	}()

	s, err := t.checkNetwork(ctx, epoch)
	if err != nil {
		return s, err
	}

	accounts, err := t.client.RequestAccounts(ctx)
	if err != nil {
		s, _ = t.apply(epoch, ConnectRejected{Err: err})
		t.logger.Info("connect request failed", zap.String("session", s.ID), zap.Error(err))
		return s, err
	}

	s, ok := t.apply(epoch, AccountsLoaded{Accounts: accounts})
	if !ok {
		return s, ErrSessionReset
	}
	if s.State != Connected {
		return s, ErrNotConnected
	}
	return s, nil
}

// VerifyNetwork re-checks the wallet's network for a connected session and
// returns the connected account. A mismatch moves the session to
// WrongNetwork.
func (t *Tracker) VerifyNetwork(ctx context.Context) (common.Address, error) {
	s := t.Snapshot()
	if s.State != Connected || s.Account == nil {
		return common.Address{}, ErrNotConnected
	}

	s, err := t.checkNetwork(ctx, s.Epoch)
	if err != nil {
		return common.Address{}, err
	}
	if s.State != Connected || s.Account == nil {
		return common.Address{}, ErrNotConnected
	}
	return *s.Account, nil
}
