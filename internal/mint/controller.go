package mint

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/yolodolo42/pokemint/internal/metrics"
	"github.com/yolodolo42/pokemint/internal/wallet"
	"github.com/yolodolo42/pokemint/internal/web3"
)

// Client submits and confirms mint transactions from the bound signer.
// *web3.Client implements it.
type Client interface {
	Signer() (common.Address, bool)
	SubmitMint(ctx context.Context) (web3.Handle, error)
	AwaitConfirmation(ctx context.Context, h web3.Handle) (*types.Receipt, error)
}

// Gate authorizes a new attempt. It must re-check the wallet's network and
// return the connected account. *session.Tracker implements it.
type Gate interface {
	VerifyNetwork(ctx context.Context) (common.Address, error)
}

// Listener receives every changed attempt snapshot, in order. Listeners may
// call Snapshot but no other Controller method.
type Listener func(Attempt)

// Controller owns the single mint attempt slot.
type Controller struct {
	client  Client
	gate    Gate
	logger  *zap.Logger
	metrics *metrics.Mint

	mu      sync.Mutex
	attempt Attempt
	nextID  uint64
	gating  bool
	cancel  context.CancelFunc

	// fence is the newest attempt id whose confirmation must be discarded.
	// gateFenced is set when the network changes while the gate runs.
	fence      uint64
	gateFenced bool

	current atomic.Pointer[Attempt]

	notifyMu  sync.Mutex
	listeners map[uint64]Listener
	nextSub   uint64
}

func NewController(client Client, gate Gate, m *metrics.Mint, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		client:    client,
		gate:      gate,
		logger:    logger,
		metrics:   m,
		listeners: make(map[uint64]Listener),
	}
}

// Snapshot returns the current attempt. It never waits on a running
// transition.
func (c *Controller) Snapshot() Attempt {
	if a := c.current.Load(); a != nil {
		return *a
	}
	return Attempt{}
}

// Subscribe registers fn for attempt changes.
func (c *Controller) Subscribe(fn Listener) func() {
	c.notifyMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.listeners[id] = fn
	c.notifyMu.Unlock()

	return func() {
		c.notifyMu.Lock()
		delete(c.listeners, id)
		c.notifyMu.Unlock()
	}
}

func (c *Controller) apply(ev Event) Attempt {
	c.mu.Lock()
	return c.applyLocked(ev)
}

// applyLocked must be called with mu held; it releases it.
func (c *Controller) applyLocked(ev Event) Attempt {
	prev := c.attempt
	next := Reduce(prev, ev)
	c.attempt = next
	c.current.Store(&next)
	if prev.Status.InFlight() && !next.Status.InFlight() && c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	if sameAttempt(prev, next) {
		return next
	}
	if next.Status != prev.Status || next.ID != prev.ID {
		c.logger.Info("mint status changed",
			zap.Uint64("attempt", next.ID),
			zap.String("account", next.Account.Hex()),
			zap.Stringer("status", next.Status),
			zap.Error(next.Err),
		)
		if next.Status.Terminal() {
			c.metrics.ObserveOutcome(outcome(next), next.SubmittedAt)
		}
	}
	for _, fn := range c.listeners {
		fn(next)
	}
	return next
}

func sameAttempt(a, b Attempt) bool {
	return a.ID == b.ID && a.Status == b.Status && a.TxHash == b.TxHash &&
		a.Err == b.Err && bigEqual(a.MintedTokenID, b.MintedTokenID) && bigEqual(a.heldTokenID, b.heldTokenID)
}

func bigEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}

func outcome(a Attempt) string {
	switch {
	case a.Status == Success:
		return "success"
	case errors.Is(a.Err, wallet.ErrUserRejected):
		return "rejected"
	case errors.Is(a.Err, web3.ErrTransactionReverted):
		return "reverted"
	case errors.Is(a.Err, web3.ErrNetworkChanged):
		return "abandoned"
	default:
		return "error"
	}
}

// Start runs one mint attempt: gate, submit, then wait for confirmation. It
// returns when the attempt is terminal. Guard failures (an attempt in
// flight, no connected session, wrong network, no signer bound to the
// connected account) return an error and leave the attempt untouched;
// failures of the attempt itself are reported in the returned Attempt.
func (c *Controller) Start(ctx context.Context) (Attempt, error) {
	c.mu.Lock()
	if c.gating || c.attempt.Status.InFlight() {
		a := c.attempt
		c.mu.Unlock()
		c.metrics.ObserveRejectedStart("in_progress")
		return a, ErrMintInProgress
	}
	c.gating = true
	c.gateFenced = false
	c.mu.Unlock()

	account, err := c.gate.VerifyNetwork(ctx)

	c.mu.Lock()
	c.gating = false
	reason := "gate"
	if err == nil && c.gateFenced {
		err, reason = web3.ErrNetworkChanged, "network_changed"
	}
	if err != nil {
		a := c.attempt
		c.mu.Unlock()
		c.metrics.ObserveRejectedStart(reason)
		return a, fmt.Errorf("cannot start mint: %w", err)
	}
	if signer, ok := c.client.Signer(); !ok || signer != account {
		a := c.attempt
		c.mu.Unlock()
		c.metrics.ObserveRejectedStart("signer")
		return a, fmt.Errorf("cannot start mint: %w", web3.ErrNoSigner)
	}
	c.nextID++
	id := c.nextID
	attemptCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.applyLocked(Started{ID: id, Account: account})

	handle, err := c.client.SubmitMint(attemptCtx)
	if err != nil {
		return c.apply(SubmitFailed{ID: id, Err: err}), nil
	}
	c.apply(Submitted{ID: id, TxHash: handle.TxHash, At: handle.SubmittedAt})

	if _, err := c.client.AwaitConfirmation(attemptCtx, handle); err != nil {
		return c.apply(ConfirmFailed{ID: id, Err: err}), nil
	}
	return c.confirm(id), nil
}

// confirm applies a mined receipt unless the wallet has left the network
// the attempt was sent on.
func (c *Controller) confirm(id uint64) Attempt {
	c.mu.Lock()
	if id <= c.fence {
		c.logger.Info("discarding confirmation from a previous network", zap.Uint64("attempt", id))
		return c.applyLocked(Abandoned{Err: web3.ErrNetworkChanged})
	}
	return c.applyLocked(Confirmed{ID: id})
}

// Fence marks the attempt in flight, or about to be started, as sent on a
// network the wallet has left. Its confirmation is discarded. Fence only
// records the change; Abandon fails the attempt.
func (c *Controller) Fence() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gating {
		c.gateFenced = true
	}
	if c.attempt.Status.InFlight() {
		c.fence = c.attempt.ID
	}
}

// ResolveToken records a mint-completion event for minter.
func (c *Controller) ResolveToken(minter common.Address, tokenID *big.Int) Attempt {
	return c.apply(TokenResolved{Minter: minter, TokenID: tokenID})
}

// Abandon fails the in-flight attempt with err and stops waiting for it.
func (c *Controller) Abandon(err error) Attempt {
	return c.apply(Abandoned{Err: err})
}

// Elapsed is how long the current attempt has been mining; zero otherwise.
func (a Attempt) Elapsed(now time.Time) time.Duration {
	if a.Status != Mining || a.SubmittedAt.IsZero() {
		return 0
	}
	return now.Sub(a.SubmittedAt)
}
