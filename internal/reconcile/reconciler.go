// Package reconcile feeds asynchronous wallet and contract notifications
// into the session, mint and leaderboard components from one goroutine.
package reconcile

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/yolodolo42/pokemint/internal/contract"
	"github.com/yolodolo42/pokemint/internal/leaderboard"
	"github.com/yolodolo42/pokemint/internal/metrics"
	"github.com/yolodolo42/pokemint/internal/mint"
	"github.com/yolodolo42/pokemint/internal/session"
	"github.com/yolodolo42/pokemint/internal/web3"
)

type Session interface {
	Snapshot() session.Session
	Reset() session.Session
	Detect(ctx context.Context) session.Session
}

type Mint interface {
	Fence()
	Abandon(err error) mint.Attempt
	ResolveToken(minter common.Address, tokenID *big.Int) mint.Attempt
}

type Leaderboard interface {
	Invalidate()
	Refresh(ctx context.Context) ([]leaderboard.Record, error)
}

// Chain manages the signer binding and the mint-event subscription.
// *web3.Client implements it.
type Chain interface {
	AttachSigner(account common.Address)
	DetachSigner()
	SubscribeMintEvents(ctx context.Context, cb func(contract.Minted)) (func(), error)
}

type Config struct {
	Session     Session
	Mint        Mint
	Leaderboard Leaderboard
	Chain       Chain
	Logger      *zap.Logger

	// Reload runs after a chain-change reset. It defaults to re-detecting
	// the session and refreshing the leaderboard.
	Reload func(ctx context.Context)

	// RetryDelay paces re-subscription after a failed mint-event
	// subscription.
	RetryDelay time.Duration
}

type mintMsg struct {
	generation uint64
	event      contract.Minted
}

// Reconciler applies chain changes, signer changes and mint events in that
// priority order. A pending chain change is always handled before any other
// queued message.
type Reconciler struct {
	cfg    Config
	logger *zap.Logger

	chainSig  chan struct{}
	signerSig chan struct{}
	mintCh    chan mintMsg

	mu            sync.Mutex
	pendingChain  *big.Int
	pendingSigner *common.Address
	pendingEpoch  uint64

	// Owned by the Run goroutine.
	watched      *common.Address
	watchedEpoch uint64
	generation   uint64
	unsubscribe  func()
	stopReload   context.CancelFunc
}

func New(cfg Config) *Reconciler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	r := &Reconciler{
		cfg:       cfg,
		logger:    cfg.Logger,
		chainSig:  make(chan struct{}, 1),
		signerSig: make(chan struct{}, 1),
		mintCh:    make(chan mintMsg, 64),
	}
	if r.cfg.Reload == nil {
		r.cfg.Reload = r.defaultReload
	}
	return r
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// ChainChanged queues a wallet network change. The in-flight mint is fenced
// at once so a confirmation arriving before the loop abandons it is
// discarded. Changes queued before the loop handles them collapse into one.
func (r *Reconciler) ChainChanged(id *big.Int) {
	r.cfg.Mint.Fence()
	r.mu.Lock()
	r.pendingChain = id
	r.mu.Unlock()
	signal(r.chainSig)
}

// SessionChanged is a session.Listener. It binds the signer to the connected
// account before returning, so a mint started after Connect always finds it,
// and queues the mint-event re-subscription. It never blocks.
func (r *Reconciler) SessionChanged(prev, next session.Session) {
	if prev.Epoch == next.Epoch && sameAccount(prev.Account, next.Account) &&
		(prev.State == session.Connected) == (next.State == session.Connected) {
		return
	}
	r.bind(prev, next)
	r.setPendingSigner(next)
}

func (r *Reconciler) bind(prev, next session.Session) {
	switch {
	case next.State == session.Connected && next.Account != nil:
		r.cfg.Chain.AttachSigner(*next.Account)
	case prev.State == session.Connected:
		r.cfg.Chain.DetachSigner()
	}
}

func (r *Reconciler) setPendingSigner(s session.Session) {
	var account *common.Address
	if s.State == session.Connected && s.Account != nil {
		a := *s.Account
		account = &a
	}
	r.mu.Lock()
	r.pendingSigner = account
	r.pendingEpoch = s.Epoch
	r.mu.Unlock()
	signal(r.signerSig)
}

func sameAccount(a, b *common.Address) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Run processes messages until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	defer r.shutdown()

	current := r.cfg.Session.Snapshot()
	r.bind(session.Session{}, current)
	r.setPendingSigner(current)

	for {
		// Drain chain changes first.
		select {
		case <-r.chainSig:
			r.handleChainChange(ctx)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-r.chainSig:
			r.handleChainChange(ctx)
		case <-r.signerSig:
			r.handleSignerChange(ctx)
		case msg := <-r.mintCh:
			r.handleMintEvent(msg)
		}
	}
}

func (r *Reconciler) shutdown() {
	r.unwatch()
	r.cfg.Chain.DetachSigner()
	if r.stopReload != nil {
		r.stopReload()
	}
}

func (r *Reconciler) handleChainChange(ctx context.Context) {
	r.mu.Lock()
	id := r.pendingChain
	r.mu.Unlock()

	metrics.ObserveChainChange()
	r.logger.Info("wallet network changed, resetting session", zap.Stringer("chain_id", id))

	r.cfg.Mint.Abandon(web3.ErrNetworkChanged)
	r.unwatch()
	r.cfg.Chain.DetachSigner()
	r.cfg.Session.Reset()
	r.cfg.Leaderboard.Invalidate()

	if r.stopReload != nil {
		r.stopReload()
	}
	reloadCtx, cancel := context.WithCancel(ctx)
	r.stopReload = cancel
	go r.cfg.Reload(reloadCtx)
}

func (r *Reconciler) defaultReload(ctx context.Context) {
	s := r.cfg.Session.Detect(ctx)
	r.logger.Debug("session re-detected", zap.String("session", s.ID), zap.Stringer("state", s.State))
	if _, err := r.cfg.Leaderboard.Refresh(ctx); err != nil && ctx.Err() == nil {
		r.logger.Debug("leaderboard reload failed", zap.Error(err))
	}
}

// unwatch drops the mint-event subscription. Events already queued from it
// are discarded by generation.
func (r *Reconciler) unwatch() {
	r.generation++
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
	r.watched = nil
}

func (r *Reconciler) handleSignerChange(ctx context.Context) {
	r.mu.Lock()
	want, epoch := r.pendingSigner, r.pendingEpoch
	r.mu.Unlock()

	if want == nil && r.watched == nil {
		return
	}
	if sameAccount(want, r.watched) && epoch == r.watchedEpoch && r.unsubscribe != nil {
		return
	}

	r.unwatch()
	if want != nil {
		r.watched = want
		r.watchedEpoch = epoch
		r.subscribe(ctx, *want)
	}

	go func() {
		if _, err := r.cfg.Leaderboard.Refresh(ctx); err != nil && ctx.Err() == nil {
			r.logger.Debug("leaderboard refresh after signer change failed", zap.Error(err))
		}
	}()
}

func (r *Reconciler) subscribe(ctx context.Context, account common.Address) {
	gen := r.generation
	subCtx, cancel := context.WithCancel(ctx)
	stop, err := r.cfg.Chain.SubscribeMintEvents(subCtx, func(ev contract.Minted) {
		select {
		case r.mintCh <- mintMsg{generation: gen, event: ev}:
		case <-subCtx.Done():
		}
	})
	if err != nil {
		cancel()
		r.logger.Warn("mint event subscription failed", zap.String("account", account.Hex()), zap.Error(err))
		time.AfterFunc(r.cfg.RetryDelay, func() {
			if ctx.Err() == nil {
				signal(r.signerSig)
			}
		})
		return
	}
	r.unsubscribe = func() {
		stop()
		cancel()
	}
	r.logger.Debug("mint events subscribed", zap.String("account", account.Hex()))
}

func (r *Reconciler) handleMintEvent(msg mintMsg) {
	if msg.generation != r.generation {
		return
	}
	s := r.cfg.Session.Snapshot()
	if s.State != session.Connected || s.Account == nil || *s.Account != msg.event.Minter {
		r.logger.Debug("ignoring mint event for another account",
			zap.String("minter", msg.event.Minter.Hex()),
			zap.Stringer("token_id", msg.event.TokenID),
		)
		return
	}
	a := r.cfg.Mint.ResolveToken(msg.event.Minter, msg.event.TokenID)
	r.logger.Info("mint event reconciled",
		zap.Stringer("token_id", msg.event.TokenID),
		zap.Stringer("status", a.Status),
	)
}
