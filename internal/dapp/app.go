// Package dapp wires the wallet session, mint controller, reconciler and
// leaderboard into one application and publishes combined snapshots.
package dapp

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/yolodolo42/pokemint/internal/chain"
	"github.com/yolodolo42/pokemint/internal/config"
	"github.com/yolodolo42/pokemint/internal/contract"
	"github.com/yolodolo42/pokemint/internal/leaderboard"
	"github.com/yolodolo42/pokemint/internal/metrics"
	"github.com/yolodolo42/pokemint/internal/mint"
	"github.com/yolodolo42/pokemint/internal/reconcile"
	"github.com/yolodolo42/pokemint/internal/session"
	"github.com/yolodolo42/pokemint/internal/wallet"
	"github.com/yolodolo42/pokemint/internal/web3"
)

// Snapshot is the combined state observers render.
type Snapshot struct {
	Network     string
	NetworkName string
	Contract    common.Address

	Session            session.Session
	Mint               mint.Attempt
	Hunters            []leaderboard.Record
	LeaderboardErr     error
	LeaderboardUpdated time.Time

	// ExplorerTxURL links the current attempt's transaction, if any.
	ExplorerTxURL string
	// TokenURL links the minted token on the marketplace, if any.
	TokenURL string
}

type Options struct {
	Config   *config.Config
	Prompter wallet.Prompter
	Logger   *zap.Logger

	// Pool defaults to chain.NewPool().
	Pool *chain.Pool
	// Keys overrides the keystore opened from Config.DataDir.
	Keys *wallet.KeystoreManager
}

// App is the composition root.
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	pool    *chain.Pool
	network *chain.ChainConfig

	wallet   *wallet.Provider
	fallback *fallbackReader
	client   *web3.Client
	session  *session.Tracker
	mint     *mint.Controller
	board    *leaderboard.Sync
	rec      *reconcile.Reconciler
	hub      *Hub

	// pubMu orders snapshot composition with publication so a stale
	// snapshot never overwrites a newer one.
	pubMu sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	unsub   []func()
	started bool
}

// New builds the application. It opens the wallet endpoint when a keystore
// exists; a failure to reach it is logged and surfaces as a session warning.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pool := opts.Pool
	if pool == nil {
		pool = chain.NewPool()
	}

	base, err := pool.GetChainConfig(cfg.Network)
	if err != nil {
		return nil, err
	}
	network := *base
	if cfg.ExplorerURL != "" {
		network.ExplorerURL = cfg.ExplorerURL
	}

	keys := opts.Keys
	if keys == nil && wallet.HasKeys(cfg.DataDir) {
		keys, err = wallet.NewKeystoreManager(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open keystore: %w", err)
		}
	}

	prompter := opts.Prompter
	if prompter == nil {
		prompter = wallet.StaticPrompter{Password: cfg.Password, AutoApprove: cfg.Yes}
	}

	provider := wallet.NewProvider(keys, pool, prompter, logger.Named("wallet"))
	if provider.Available() {
		if err := provider.Open(ctx, cfg.Network, cfg.RPCURL); err != nil {
			logger.Warn("wallet endpoint unavailable", zap.String("network", cfg.Network), zap.Error(err))
		}
	}

	nft, err := contract.NewPokemonNFT(cfg.Contract)
	if err != nil {
		return nil, err
	}

	fallback := newFallbackReader(pool, cfg.Network, network.ChainID, cfg.FallbackRPCURL)
	client := web3.NewClient(provider, fallback.Backend, nft, web3.Options{
		PollInterval:           cfg.PollInterval,
		MaxConsecutiveFailures: cfg.ConfirmMaxFailures,
		ReadRPS:                cfg.ReadRPS,
		Currency:               network.NativeCurrency,
		Logger:                 logger.Named("web3"),
	})

	tracker := session.NewTracker(client, network.ChainID, cfg.Network, logger.Named("session"))
	mintCtl := mint.NewController(client, tracker, metrics.NewMint(cfg.Network), logger.Named("mint"))
	board := leaderboard.NewSync(client, logger.Named("leaderboard"))
	rec := reconcile.New(reconcile.Config{
		Session:     tracker,
		Mint:        mintCtl,
		Leaderboard: board,
		Chain:       client,
		Logger:      logger.Named("reconcile"),
		RetryDelay:  cfg.PollInterval,
	})

	a := &App{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		network:  &network,
		wallet:   provider,
		fallback: fallback,
		client:   client,
		session:  tracker,
		mint:     mintCtl,
		board:    board,
		rec:      rec,
		hub:      NewHub(),
	}

	a.unsub = append(a.unsub,
		tracker.Subscribe(rec.SessionChanged),
		tracker.Subscribe(func(prev, next session.Session) { a.publish() }),
		mintCtl.Subscribe(func(mint.Attempt) { a.publish() }),
		board.Subscribe(func(leaderboard.View) { a.publish() }),
	)
	return a, nil
}

// Start detects the session, loads the leaderboard and starts the
// background loops: the reconciler, the wallet chain watcher and, with a
// positive interval, leaderboard polling.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return fmt.Errorf("app already started")
	}
	a.started = true
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.mu.Unlock()

	a.unsub = append(a.unsub, a.client.SubscribeChainChange(a.rec.ChainChanged))
	a.goRun(func() { a.rec.Run(runCtx) })

	s := a.session.Detect(runCtx)
	a.logger.Info("session detected",
		zap.String("session", s.ID),
		zap.Stringer("state", s.State),
	)
	if _, err := a.board.Refresh(runCtx); err != nil {
		a.logger.Warn("leaderboard unavailable", zap.Error(err))
	}

	if a.wallet.Available() {
		a.goRun(func() { a.wallet.WatchChain(runCtx, a.cfg.ChainWatchInterval) })
	}
	if a.cfg.LeaderboardInterval > 0 {
		a.goRun(func() { a.board.Poll(runCtx, a.cfg.LeaderboardInterval) })
	}

	a.publish()
	return nil
}

func (a *App) goRun(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

// Close stops background loops and releases connections.
func (a *App) Close() {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	a.wg.Wait()

	for _, fn := range a.unsub {
		fn()
	}
	a.hub.Close()
	a.wallet.Close()
	a.fallback.Close()
	a.pool.Close()
}

// Connect prompts the wallet for an account.
func (a *App) Connect(ctx context.Context) (session.Session, error) {
	return a.session.Connect(ctx)
}

// Mint runs one mint attempt to a terminal state.
func (a *App) Mint(ctx context.Context) (mint.Attempt, error) {
	return a.mint.Start(ctx)
}

// Refresh reloads the leaderboard.
func (a *App) Refresh(ctx context.Context) ([]leaderboard.Record, error) {
	return a.board.Refresh(ctx)
}

// SwitchNetwork points the wallet at another network. The resulting chain
// change resets the session.
func (a *App) SwitchNetwork(ctx context.Context, name string) error {
	if !a.wallet.Available() {
		return wallet.ErrNoWallet
	}
	return a.wallet.SwitchNetwork(ctx, name)
}

// Networks lists the configured network names.
func (a *App) Networks() []string {
	return a.pool.ListChains()
}

// WalletNetwork is the network the wallet endpoint was last pointed at.
func (a *App) WalletNetwork() string {
	return a.wallet.Network()
}

// Subscribe returns a channel of snapshots holding only the latest one.
func (a *App) Subscribe() (<-chan Snapshot, func()) {
	return a.hub.Subscribe()
}

// Snapshot composes the current state.
func (a *App) Snapshot() Snapshot {
	view := a.board.Snapshot()
	attempt := a.mint.Snapshot()

	s := Snapshot{
		Network:            a.cfg.Network,
		NetworkName:        a.network.Name,
		Contract:           a.cfg.Contract,
		Session:            a.session.Snapshot(),
		Mint:               attempt,
		Hunters:            view.Records,
		LeaderboardErr:     view.Err,
		LeaderboardUpdated: view.UpdatedAt,
	}
	if attempt.TxHash != (common.Hash{}) {
		s.ExplorerTxURL = a.network.TxURL(attempt.TxHash.Hex())
	}
	if attempt.MintedTokenID != nil {
		s.TokenURL = a.cfg.TokenURL(attempt.MintedTokenID)
	}
	return s
}

func (a *App) publish() {
	a.pubMu.Lock()
	defer a.pubMu.Unlock()
	a.hub.Publish(a.Snapshot())
}

// fallbackReader lazily dials the read-only endpoint and verifies its chain.
type fallbackReader struct {
	pool    *chain.Pool
	network string
	chainID *big.Int
	url     string

	mu      sync.Mutex
	backend chain.Backend
}

func newFallbackReader(pool *chain.Pool, network string, chainID *big.Int, url string) *fallbackReader {
	return &fallbackReader{pool: pool, network: network, chainID: chainID, url: url}
}

// Backend implements web3.FallbackFunc.
func (f *fallbackReader) Backend(ctx context.Context) (chain.Backend, error) {
	if f.url == "" {
		b, _, err := f.pool.Dial(ctx, f.network)
		return b, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.backend != nil {
		return f.backend, nil
	}
	b, err := f.pool.DialEndpoint(ctx, f.url)
	if err != nil {
		return nil, err
	}
	id, err := b.ChainID(ctx)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("fallback chain id: %w", err)
	}
	if id.Cmp(f.chainID) != 0 {
		b.Close()
		return nil, fmt.Errorf("fallback endpoint serves chain %s, expected %s", id, f.chainID)
	}
	f.backend = b
	return b, nil
}

func (f *fallbackReader) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.backend != nil {
		f.backend.Close()
		f.backend = nil
	}
}
