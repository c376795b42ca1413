package wallet

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/yolodolo42/pokemint/internal/chain"
)

// Provider is a local keystore wallet bound to one network endpoint. It plays
// the part of an injected wallet: accounts must be authorized through the
// Prompter before they are visible, transactions are approved one by one, and
// network switches are pushed to chainChanged listeners.
//
// The endpoint is dialed without chain id verification so that a wallet
// pointed at the wrong network reports that network.
type Provider struct {
	mu       sync.Mutex
	keys     *KeystoreManager
	pool     *chain.Pool
	prompter Prompter
	logger   *zap.Logger

	network     string
	backend     chain.Backend
	lastChainID *big.Int
	authorized  []Signer

	listeners    map[uint64]func(*big.Int)
	nextListener uint64
}

// NewProvider creates a provider. keys may be nil when no keystore exists;
// the provider then reports itself unavailable.
func NewProvider(keys *KeystoreManager, pool *chain.Pool, prompter Prompter, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		keys:      keys,
		pool:      pool,
		prompter:  prompter,
		logger:    logger,
		listeners: make(map[uint64]func(*big.Int)),
	}
}

// Open binds the provider to a network endpoint. An empty rpcURL uses the
// network's configured URLs.
func (p *Provider) Open(ctx context.Context, network, rpcURL string) error {
	backend, err := p.dialNetwork(ctx, network, rpcURL)
	if err != nil {
		return err
	}

	id, err := backend.ChainID(ctx)
	if err != nil {
		p.logger.Debug("wallet endpoint chain id unavailable", zap.Error(err))
		id = nil
	}

	p.mu.Lock()
	old := p.backend
	p.backend = backend
	p.network = network
	p.lastChainID = id
	p.mu.Unlock()

	if old != nil {
		old.Close()
	}
	p.logger.Debug("wallet endpoint opened", zap.String("network", network), zap.Stringer("chain_id", id))
	return nil
}

func (p *Provider) dialNetwork(ctx context.Context, network, rpcURL string) (chain.Backend, error) {
	urls := []string{rpcURL}
	if rpcURL == "" {
		cfg, err := p.pool.GetChainConfig(network)
		if err != nil {
			return nil, err
		}
		urls = cfg.RPCURLs
	}
	return p.pool.DialEndpoint(ctx, urls...)
}

// Available reports whether a wallet is present.
func (p *Provider) Available() bool {
	if p == nil || p.keys == nil {
		return false
	}
	return len(p.keys.Addresses()) > 0
}

// Network returns the name of the network the wallet endpoint was opened for.
func (p *Provider) Network() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.network
}

// Backend returns the wallet's endpoint.
func (p *Provider) Backend() (chain.Backend, error) {
	if !p.Available() {
		return nil, ErrNoWallet
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backend == nil {
		return nil, ErrNotOpen
	}
	return p.backend, nil
}

// Accounts returns the accounts the user has already authorized, without
// prompting.
func (p *Provider) Accounts() ([]common.Address, error) {
	if !p.Available() {
		return nil, ErrNoWallet
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]common.Address, len(p.authorized))
	for i, s := range p.authorized {
		out[i] = s.Address()
	}
	return out, nil
}

// ChainID asks the wallet endpoint which chain it is on.
func (p *Provider) ChainID(ctx context.Context) (*big.Int, error) {
	backend, err := p.Backend()
	if err != nil {
		return nil, err
	}
	id, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query chain id: %w", err)
	}
	return id, nil
}

// RequestAccounts prompts the user to authorize an account. It blocks for as
// long as the prompt does. The authorized account is returned first.
func (p *Provider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if !p.Available() {
		return nil, ErrNoWallet
	}

	addr, password, err := p.prompter.Authorize(ctx, p.keys.Addresses())
	if err != nil {
		return nil, err
	}

	signer, err := p.keys.Unlock(addr, password)
	if err != nil {
		p.logger.Debug("account unlock failed", zap.String("account", addr.Hex()), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUserRejected, err)
	}

	p.mu.Lock()
	kept := []Signer{signer}
	for _, s := range p.authorized {
		if s.Address() == addr {
			s.Lock()
			continue
		}
		kept = append(kept, s)
	}
	p.authorized = kept
	out := make([]common.Address, len(kept))
	for i, s := range kept {
		out[i] = s.Address()
	}
	p.mu.Unlock()

	p.logger.Info("account authorized", zap.String("account", addr.Hex()))
	return out, nil
}

// SignTransaction asks the user to approve req and signs unsigned with the
// authorized key for req.From.
func (p *Provider) SignTransaction(ctx context.Context, req ApprovalRequest, unsigned *types.Transaction) (*types.Transaction, error) {
	if !p.Available() {
		return nil, ErrNoWallet
	}

	p.mu.Lock()
	var signer Signer
	for _, s := range p.authorized {
		if s.Address() == req.From {
			signer = s
			break
		}
	}
	if req.Network == "" {
		req.Network = p.network
	}
	p.mu.Unlock()

	if signer == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotAuthorized, req.From.Hex())
	}
	if req.ChainID == nil {
		req.ChainID = unsigned.ChainId()
	}

	if err := p.prompter.ApproveTransaction(ctx, req); err != nil {
		return nil, err
	}
	return signer.SignTransaction(unsigned, req.ChainID)
}

// OnChainChanged registers fn to receive the new chain id whenever the
// wallet's network changes. The returned function unregisters it.
func (p *Provider) OnChainChanged(fn func(*big.Int)) func() {
	p.mu.Lock()
	id := p.nextListener
	p.nextListener++
	p.listeners[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

// SwitchNetwork points the wallet at another network and notifies listeners
// when the chain id changes.
func (p *Provider) SwitchNetwork(ctx context.Context, network string) error {
	cfg, err := p.pool.GetChainConfig(network)
	if err != nil {
		return err
	}
	backend, err := p.pool.DialEndpoint(ctx, cfg.RPCURLs...)
	if err != nil {
		return err
	}

	id, err := backend.ChainID(ctx)
	if err != nil {
		backend.Close()
		return fmt.Errorf("failed to query chain id: %w", err)
	}

	p.mu.Lock()
	old := p.backend
	p.backend = backend
	p.network = network
	p.mu.Unlock()

	if old != nil {
		old.Close()
	}
	p.logger.Info("wallet network switched", zap.String("network", network), zap.Stringer("chain_id", id))
	p.observeChainID(id, true)
	return nil
}

// WatchChain polls the endpoint's chain id until ctx is done, notifying
// listeners on change. Endpoints can be re-pointed underneath the wallet
// (a local devnet restarted with another id, a proxy failing over).
func (p *Provider) WatchChain(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			id, err := p.ChainID(ctx)
			if err != nil {
				p.logger.Debug("chain watch poll failed", zap.Error(err))
				continue
			}
			p.observeChainID(id, false)
		}
	}
}

// observeChainID records id and notifies listeners when it differs from the
// last known id. A first observation only notifies when notifyFirst is set.
func (p *Provider) observeChainID(id *big.Int, notifyFirst bool) {
	p.mu.Lock()
	prev := p.lastChainID
	if prev != nil && prev.Cmp(id) == 0 {
		p.mu.Unlock()
		return
	}
	p.lastChainID = new(big.Int).Set(id)
	if prev == nil && !notifyFirst {
		p.mu.Unlock()
		return
	}
	fns := make([]func(*big.Int), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(new(big.Int).Set(id))
	}
}

// Disconnect forgets every authorized account and zeros its key.
func (p *Provider) Disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.authorized {
		s.Lock()
	}
	p.authorized = nil
}

// Close disconnects and closes the endpoint.
func (p *Provider) Close() {
	p.Disconnect()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backend != nil {
		p.backend.Close()
		p.backend = nil
	}
}
