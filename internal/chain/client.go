package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

// DialFunc opens a backend for an RPC URL.
type DialFunc func(ctx context.Context, rpcURL string) (Backend, error)

func dialEthclient(ctx context.Context, rpcURL string) (Backend, error) {
	return ethclient.DialContext(ctx, rpcURL)
}

// Pool manages connections to the configured EVM networks.
type Pool struct {
	chains   map[string]*ChainConfig
	backends map[string]Backend
	dial     DialFunc
	mu       sync.RWMutex
}

// NewPool creates a pool over the default networks.
func NewPool() *Pool {
	return NewPoolWithDialer(dialEthclient)
}

// NewPoolWithDialer creates a pool that opens connections with dial.
func NewPoolWithDialer(dial DialFunc) *Pool {
	return &Pool{
		chains:   DefaultChains(),
		backends: make(map[string]Backend),
		dial:     dial,
	}
}

// AddChain adds or overrides a network configuration. A cached connection
// for the same name is dropped.
func (p *Pool) AddChain(name string, config *ChainConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chains[name] = config
	if b, ok := p.backends[name]; ok {
		b.Close()
		delete(p.backends, name)
	}
}

// GetChainConfig returns the configuration for a network
func (p *Pool) GetChainConfig(chainName string) (*ChainConfig, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	config, ok := p.chains[chainName]
	if !ok {
		return nil, fmt.Errorf("unknown chain: %s", chainName)
	}
	return config, nil
}

// ByChainID finds the network with the given id.
func (p *Pool) ByChainID(id *big.Int) (string, *ChainConfig, bool) {
	if id == nil {
		return "", nil, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for name, config := range p.chains {
		if config.ChainID.Cmp(id) == 0 {
			return name, config, true
		}
	}
	return "", nil, false
}

// ListChains returns all configured network names, sorted.
func (p *Pool) ListChains() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return SortedNames(p.chains)
}

// Dial returns a connection to the named network whose chain id has been
// verified against the configuration. Connections are cached.
// Acquires the write lock upfront so concurrent callers never open duplicate
// connections; dialing is not a hot path.
func (p *Pool) Dial(ctx context.Context, chainName string) (Backend, *ChainConfig, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	config, configExists := p.chains[chainName]
	if !configExists {
		return nil, nil, fmt.Errorf("unknown chain: %s", chainName)
	}

	if backend, exists := p.backends[chainName]; exists {
		return backend, config, nil
	}

	var lastErr error
	for _, rpcURL := range config.RPCURLs {
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		backend, err := p.dial(dialCtx, rpcURL)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}

		idCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		chainID, err := backend.ChainID(idCtx)
		cancel()
		if err != nil {
			backend.Close()
			lastErr = err
			continue
		}

		if chainID.Cmp(config.ChainID) != 0 {
			backend.Close()
			lastErr = fmt.Errorf("chain ID mismatch: expected %s, got %s", config.ChainID.String(), chainID.String())
			continue
		}

		p.backends[chainName] = backend
		return backend, config, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no rpc urls configured")
	}
	return nil, nil, fmt.Errorf("failed to connect to %s: %w", chainName, lastErr)
}

// DialEndpoint opens an uncached connection to the first reachable URL
// without checking which chain it serves. Wallet endpoints use this: the
// chain they report is exactly what the session needs to observe.
func (p *Pool) DialEndpoint(ctx context.Context, rpcURLs ...string) (Backend, error) {
	var lastErr error
	for _, rpcURL := range rpcURLs {
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		backend, err := p.dial(dialCtx, rpcURL)
		cancel()
		if err == nil {
			return backend, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no rpc urls configured")
	}
	return nil, fmt.Errorf("failed to dial wallet endpoint: %w", lastErr)
}

// Close closes all cached connections
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, backend := range p.backends {
		backend.Close()
	}
	p.backends = make(map[string]Backend)
}
