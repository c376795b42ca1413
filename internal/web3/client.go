package web3

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"github.com/yolodolo42/pokemint/internal/chain"
	"github.com/yolodolo42/pokemint/internal/contract"
	"github.com/yolodolo42/pokemint/internal/metrics"
	"github.com/yolodolo42/pokemint/internal/wallet"
)

// Wallet is the injected wallet surface. *wallet.Provider implements it.
type Wallet interface {
	Available() bool
	Network() string
	Backend() (chain.Backend, error)
	Accounts() ([]common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	SignTransaction(ctx context.Context, req wallet.ApprovalRequest, unsigned *types.Transaction) (*types.Transaction, error)
	OnChainChanged(fn func(*big.Int)) func()
}

// FallbackFunc returns the read-only endpoint used while no account is
// attached. It is called for every read and may cache.
type FallbackFunc func(ctx context.Context) (chain.Backend, error)

// Options tune polling and limits. Zero values take defaults.
type Options struct {
	// PollInterval paces receipt and event polling.
	PollInterval time.Duration
	// MaxConsecutiveFailures bounds back-to-back receipt lookup errors
	// before AwaitConfirmation gives up with ErrProvider.
	MaxConsecutiveFailures int
	// ReadRPS limits fallback reads and event polls per second.
	ReadRPS int
	// Currency is the native currency symbol shown in approval prompts.
	Currency string
	Logger   *zap.Logger
}

const (
	defaultPollInterval           = 2 * time.Second
	defaultMaxConsecutiveFailures = 10
	defaultReadRPS                = 10
)

// Client adapts a wallet and a fallback reader to the operations the
// session and mint controllers need.
type Client struct {
	wallet   Wallet
	fallback FallbackFunc
	nft      *contract.PokemonNFT
	opts     Options
	logger   *zap.Logger
	limiter  ratelimit.Limiter

	walletRPC   *metrics.RPC
	fallbackRPC *metrics.RPC

	mu     sync.RWMutex
	signer *common.Address
}

// NewClient creates a client. w may be nil when no wallet exists.
func NewClient(w Wallet, fallback FallbackFunc, nft *contract.PokemonNFT, opts Options) *Client {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.MaxConsecutiveFailures <= 0 {
		opts.MaxConsecutiveFailures = defaultMaxConsecutiveFailures
	}
	if opts.ReadRPS <= 0 {
		opts.ReadRPS = defaultReadRPS
	}
	if opts.Currency == "" {
		opts.Currency = "ETH"
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		wallet:      w,
		fallback:    fallback,
		nft:         nft,
		opts:        opts,
		logger:      logger,
		limiter:     ratelimit.New(opts.ReadRPS),
		walletRPC:   metrics.NewRPC("wallet"),
		fallbackRPC: metrics.NewRPC("fallback"),
	}
}

// Contract returns the bound contract.
func (c *Client) Contract() *contract.PokemonNFT {
	return c.nft
}

// DetectWallet reports whether a wallet is present.
func (c *Client) DetectWallet() bool {
	return c.wallet != nil && c.wallet.Available()
}

// CurrentAccounts returns already-authorized accounts without prompting.
func (c *Client) CurrentAccounts(ctx context.Context) ([]common.Address, error) {
	if !c.DetectWallet() {
		return nil, providerErr("accounts", ErrNoWallet)
	}
	accs, err := c.wallet.Accounts()
	if err != nil {
		return nil, providerErr("accounts", err)
	}
	return accs, nil
}

// CurrentChainID asks the wallet which network it is on.
func (c *Client) CurrentChainID(ctx context.Context) (*big.Int, error) {
	if !c.DetectWallet() {
		return nil, providerErr("chain_id", ErrNoWallet)
	}
	started := time.Now()
	id, err := c.wallet.ChainID(ctx)
	c.walletRPC.Observe("chain_id", err, started)
	if err != nil {
		return nil, providerErr("chain_id", err)
	}
	return id, nil
}

// RequestAccounts prompts the user for authorization. It blocks until the
// user answers; a declined prompt returns ErrUserRejected.
func (c *Client) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if !c.DetectWallet() {
		return nil, providerErr("request_accounts", ErrNoWallet)
	}
	accs, err := c.wallet.RequestAccounts(ctx)
	if err != nil {
		return nil, providerErr("request_accounts", err)
	}
	return accs, nil
}

// AttachSigner binds account for mutating calls and wallet-backed reads.
func (c *Client) AttachSigner(account common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signer = &account
}

// DetachSigner unbinds the account.
func (c *Client) DetachSigner() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signer = nil
}

// Signer returns the attached account.
func (c *Client) Signer() (common.Address, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.signer == nil {
		return common.Address{}, false
	}
	return *c.signer, true
}

// SubscribeChainChange registers cb for wallet network switches.
func (c *Client) SubscribeChainChange(cb func(*big.Int)) func() {
	if c.wallet == nil {
		return func() {}
	}
	return c.wallet.OnChainChanged(cb)
}
