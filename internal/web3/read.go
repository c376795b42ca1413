package web3

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"

	"github.com/yolodolo42/pokemint/internal/chain"
	"github.com/yolodolo42/pokemint/internal/contract"
	"github.com/yolodolo42/pokemint/internal/metrics"
)

// Call describes a contract view: how to build the call and how to decode
// its result.
type Call[T any] struct {
	Name   string
	Msg    func() (ethereum.CallMsg, error)
	Decode func([]byte) (T, error)
}

// ReadContract runs call against the wallet's endpoint when a signer is
// attached and against the fallback reader otherwise.
func ReadContract[T any](ctx context.Context, c *Client, call Call[T]) (T, error) {
	var zero T

	msg, err := call.Msg()
	if err != nil {
		return zero, fmt.Errorf("build %s call: %w", call.Name, err)
	}

	backend, rec, err := c.readBackend(ctx)
	if err != nil {
		return zero, providerErr(call.Name, err)
	}

	started := time.Now()
	data, err := backend.CallContract(ctx, msg, nil)
	rec.Observe("call_contract", err, started)
	if err != nil {
		return zero, providerErr(call.Name, err)
	}

	out, err := call.Decode(data)
	if err != nil {
		return zero, fmt.Errorf("decode %s: %w", call.Name, err)
	}
	return out, nil
}

func (c *Client) readBackend(ctx context.Context) (chain.Backend, *metrics.RPC, error) {
	if _, ok := c.Signer(); ok && c.DetectWallet() {
		if b, err := c.wallet.Backend(); err == nil {
			return b, c.walletRPC, nil
		}
	}
	if c.fallback == nil {
		return nil, nil, fmt.Errorf("no read endpoint configured")
	}
	c.limiter.Take()
	b, err := c.fallback(ctx)
	if err != nil {
		return nil, nil, err
	}
	return b, c.fallbackRPC, nil
}

// ReadHunters returns the hall of fame in contract order.
func (c *Client) ReadHunters(ctx context.Context) ([]contract.Hunter, error) {
	return ReadContract(ctx, c, Call[[]contract.Hunter]{
		Name:   "getShinyHunters",
		Msg:    c.nft.HuntersCall,
		Decode: c.nft.DecodeHunters,
	})
}
