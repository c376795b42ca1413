package web3

import (
	"context"
	"errors"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/yolodolo42/pokemint/internal/chain"
	"github.com/yolodolo42/pokemint/internal/contract"
)

// SubscribeMintEvents polls the wallet's endpoint for NewPokemonNFTMinted
// events emitted after the current head and passes each to cb, in block
// order. The subscription is tied to the signer attached at call time and
// lasts until the returned function or ctx cancels it. A callback already
// running when it is cancelled is not waited for.
func (c *Client) SubscribeMintEvents(ctx context.Context, cb func(contract.Minted)) (func(), error) {
	if _, ok := c.Signer(); !ok {
		return nil, ErrNoSigner
	}
	if !c.DetectWallet() {
		return nil, providerErr("subscribe", ErrNoWallet)
	}
	backend, err := c.wallet.Backend()
	if err != nil {
		return nil, providerErr("subscribe", err)
	}

	started := time.Now()
	head, err := backend.BlockNumber(ctx)
	c.walletRPC.Observe("block_number", err, started)
	if err != nil {
		return nil, providerErr("subscribe", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	go c.pollMintEvents(subCtx, backend, head+1, cb)
	return cancel, nil
}

func (c *Client) pollMintEvents(ctx context.Context, backend chain.Backend, from uint64, cb func(contract.Minted)) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		c.limiter.Take()
		started := time.Now()
		head, err := backend.BlockNumber(ctx)
		c.walletRPC.Observe("block_number", err, started)
		if err != nil {
			c.logger.Debug("event poll head failed", zap.Error(err))
			continue
		}
		if head < from {
			continue
		}

		started = time.Now()
		logs, err := backend.FilterLogs(ctx, c.nft.MintedFilter(new(big.Int).SetUint64(from), new(big.Int).SetUint64(head)))
		c.walletRPC.Observe("filter_logs", err, started)
		if err != nil {
			c.logger.Debug("event poll failed", zap.Uint64("from", from), zap.Error(err))
			continue
		}

		for _, l := range logs {
			if ctx.Err() != nil {
				return
			}
			ev, err := c.nft.ParseMinted(l)
			if err != nil {
				if !errors.Is(err, contract.ErrNotMintEvent) {
					c.logger.Warn("undecodable mint event", zap.String("tx", l.TxHash.Hex()), zap.Error(err))
				}
				continue
			}
			cb(ev)
		}
		from = head + 1
	}
}
