package web3

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/yolodolo42/pokemint/internal/chain"
	"github.com/yolodolo42/pokemint/internal/tx"
	"github.com/yolodolo42/pokemint/internal/wallet"
)

// Handle identifies a submitted transaction and the endpoint it was sent to.
type Handle struct {
	TxHash      common.Hash
	From        common.Address
	Nonce       uint64
	ChainID     *big.Int
	SubmittedAt time.Time

	backend chain.Backend
}

// SubmitMint builds, approves, signs and sends a mintNFT() transaction from
// the attached signer.
func (c *Client) SubmitMint(ctx context.Context) (Handle, error) {
	from, ok := c.Signer()
	if !ok {
		return Handle{}, ErrNoSigner
	}
	if !c.DetectWallet() {
		return Handle{}, providerErr("submit_mint", ErrNoWallet)
	}

	backend, err := c.wallet.Backend()
	if err != nil {
		return Handle{}, providerErr("submit_mint", err)
	}
	chainID, err := c.CurrentChainID(ctx)
	if err != nil {
		return Handle{}, err
	}

	data, err := c.nft.MintCalldata()
	if err != nil {
		return Handle{}, fmt.Errorf("encode mint: %w", err)
	}

	intent := tx.Intent{
		From:     from,
		To:       c.nft.Address(),
		ValueWei: big.NewInt(0),
		Data:     data,
	}
	policy := tx.Policy{
		AllowTo:     []common.Address{c.nft.Address()},
		MaxPerTxWei: big.NewInt(0),
	}
	if err := tx.Validate(intent, policy); err != nil {
		return Handle{}, fmt.Errorf("mint rejected by policy: %w", err)
	}

	started := time.Now()
	unsigned, fees, err := tx.BuildUnsignedTx(ctx, backend, chainID, intent)
	c.walletRPC.Observe("build_tx", err, started)
	if err != nil {
		return Handle{}, providerErr("build_tx", err)
	}
	if fees.SimulationErr != nil {
		c.logger.Warn("mint simulation failed", zap.String("account", from.Hex()), zap.Error(fees.SimulationErr))
	}

	signed, err := c.wallet.SignTransaction(ctx, wallet.ApprovalRequest{
		From:     from,
		To:       c.nft.Address(),
		Network:  c.wallet.Network(),
		ChainID:  chainID,
		Nonce:    unsigned.Nonce(),
		GasLimit: fees.GasLimit,
		MaxCost:  chain.FormatBalance(fees.EstimatedCostWei, 18) + " " + c.opts.Currency,
		Action:   "mintNFT()",
	}, unsigned)
	if err != nil {
		if errors.Is(err, wallet.ErrNotAuthorized) {
			return Handle{}, fmt.Errorf("%w: %w", ErrNoSigner, err)
		}
		return Handle{}, providerErr("sign_tx", err)
	}

	started = time.Now()
	err = backend.SendTransaction(ctx, signed)
	c.walletRPC.Observe("send_tx", err, started)
	if err != nil {
		return Handle{}, providerErr("send_tx", err)
	}

	c.logger.Info("mint submitted",
		zap.String("account", from.Hex()),
		zap.String("tx", signed.Hash().Hex()),
		zap.Uint64("nonce", signed.Nonce()),
	)
	return Handle{
		TxHash:      signed.Hash(),
		From:        from,
		Nonce:       signed.Nonce(),
		ChainID:     chainID,
		SubmittedAt: time.Now(),
		backend:     backend,
	}, nil
}

// AwaitConfirmation polls for the receipt of h until it is mined. There is
// no deadline; only ctx or repeated RPC failures end the wait early.
func (c *Client) AwaitConfirmation(ctx context.Context, h Handle) (*types.Receipt, error) {
	backend := h.backend
	if backend == nil {
		if c.wallet == nil {
			return nil, providerErr("await_confirmation", ErrNoWallet)
		}
		b, err := c.wallet.Backend()
		if err != nil {
			return nil, providerErr("await_confirmation", err)
		}
		backend = b
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		started := time.Now()
		receipt, err := backend.TransactionReceipt(ctx, h.TxHash)
		switch {
		case err == nil:
			c.walletRPC.Observe("receipt", nil, started)
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("%w: %s", ErrTransactionReverted, h.TxHash.Hex())
			}
			return receipt, nil
		case errors.Is(err, ethereum.NotFound):
			c.walletRPC.Observe("receipt", nil, started)
			failures = 0
		default:
			c.walletRPC.Observe("receipt", err, started)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			c.logger.Debug("receipt lookup failed",
				zap.String("tx", h.TxHash.Hex()),
				zap.Int("failures", failures),
				zap.Error(err),
			)
			if failures >= c.opts.MaxConsecutiveFailures {
				return nil, providerErr("await_confirmation", err)
			}
		}
		timer.Reset(c.opts.PollInterval)
	}
}
