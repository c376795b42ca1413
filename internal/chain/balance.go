package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Balance is an account's native-currency balance on one network.
type Balance struct {
	Network  string
	Account  common.Address
	Wei      *big.Int
	Symbol   string
	Decimals uint8
}

// String renders the balance as "0.010000 ETH".
func (b Balance) String() string {
	return FormatBalance(b.Wei, b.Decimals) + " " + b.Symbol
}

// NativeBalance reads account's latest balance on the named network.
func (p *Pool) NativeBalance(ctx context.Context, network string, account common.Address) (Balance, error) {
	backend, cfg, err := p.Dial(ctx, network)
	if err != nil {
		return Balance{}, err
	}

	wei, err := backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return Balance{}, fmt.Errorf("failed to get balance on %s: %w", network, err)
	}

	return Balance{
		Network:  network,
		Account:  account,
		Wei:      wei,
		Symbol:   cfg.NativeCurrency,
		Decimals: 18,
	}, nil
}
