package chain_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yolodolo42/pokemint/internal/chain"
	"github.com/yolodolo42/pokemint/internal/testutil"
)

func TestPool_NativeBalance(t *testing.T) {
	account := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	t.Run("formats the balance", func(t *testing.T) {
		backend := testutil.NewFakeBackend(11155111)
		backend.SetBalance(account, big.NewInt(10_000_000_000_000_000))
		p := chain.NewPoolWithDialer(func(ctx context.Context, url string) (chain.Backend, error) {
			return backend, nil
		})

		bal, err := p.NativeBalance(context.Background(), "sepolia", account)
		require.NoError(t, err)
		assert.Equal(t, "sepolia", bal.Network)
		assert.Equal(t, "0.010000 ETH", bal.String())
	})

	t.Run("dial failure", func(t *testing.T) {
		p := chain.NewPoolWithDialer(func(ctx context.Context, url string) (chain.Backend, error) {
			return nil, errors.New("connection refused")
		})
		_, err := p.NativeBalance(context.Background(), "sepolia", account)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})
}
