package chain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yolodolo42/pokemint/internal/chain"
	"github.com/yolodolo42/pokemint/internal/testutil"
)

func TestPool_Dial(t *testing.T) {
	t.Run("unknown chain", func(t *testing.T) {
		p := chain.NewPoolWithDialer(func(ctx context.Context, url string) (chain.Backend, error) {
			t.Fatal("dial should not be called")
			return nil, nil
		})
		_, _, err := p.Dial(context.Background(), "nope")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown chain")
	})

	t.Run("skips endpoints serving another chain", func(t *testing.T) {
		wrong := testutil.NewFakeBackend(1)
		right := testutil.NewFakeBackend(11155111)
		backends := map[string]*testutil.FakeBackend{"a": wrong, "b": right}

		p := chain.NewPoolWithDialer(func(ctx context.Context, url string) (chain.Backend, error) {
			return backends[url], nil
		})
		cfg, err := p.GetChainConfig("sepolia")
		require.NoError(t, err)
		cfg.RPCURLs = []string{"a", "b"}
		p.AddChain("sepolia", cfg)

		b, got, err := p.Dial(context.Background(), "sepolia")
		require.NoError(t, err)
		assert.Same(t, right, b)
		assert.Equal(t, cfg, got)
		assert.True(t, wrong.Closed())
	})

	t.Run("caches connections", func(t *testing.T) {
		dials := 0
		p := chain.NewPoolWithDialer(func(ctx context.Context, url string) (chain.Backend, error) {
			dials++
			return testutil.NewFakeBackend(31337), nil
		})

		first, _, err := p.Dial(context.Background(), "localhost")
		require.NoError(t, err)
		second, _, err := p.Dial(context.Background(), "localhost")
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, 1, dials)
	})

	t.Run("reports last error", func(t *testing.T) {
		p := chain.NewPoolWithDialer(func(ctx context.Context, url string) (chain.Backend, error) {
			return nil, errors.New("connection refused")
		})
		_, _, err := p.Dial(context.Background(), "localhost")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestPool_DialEndpoint(t *testing.T) {
	t.Run("does not verify chain id", func(t *testing.T) {
		fb := testutil.NewFakeBackend(4)
		p := chain.NewPoolWithDialer(func(ctx context.Context, url string) (chain.Backend, error) {
			return fb, nil
		})
		b, err := p.DialEndpoint(context.Background(), "http://wallet")
		require.NoError(t, err)
		assert.Same(t, fb, b)
	})

	t.Run("no urls", func(t *testing.T) {
		p := chain.NewPool()
		_, err := p.DialEndpoint(context.Background())
		require.Error(t, err)
	})
}

func TestPool_ByChainID(t *testing.T) {
	p := chain.NewPool()
	cfg, err := p.GetChainConfig("sepolia")
	require.NoError(t, err)

	name, got, ok := p.ByChainID(cfg.ChainID)
	assert.True(t, ok)
	assert.Equal(t, "sepolia", name)
	assert.Equal(t, cfg, got)

	_, _, ok = p.ByChainID(nil)
	assert.False(t, ok)
}

func TestPool_ListChains(t *testing.T) {
	p := chain.NewPool()
	names := p.ListChains()
	assert.Equal(t, []string{"base-sepolia", "ethereum", "holesky", "localhost", "sepolia"}, names)
}
