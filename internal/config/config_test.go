package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/pokemint/internal/testutil"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, "sepolia", cfg.Network)
	assert.Equal(t, common.HexToAddress(DefaultContract), cfg.Contract)
	assert.Equal(t, 4*time.Second, cfg.PollInterval)
	assert.Equal(t, 10, cfg.ConfirmMaxFailures)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.False(t, cfg.Yes)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestLoadOverrides(t *testing.T) {
	t.Run("explicit values", func(t *testing.T) {
		v := newViper()
		v.Set("network", " Holesky ")
		v.Set("poll_interval", "250ms")
		v.Set("contract", "0x00000000000000000000000000000000000000a1")
		v.Set("marketplace_url", "https://example.com/assets/")

		cfg, err := Load(v)
		require.NoError(t, err)
		assert.Equal(t, "holesky", cfg.Network)
		assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
		assert.Equal(t, "https://example.com/assets", cfg.MarketplaceURL)
	})

	t.Run("environment", func(t *testing.T) {
		testutil.SetEnv(t, "POKEMINT_NETWORK", "localhost")
		testutil.SetEnv(t, "POKEMINT_READ_RPS", "42")

		cfg, err := Load(newViper())
		require.NoError(t, err)
		assert.Equal(t, "localhost", cfg.Network)
		assert.Equal(t, 42, cfg.ReadRPS)
	})

	t.Run("config file", func(t *testing.T) {
		dir := testutil.TempDir(t)
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("network: base-sepolia\nyes: true\nlog_format: json\n"), 0600))

		v := newViper()
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())

		cfg, err := Load(v)
		require.NoError(t, err)
		assert.Equal(t, "base-sepolia", cfg.Network)
		assert.True(t, cfg.Yes)
		assert.Equal(t, "json", cfg.LogFormat)
	})
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
	}{
		{"bad contract", "contract", "0x1234"},
		{"empty network", "network", ""},
		{"zero poll interval", "poll_interval", "0s"},
		{"zero watch interval", "chain_watch_interval", "0s"},
		{"negative leaderboard interval", "leaderboard_interval", "-1s"},
		{"zero failures", "confirm_max_failures", 0},
		{"zero rps", "read_rps", 0},
		{"unknown log format", "log_format", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			v.Set(tt.key, tt.value)
			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}

func TestTokenURL(t *testing.T) {
	cfg := &Config{
		Contract:       common.HexToAddress(DefaultContract),
		MarketplaceURL: DefaultMarketplaceURL,
	}
	assert.Equal(t,
		"https://testnets.opensea.io/assets/0xA72D2F4172ad22Adc5E0cb742230c32afDc3624b/42",
		cfg.TokenURL(big.NewInt(42)),
	)

	cfg.MarketplaceURL = ""
	assert.Empty(t, cfg.TokenURL(big.NewInt(42)))
}
