package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/yolodolo42/pokemint/internal/contract"
)

// EnvPrefix prefixes environment overrides, e.g. POKEMINT_NETWORK.
const EnvPrefix = "POKEMINT"

const (
	DefaultNetwork        = "sepolia"
	DefaultContract       = "0xA72D2F4172ad22Adc5E0cb742230c32afDc3624b"
	DefaultMarketplaceURL = "https://testnets.opensea.io/assets"
)

// Config is the resolved runtime configuration.
type Config struct {
	Network        string
	RPCURL         string // wallet endpoint; empty uses the network's URLs
	FallbackRPCURL string // read-only endpoint; empty uses the network's URLs
	Contract       common.Address
	DataDir        string
	Password       string
	Yes            bool

	PollInterval        time.Duration
	ChainWatchInterval  time.Duration
	LeaderboardInterval time.Duration
	ConfirmMaxFailures  int
	ReadRPS             int

	MetricsAddr string
	LogLevel    string
	LogFormat   string

	ExplorerURL    string
	MarketplaceURL string
}

// DefaultDataDir is $HOME/.pokemint.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pokemint"
	}
	return filepath.Join(home, ".pokemint")
}

// SetDefaults registers defaults and environment binding on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("network", DefaultNetwork)
	v.SetDefault("rpc_url", "")
	v.SetDefault("fallback_rpc_url", "")
	v.SetDefault("contract", DefaultContract)
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("password", "")
	v.SetDefault("yes", false)
	v.SetDefault("poll_interval", 4*time.Second)
	v.SetDefault("chain_watch_interval", 3*time.Second)
	v.SetDefault("leaderboard_interval", 30*time.Second)
	v.SetDefault("confirm_max_failures", 10)
	v.SetDefault("read_rps", 5)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "console")
	v.SetDefault("explorer_url", "")
	v.SetDefault("marketplace_url", DefaultMarketplaceURL)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// Load resolves v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	addr, err := contract.ParseAddress(v.GetString("contract"))
	if err != nil {
		return nil, fmt.Errorf("invalid contract address: %w", err)
	}

	cfg := &Config{
		Network:             strings.ToLower(strings.TrimSpace(v.GetString("network"))),
		RPCURL:              v.GetString("rpc_url"),
		FallbackRPCURL:      v.GetString("fallback_rpc_url"),
		Contract:            addr,
		DataDir:             v.GetString("data_dir"),
		Password:            v.GetString("password"),
		Yes:                 v.GetBool("yes"),
		PollInterval:        v.GetDuration("poll_interval"),
		ChainWatchInterval:  v.GetDuration("chain_watch_interval"),
		LeaderboardInterval: v.GetDuration("leaderboard_interval"),
		ConfirmMaxFailures:  v.GetInt("confirm_max_failures"),
		ReadRPS:             v.GetInt("read_rps"),
		MetricsAddr:         v.GetString("metrics_addr"),
		LogLevel:            v.GetString("log_level"),
		LogFormat:           v.GetString("log_format"),
		ExplorerURL:         v.GetString("explorer_url"),
		MarketplaceURL:      strings.TrimRight(v.GetString("marketplace_url"), "/"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges. It does not check that Network is known;
// the chain registry does that when dialing.
func (c *Config) Validate() error {
	if c.Network == "" {
		return fmt.Errorf("network is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.ChainWatchInterval <= 0 {
		return fmt.Errorf("chain_watch_interval must be positive")
	}
	if c.LeaderboardInterval < 0 {
		return fmt.Errorf("leaderboard_interval must not be negative")
	}
	if c.ConfirmMaxFailures <= 0 {
		return fmt.Errorf("confirm_max_failures must be positive")
	}
	if c.ReadRPS <= 0 {
		return fmt.Errorf("read_rps must be positive")
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json, got %q", c.LogFormat)
	}
	return nil
}

// TokenURL links a minted token on the marketplace, or "" without a
// marketplace.
func (c *Config) TokenURL(tokenID fmt.Stringer) string {
	if c.MarketplaceURL == "" || tokenID == nil {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s", c.MarketplaceURL, c.Contract.Hex(), tokenID.String())
}
