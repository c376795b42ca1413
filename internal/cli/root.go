package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yolodolo42/pokemint/internal/config"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "pokemint",
		Short: "Mint Pokemon NFTs from the terminal",
		Long: `pokemint connects a local keystore wallet to the Pokemon NFT contract.

Connect an account, mint an NFT, and follow the Shiny Hunters Hall of Fame.
Every transaction is shown for approval before it is signed, and the wallet
must be on the configured network before a mint can start.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd, args)
		},
	}
)

func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command; cancelling ctx stops background work
// and any wait for confirmation.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.pokemint/config.yaml)")
	flags.String("network", config.DefaultNetwork, "Network the wallet must be on")
	flags.String("rpc-url", "", "Wallet RPC endpoint (default: the network's public endpoints)")
	flags.String("fallback-rpc-url", "", "Read-only RPC endpoint used while no account is connected")
	flags.String("contract", config.DefaultContract, "Pokemon NFT contract address")
	flags.String("data-dir", config.DefaultDataDir(), "Directory holding the keystore")
	flags.BoolP("yes", "y", false, "Approve transactions without asking")
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flags.String("log-format", "console", "Log format (console, json)")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9100")

	for key, flag := range map[string]string{
		"network":          "network",
		"rpc_url":          "rpc-url",
		"fallback_rpc_url": "fallback-rpc-url",
		"contract":         "contract",
		"data_dir":         "data-dir",
		"yes":              "yes",
		"log_level":        "log-level",
		"log_format":       "log-format",
		"metrics_addr":     "metrics-addr",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		configDir := filepath.Join(home, ".pokemint")
		if err := os.MkdirAll(configDir, 0700); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config directory: %v\n", err)
		}

		viper.AddConfigPath(configDir)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Silently ignore missing config file - it's optional
	_ = viper.ReadInConfig()
}
