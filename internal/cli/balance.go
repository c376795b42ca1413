package cli

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yolodolo42/pokemint/internal/chain"
	"github.com/yolodolo42/pokemint/internal/ui"
	"github.com/yolodolo42/pokemint/internal/wallet"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show gas balances of keystore accounts",
	Long: `Display the native balance of each keystore account on the configured
network, or of --address. Minting needs enough balance to pay for gas.`,
	RunE: runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)

	balanceCmd.Flags().String("address", "", "Address to check (default: every keystore account)")
	balanceCmd.Flags().StringSlice("networks", nil, "Networks to query (default: the configured network)")
}

func runBalance(cmd *cobra.Command, args []string) error {
	addressFlag, _ := cmd.Flags().GetString("address")
	networks, _ := cmd.Flags().GetStringSlice("networks")
	if len(networks) == 0 {
		networks = []string{viper.GetString("network")}
	}

	var addresses []common.Address
	if addressFlag != "" {
		if !common.IsHexAddress(addressFlag) {
			return fmt.Errorf("invalid address: %s", addressFlag)
		}
		addresses = []common.Address{common.HexToAddress(addressFlag)}
	} else {
		dataDir := viper.GetString("data_dir")
		if !wallet.HasKeys(dataDir) {
			return fmt.Errorf("no address specified and no accounts found. Use --address or 'pokemint wallet create'")
		}
		km, err := openKeystore()
		if err != nil {
			return err
		}
		addresses = km.Addresses()
	}

	pool := chain.NewPool()
	defer pool.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	return printBalances(ctx, cmd, pool, networks, addresses)
}

func printBalances(ctx context.Context, cmd *cobra.Command, pool *chain.Pool, networks []string, addresses []common.Address) error {
	out := cmd.OutOrStdout()
	for _, addr := range addresses {
		fmt.Fprintf(out, "%s\n", addr.Hex())
		for _, network := range networks {
			bal, err := pool.NativeBalance(ctx, network, addr)
			if err != nil {
				fmt.Fprintf(out, "  %-10s  %s\n", network, ui.ErrorStyle.Render(ui.SymbolWarn+" "+err.Error()))
				continue
			}

			indicator := "○"
			if bal.Wei.Cmp(big.NewInt(0)) > 0 {
				indicator = ui.SymbolBullet
			}
			fmt.Fprintf(out, "  %s %-10s  %s\n", indicator, network, bal)
		}
	}
	return nil
}
