package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yolodolo42/pokemint/internal/chain"
	"github.com/yolodolo42/pokemint/internal/ui"
)

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List known networks",
	RunE:  runNetworks,
}

func init() {
	rootCmd.AddCommand(networksCmd)
}

func runNetworks(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pool := chain.NewPool()
	defer pool.Close()

	out := cmd.OutOrStdout()
	for _, name := range pool.ListChains() {
		c, err := pool.GetChainConfig(name)
		if err != nil {
			return err
		}
		marker := "  "
		if name == cfg.Network {
			marker = ui.SymbolArrow + " "
		}
		testnet := ""
		if c.IsTestnet {
			testnet = " (testnet)"
		}
		fmt.Fprintf(out, "%s%-10s %-20s chain %-10s%s\n", marker, name, c.Name, c.ChainID, testnet)
	}
	return nil
}
