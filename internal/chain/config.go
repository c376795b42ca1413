package chain

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// ChainConfig holds configuration for an EVM network.
// Invariant: ChainID and ChainIDInt must always represent the same value.
// ChainIDInt exists for YAML serialization (big.Int doesn't serialize cleanly).
type ChainConfig struct {
	Name           string   `yaml:"name"`
	ChainID        *big.Int `yaml:"-"`        // Runtime use (signing, RPC validation)
	ChainIDInt     int64    `yaml:"chain_id"` // YAML serialization
	RPCURLs        []string `yaml:"rpc_urls"`
	ExplorerURL    string   `yaml:"explorer_url"`
	NativeCurrency string   `yaml:"native_currency"`
	IsTestnet      bool     `yaml:"is_testnet"`
}

// TxURL returns the explorer link for a transaction, or "" when the network
// has no explorer.
func (c *ChainConfig) TxURL(txHash string) string {
	if c == nil || c.ExplorerURL == "" {
		return ""
	}
	return strings.TrimRight(c.ExplorerURL, "/") + "/tx/" + txHash
}

// HexChainID renders the chain id the way wallets report it (eth_chainId).
func (c *ChainConfig) HexChainID() string {
	return fmt.Sprintf("0x%x", c.ChainID)
}

// DefaultChains returns the built-in network configurations.
func DefaultChains() map[string]*ChainConfig {
	return map[string]*ChainConfig{
		"ethereum": {
			Name:           "Ethereum Mainnet",
			ChainID:        big.NewInt(1),
			ChainIDInt:     1,
			RPCURLs:        []string{"https://eth.llamarpc.com", "https://rpc.ankr.com/eth"},
			ExplorerURL:    "https://etherscan.io",
			NativeCurrency: "ETH",
		},
		"sepolia": {
			Name:           "Sepolia Testnet",
			ChainID:        big.NewInt(11155111),
			ChainIDInt:     11155111,
			RPCURLs:        []string{"https://rpc.sepolia.org", "https://sepolia.drpc.org"},
			ExplorerURL:    "https://sepolia.etherscan.io",
			NativeCurrency: "ETH",
			IsTestnet:      true,
		},
		"holesky": {
			Name:           "Holesky Testnet",
			ChainID:        big.NewInt(17000),
			ChainIDInt:     17000,
			RPCURLs:        []string{"https://ethereum-holesky-rpc.publicnode.com"},
			ExplorerURL:    "https://holesky.etherscan.io",
			NativeCurrency: "ETH",
			IsTestnet:      true,
		},
		"base-sepolia": {
			Name:           "Base Sepolia Testnet",
			ChainID:        big.NewInt(84532),
			ChainIDInt:     84532,
			RPCURLs:        []string{"https://sepolia.base.org"},
			ExplorerURL:    "https://sepolia.basescan.org",
			NativeCurrency: "ETH",
			IsTestnet:      true,
		},
		"localhost": {
			Name:           "Local Devnet",
			ChainID:        big.NewInt(31337),
			ChainIDInt:     31337,
			RPCURLs:        []string{"http://127.0.0.1:8545"},
			NativeCurrency: "ETH",
			IsTestnet:      true,
		},
	}
}

// SortedNames returns the keys of chains in a stable order.
func SortedNames(chains map[string]*ChainConfig) []string {
	names := make([]string, 0, len(chains))
	for name := range chains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
