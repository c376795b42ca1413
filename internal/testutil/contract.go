package testutil

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/pokemint/internal/contract"
)

// HunterEntry mirrors the getShinyHunters tuple for encoding.
type HunterEntry struct {
	Winner  common.Address
	Pokemon string
}

func pokemonABI(t *testing.T) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(contract.PokemonNFTABI))
	require.NoError(t, err)
	return parsed
}

// PackHunters encodes a getShinyHunters return value.
func PackHunters(t *testing.T, hunters ...HunterEntry) []byte {
	t.Helper()
	parsed := pokemonABI(t)
	data, err := parsed.Methods["getShinyHunters"].Outputs.Pack(hunters)
	require.NoError(t, err)
	return data
}

// MintedLog builds a NewPokemonNFTMinted log emitted by nft at block.
func MintedLog(t *testing.T, nft, minter common.Address, tokenID int64, block uint64) types.Log {
	t.Helper()
	parsed := pokemonABI(t)
	event := parsed.Events["NewPokemonNFTMinted"]
	data, err := event.Inputs.NonIndexed().Pack(minter, big.NewInt(tokenID))
	require.NoError(t, err)
	return types.Log{
		Address:     nft,
		Topics:      []common.Hash{event.ID},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(big.NewInt(int64(block)*1000 + tokenID)),
	}
}
