// Package contract binds the PokemonNFT contract: calldata for the mint entry
// point, the hall-of-fame accessor, and the mint-completion event.
package contract

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	ErrNotMintEvent = errors.New("log is not a NewPokemonNFTMinted event")
	ErrEmptyResult  = errors.New("empty call result")
)

// Hunter is one entry of the on-chain hall of fame.
type Hunter struct {
	Winner  common.Address
	Pokemon string
}

// Minted is the decoded NewPokemonNFTMinted event.
type Minted struct {
	Minter      common.Address
	TokenID     *big.Int
	BlockNumber uint64
	TxHash      common.Hash
}

// PokemonNFT encodes calls to and decodes data from a deployed contract.
type PokemonNFT struct {
	address common.Address
	abi     abi.ABI
}

// NewPokemonNFT parses the ABI and binds it to address.
func NewPokemonNFT(address common.Address) (*PokemonNFT, error) {
	parsed, err := abi.JSON(strings.NewReader(PokemonNFTABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse PokemonNFT ABI: %w", err)
	}
	return &PokemonNFT{address: address, abi: parsed}, nil
}

// Address returns the contract address.
func (p *PokemonNFT) Address() common.Address {
	return p.address
}

// MintCalldata returns the input data for mintNFT().
func (p *PokemonNFT) MintCalldata() ([]byte, error) {
	return p.abi.Pack(methodMint)
}

// HuntersCall builds the eth_call message for getShinyHunters().
func (p *PokemonNFT) HuntersCall() (ethereum.CallMsg, error) {
	data, err := p.abi.Pack(methodHunters)
	if err != nil {
		return ethereum.CallMsg{}, err
	}
	to := p.address
	return ethereum.CallMsg{To: &to, Data: data}, nil
}

// DecodeHunters unpacks the return data of getShinyHunters(), in contract
// order.
func (p *PokemonNFT) DecodeHunters(data []byte) ([]Hunter, error) {
	if len(data) == 0 {
		return nil, ErrEmptyResult
	}
	out, err := p.abi.Unpack(methodHunters, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", methodHunters, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("unpack %s: expected 1 output, got %d", methodHunters, len(out))
	}

	raw := *abi.ConvertType(out[0], new([]struct {
		Winner  common.Address `json:"winner"`
		Pokemon string         `json:"pokemon"`
	})).(*[]struct {
		Winner  common.Address `json:"winner"`
		Pokemon string         `json:"pokemon"`
	})

	hunters := make([]Hunter, len(raw))
	for i, h := range raw {
		hunters[i] = Hunter{Winner: h.Winner, Pokemon: h.Pokemon}
	}
	return hunters, nil
}

// MintedTopic is the event signature hash of NewPokemonNFTMinted.
func (p *PokemonNFT) MintedTopic() common.Hash {
	return p.abi.Events[eventMinted].ID
}

// MintedFilter selects mint events emitted by the contract in [from, to].
// A nil bound is open.
func (p *PokemonNFT) MintedFilter(from, to *big.Int) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: from,
		ToBlock:   to,
		Addresses: []common.Address{p.address},
		Topics:    [][]common.Hash{{p.MintedTopic()}},
	}
}

// ParseMinted decodes a NewPokemonNFTMinted log. Both indexed and
// non-indexed deployments of the event are accepted.
func (p *PokemonNFT) ParseMinted(l types.Log) (Minted, error) {
	event := p.abi.Events[eventMinted]
	if len(l.Topics) == 0 || l.Topics[0] != event.ID || l.Address != p.address {
		return Minted{}, ErrNotMintEvent
	}

	fields := make(map[string]interface{})
	if len(l.Data) > 0 {
		if err := event.Inputs.NonIndexed().UnpackIntoMap(fields, l.Data); err != nil {
			return Minted{}, fmt.Errorf("unpack %s: %w", eventMinted, err)
		}
	}
	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(fields, indexed, l.Topics[1:]); err != nil {
			return Minted{}, fmt.Errorf("parse %s topics: %w", eventMinted, err)
		}
	}

	minter, ok := fields[eventFieldSender].(common.Address)
	if !ok {
		return Minted{}, fmt.Errorf("%s: missing %s", eventMinted, eventFieldSender)
	}
	tokenID, ok := fields[eventFieldTokenID].(*big.Int)
	if !ok {
		return Minted{}, fmt.Errorf("%s: missing %s", eventMinted, eventFieldTokenID)
	}

	return Minted{
		Minter:      minter,
		TokenID:     tokenID,
		BlockNumber: l.BlockNumber,
		TxHash:      l.TxHash,
	}, nil
}

// ParseAddress accepts a hex address in any case. Mixed-case input must carry
// a valid EIP-55 checksum.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address: %q", s)
	}
	addr := common.HexToAddress(s)
	body := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && "0x"+body != addr.Hex() {
		return common.Address{}, fmt.Errorf("invalid address checksum: %q", s)
	}
	return addr, nil
}
