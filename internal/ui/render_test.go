package ui

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/yolodolo42/pokemint/internal/leaderboard"
	"github.com/yolodolo42/pokemint/internal/mint"
	"github.com/yolodolo42/pokemint/internal/session"
	"github.com/yolodolo42/pokemint/internal/wallet"
	"github.com/yolodolo42/pokemint/internal/web3"
)

func TestShortAddress(t *testing.T) {
	addr := common.HexToAddress("0x1234567890abcdef1234567890abcdef12345678")
	assert.Equal(t, "0x1234…5678", ShortAddress(addr))
}

func TestSessionLine(t *testing.T) {
	account := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	tests := []struct {
		name  string
		state session.Session
		want  string
	}{
		{"no wallet", session.Session{State: session.NoWallet}, "No wallet found"},
		{"disconnected", session.Session{State: session.WalletPresentDisconnected}, "not connected"},
		{"wrong network", session.Session{State: session.WrongNetwork}, "wrong network"},
		{"connected", session.Session{State: session.Connected, Account: &account}, account.Hex()},
		{"unknown", session.Session{}, "Checking wallet"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, SessionLine(tt.state), tt.want)
		})
	}
}

func TestNetworkBanner(t *testing.T) {
	assert.Empty(t, NetworkBanner(session.Session{State: session.Connected}))
	assert.Contains(t,
		NetworkBanner(session.Session{State: session.WrongNetwork, Warning: "Please connect to Sepolia"}),
		"Please connect to Sepolia")
}

func TestMintStatus(t *testing.T) {
	submitted := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("idle renders nothing", func(t *testing.T) {
		assert.Empty(t, MintStatus(mint.Attempt{}, submitted, time.Minute))
	})

	t.Run("submitting waits for the wallet", func(t *testing.T) {
		assert.Contains(t, MintStatus(mint.Attempt{Status: mint.Submitting}, submitted, time.Minute), "wallet approval")
	})

	t.Run("mining shows elapsed time", func(t *testing.T) {
		a := mint.Attempt{Status: mint.Mining, SubmittedAt: submitted}
		got := MintStatus(a, submitted.Add(42*time.Second), time.Minute)
		assert.Contains(t, got, "Transaction is mining (42s)")
		assert.NotContains(t, got, "stuck")
	})

	t.Run("long mining is flagged", func(t *testing.T) {
		a := mint.Attempt{Status: mint.Mining, SubmittedAt: submitted}
		assert.Contains(t, MintStatus(a, submitted.Add(2*time.Minute), time.Minute), "stuck")
		assert.NotContains(t, MintStatus(a, submitted.Add(2*time.Minute), 0), "stuck")
	})

	t.Run("success with token", func(t *testing.T) {
		a := mint.Attempt{Status: mint.Success, MintedTokenID: big.NewInt(7)}
		got := MintStatus(a, submitted, time.Minute)
		assert.Contains(t, got, "NFT minting successful!")
		assert.Contains(t, got, "Token #7")
	})

	t.Run("failure", func(t *testing.T) {
		a := mint.Attempt{Status: mint.Failed, Err: web3.ErrTransactionReverted}
		assert.Contains(t, MintStatus(a, submitted, time.Minute), "Transaction failed. Please try again.")
	})
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"rejected", fmt.Errorf("sign: %w", wallet.ErrUserRejected), "rejected in the wallet"},
		{"network changed", web3.ErrNetworkChanged, "switched networks"},
		{"reverted", web3.ErrTransactionReverted, "Transaction failed. Please try again."},
		{"provider", errors.New("boom"), "Transaction failed. Please try again."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, FailureReason(tt.err), tt.want)
		})
	}
}

func TestHallOfFame(t *testing.T) {
	winner := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	t.Run("empty", func(t *testing.T) {
		got := HallOfFame(nil, nil)
		assert.Contains(t, got, "Shiny Hunters Hall of Fame")
		assert.Contains(t, got, "No shinies have been hunted yet.")
	})

	t.Run("empty with error", func(t *testing.T) {
		assert.Contains(t, HallOfFame(nil, errors.New("rpc down")), "Leaderboard unavailable: rpc down")
	})

	t.Run("records with stale error", func(t *testing.T) {
		got := HallOfFame([]leaderboard.Record{{Winner: winner, Species: "Mew"}}, errors.New("rpc down"))
		assert.Contains(t, got, "Mew")
		assert.Contains(t, got, winner.Hex())
		assert.Contains(t, got, "stale")
	})
}

func TestTokenNotice(t *testing.T) {
	assert.Empty(t, TokenNotice(""))
	assert.Contains(t, TokenNotice("https://market/1"), "https://market/1")
}
