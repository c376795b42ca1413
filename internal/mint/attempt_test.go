package mint

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

var (
	alice  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob    = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	txHash = common.HexToHash("0xfeed")
)

func run(events ...Event) Attempt {
	var a Attempt
	for _, ev := range events {
		a = Reduce(a, ev)
	}
	return a
}

func TestReduceLifecycle(t *testing.T) {
	t.Run("happy path with event after confirmation", func(t *testing.T) {
		a := run(
			Started{ID: 1, Account: alice},
			Submitted{ID: 1, TxHash: txHash},
			Confirmed{ID: 1},
			TokenResolved{Minter: alice, TokenID: big.NewInt(42)},
		)
		assert.Equal(t, Success, a.Status)
		assert.Equal(t, int64(42), a.MintedTokenID.Int64())
		assert.Equal(t, txHash, a.TxHash)
		assert.NoError(t, a.Err)
	})

	t.Run("event before confirmation is held", func(t *testing.T) {
		a := run(
			Started{ID: 1, Account: alice},
			Submitted{ID: 1, TxHash: txHash},
			TokenResolved{Minter: alice, TokenID: big.NewInt(42)},
		)
		assert.Equal(t, Mining, a.Status)
		assert.Nil(t, a.MintedTokenID)

		a = Reduce(a, Confirmed{ID: 1})
		assert.Equal(t, Success, a.Status)
		assert.Equal(t, int64(42), a.MintedTokenID.Int64())
	})

	t.Run("other minters are ignored", func(t *testing.T) {
		a := run(
			Started{ID: 1, Account: alice},
			Submitted{ID: 1, TxHash: txHash},
			TokenResolved{Minter: bob, TokenID: big.NewInt(7)},
			Confirmed{ID: 1},
			TokenResolved{Minter: bob, TokenID: big.NewInt(8)},
		)
		assert.Equal(t, Success, a.Status)
		assert.Nil(t, a.MintedTokenID)
	})

	t.Run("events while submitting or idle are ignored", func(t *testing.T) {
		a := run(TokenResolved{Minter: alice, TokenID: big.NewInt(1)})
		assert.Equal(t, Attempt{}, a)

		a = run(Started{ID: 1, Account: alice}, TokenResolved{Minter: alice, TokenID: big.NewInt(1)})
		assert.Equal(t, Submitting, a.Status)
		assert.Nil(t, a.heldTokenID)
	})

	t.Run("submit failure", func(t *testing.T) {
		a := run(Started{ID: 1, Account: alice}, SubmitFailed{ID: 1, Err: errors.New("rejected")})
		assert.Equal(t, Failed, a.Status)
		assert.EqualError(t, a.Err, "rejected")
		assert.Nil(t, a.MintedTokenID)
	})

	t.Run("confirmation failure", func(t *testing.T) {
		a := run(
			Started{ID: 1, Account: alice},
			Submitted{ID: 1, TxHash: txHash},
			TokenResolved{Minter: alice, TokenID: big.NewInt(3)},
			ConfirmFailed{ID: 1, Err: errors.New("reverted")},
		)
		assert.Equal(t, Failed, a.Status)
		assert.Nil(t, a.MintedTokenID)
		assert.Nil(t, a.heldTokenID)
	})

	t.Run("failure without error still carries one", func(t *testing.T) {
		a := run(Started{ID: 1, Account: alice}, SubmitFailed{ID: 1})
		assert.Error(t, a.Err)
	})
}

func TestReduceGuards(t *testing.T) {
	t.Run("start is refused while in flight", func(t *testing.T) {
		a := run(Started{ID: 1, Account: alice}, Started{ID: 2, Account: bob})
		assert.Equal(t, uint64(1), a.ID)
		assert.Equal(t, alice, a.Account)

		a = run(Started{ID: 1, Account: alice}, Submitted{ID: 1}, Started{ID: 2, Account: bob})
		assert.Equal(t, uint64(1), a.ID)
		assert.Equal(t, Mining, a.Status)
	})

	t.Run("start after terminal resets the slot", func(t *testing.T) {
		a := run(
			Started{ID: 1, Account: alice},
			Submitted{ID: 1, TxHash: txHash},
			Confirmed{ID: 1},
			TokenResolved{Minter: alice, TokenID: big.NewInt(42)},
			Started{ID: 2, Account: alice},
		)
		assert.Equal(t, Attempt{ID: 2, Status: Submitting, Account: alice}, a)
	})

	t.Run("callbacks for other attempts are discarded", func(t *testing.T) {
		a := run(Started{ID: 2, Account: alice}, Submitted{ID: 1}, SubmitFailed{ID: 1, Err: errors.New("x")})
		assert.Equal(t, Submitting, a.Status)

		a = run(Started{ID: 2, Account: alice}, Submitted{ID: 2}, Confirmed{ID: 1}, ConfirmFailed{ID: 1})
		assert.Equal(t, Mining, a.Status)
	})

	t.Run("abandon fails in-flight attempts only", func(t *testing.T) {
		changed := errors.New("network changed")

		a := run(Started{ID: 1, Account: alice}, Submitted{ID: 1}, Abandoned{Err: changed})
		assert.Equal(t, Failed, a.Status)
		assert.ErrorIs(t, a.Err, changed)

		a = run(Started{ID: 1, Account: alice}, Submitted{ID: 1}, Confirmed{ID: 1}, Abandoned{Err: changed})
		assert.Equal(t, Success, a.Status)

		a = run(Abandoned{Err: changed})
		assert.Equal(t, Idle, a.Status)
	})

	t.Run("late confirmation after abandon is discarded", func(t *testing.T) {
		a := run(
			Started{ID: 1, Account: alice},
			Submitted{ID: 1},
			Abandoned{Err: errors.New("network changed")},
			Confirmed{ID: 1},
			TokenResolved{Minter: alice, TokenID: big.NewInt(9)},
		)
		assert.Equal(t, Failed, a.Status)
		assert.Nil(t, a.MintedTokenID)
	})
}

func TestReduceInvariants(t *testing.T) {
	events := []Event{
		Started{ID: 1, Account: alice},
		TokenResolved{Minter: alice, TokenID: big.NewInt(1)},
		Submitted{ID: 1},
		TokenResolved{Minter: alice, TokenID: big.NewInt(2)},
		TokenResolved{Minter: bob, TokenID: big.NewInt(3)},
		Confirmed{ID: 1},
		Abandoned{Err: errors.New("x")},
		Started{ID: 2, Account: alice},
		Submitted{ID: 2},
		ConfirmFailed{ID: 2, Err: errors.New("y")},
		TokenResolved{Minter: alice, TokenID: big.NewInt(4)},
		Started{ID: 3, Account: alice},
		SubmitFailed{ID: 3, Err: errors.New("z")},
	}

	for r := range events {
		var a Attempt
		for i := 0; i < len(events); i++ {
			a = Reduce(a, events[(r+i)%len(events)])
			if a.MintedTokenID != nil {
				assert.Equal(t, Success, a.Status)
			}
			if a.Err != nil {
				assert.Equal(t, Failed, a.Status)
			}
		}
	}
}

func TestStatus(t *testing.T) {
	assert.True(t, Submitting.InFlight())
	assert.True(t, Mining.InFlight())
	assert.False(t, Idle.InFlight())
	assert.True(t, Success.Terminal())
	assert.True(t, Failed.Terminal())
	assert.Equal(t, "mining", Mining.String())
}
