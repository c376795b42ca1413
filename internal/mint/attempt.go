package mint

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yolodolo42/pokemint/internal/session"
)

var (
	// ErrMintInProgress is returned by Start while an attempt is in flight.
	ErrMintInProgress = errors.New("a mint is already in progress")

	// ErrNotConnected is returned by Start without a connected session.
	ErrNotConnected = session.ErrNotConnected
)

// Status is the lifecycle stage of a mint attempt.
type Status int

const (
	Idle Status = iota
	Submitting
	Mining
	Success
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Mining:
		return "mining"
	case Success:
		return "success"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether s ends an attempt.
func (s Status) Terminal() bool {
	return s == Success || s == Failed
}

// InFlight reports whether an attempt in s blocks a new one.
func (s Status) InFlight() bool {
	return s == Submitting || s == Mining
}

// Attempt is an immutable snapshot of the current mint attempt.
// MintedTokenID is set only in Success and Err only in Failed.
type Attempt struct {
	ID            uint64
	Status        Status
	Account       common.Address
	TxHash        common.Hash
	SubmittedAt   time.Time
	MintedTokenID *big.Int
	Err           error

	// heldTokenID is a token id that arrived while Mining.
	heldTokenID *big.Int
}

// Event is a message applied to an Attempt by Reduce.
type Event interface {
	isEvent()
}

// Started begins attempt ID for Account.
type Started struct {
	ID      uint64
	Account common.Address
}

// Submitted reports that attempt ID's transaction was sent.
type Submitted struct {
	ID     uint64
	TxHash common.Hash
	At     time.Time
}

// SubmitFailed reports that attempt ID could not be sent.
type SubmitFailed struct {
	ID  uint64
	Err error
}

// Confirmed reports that attempt ID's transaction was mined successfully.
type Confirmed struct {
	ID uint64
}

// ConfirmFailed reports a revert or a provider failure while waiting.
type ConfirmFailed struct {
	ID  uint64
	Err error
}

// TokenResolved carries a mint-completion event payload.
type TokenResolved struct {
	Minter  common.Address
	TokenID *big.Int
}

// Abandoned forces the in-flight attempt to Failed.
type Abandoned struct {
	Err error
}

func (Started) isEvent()       {}
func (Submitted) isEvent()     {}
func (SubmitFailed) isEvent()  {}
func (Confirmed) isEvent()     {}
func (ConfirmFailed) isEvent() {}
func (TokenResolved) isEvent() {}
func (Abandoned) isEvent()     {}

// Reduce applies ev to a. Callbacks for an attempt other than the current
// one, or arriving after the attempt moved past the stage they belong to,
// leave a unchanged.
func Reduce(a Attempt, ev Event) Attempt {
	switch e := ev.(type) {
	case Started:
		if a.Status.InFlight() {
			return a
		}
		return Attempt{ID: e.ID, Status: Submitting, Account: e.Account}

	case Submitted:
		if e.ID != a.ID || a.Status != Submitting {
			return a
		}
		a.Status = Mining
		a.TxHash = e.TxHash
		a.SubmittedAt = e.At
		return a

	case SubmitFailed:
		if e.ID != a.ID || a.Status != Submitting {
			return a
		}
		return fail(a, e.Err)

	case Confirmed:
		if e.ID != a.ID || a.Status != Mining {
			return a
		}
		a.Status = Success
		a.MintedTokenID = a.heldTokenID
		a.heldTokenID = nil
		return a

	case ConfirmFailed:
		if e.ID != a.ID || a.Status != Mining {
			return a
		}
		return fail(a, e.Err)

	case TokenResolved:
		if e.TokenID == nil || e.Minter != a.Account {
			return a
		}
		id := new(big.Int).Set(e.TokenID)
		switch a.Status {
		case Mining:
			a.heldTokenID = id
		case Success:
			a.MintedTokenID = id
		}
		return a

	case Abandoned:
		if !a.Status.InFlight() {
			return a
		}
		return fail(a, e.Err)
	}
	return a
}

func fail(a Attempt, err error) Attempt {
	if err == nil {
		err = errors.New("mint failed")
	}
	a.Status = Failed
	a.Err = err
	a.MintedTokenID = nil
	a.heldTokenID = nil
	return a
}
