package session

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrWrongNetwork is returned when the wallet is on a network other than
	// the required one.
	ErrWrongNetwork = errors.New("wallet is on the wrong network")

	// ErrConnectUnavailable is returned by Connect outside the states that
	// allow it.
	ErrConnectUnavailable = errors.New("connect is not available in the current state")

	// ErrNotConnected is returned when an operation needs a connected
	// account.
	ErrNotConnected = errors.New("wallet not connected")

	// ErrSessionReset is returned when the session was reset while a request
	// was outstanding. Its result was discarded.
	ErrSessionReset = errors.New("session was reset")
)

// State is the wallet connection state.
type State int

const (
	Unknown State = iota
	NoWallet
	WalletPresentDisconnected
	WrongNetwork
	Connected
)

func (s State) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case NoWallet:
		return "no_wallet"
	case WalletPresentDisconnected:
		return "disconnected"
	case WrongNetwork:
		return "wrong_network"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// NetworkStatus is the outcome of the most recent network check.
type NetworkStatus int

const (
	NetworkUnknown NetworkStatus = iota
	NetworkOK
	NetworkMismatch
)

func (n NetworkStatus) String() string {
	switch n {
	case NetworkOK:
		return "ok"
	case NetworkMismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

// Session is an immutable snapshot of the wallet session.
type Session struct {
	// ID changes on every reset and tags log lines of one detection epoch.
	ID              string
	Epoch           uint64
	State           State
	Account         *common.Address
	Network         NetworkStatus
	WalletAvailable bool
	ChainID         *big.Int
	Warning         string
}

// CanConnect reports whether Connect is valid in this state.
func (s Session) CanConnect() bool {
	return s.State == WalletPresentDisconnected || s.State == WrongNetwork
}

// Event is a message applied to a Session by Reduce.
type Event interface {
	isEvent()
}

// Reset starts a new epoch from Unknown.
type Reset struct {
	Epoch uint64
	ID    string
}

// WalletDetected reports whether a wallet is present.
type WalletDetected struct {
	Available bool
}

// NetworkChecked reports the wallet's chain id and whether it is the
// required one.
type NetworkChecked struct {
	ChainID *big.Int
	OK      bool
	Warning string
}

// AccountsLoaded reports the wallet's authorized accounts.
type AccountsLoaded struct {
	Accounts []common.Address
}

// CheckFailed reports a failed wallet query during a connectivity check.
type CheckFailed struct {
	Err error
}

// ConnectRejected reports a declined or failed account request.
type ConnectRejected struct {
	Err error
}

func (Reset) isEvent()           {}
func (WalletDetected) isEvent()  {}
func (NetworkChecked) isEvent()  {}
func (AccountsLoaded) isEvent()  {}
func (CheckFailed) isEvent()     {}
func (ConnectRejected) isEvent() {}

// Reduce applies ev to s. It never returns a Connected session unless the
// most recent network check matched.
func Reduce(s Session, ev Event) Session {
	switch e := ev.(type) {
	case Reset:
		return Session{ID: e.ID, Epoch: e.Epoch, State: Unknown}

	case WalletDetected:
		if s.State == NoWallet {
			return s
		}
		if !e.Available {
			return Session{ID: s.ID, Epoch: s.Epoch, State: NoWallet}
		}
		s.WalletAvailable = true
		return s

	case NetworkChecked:
		if !s.WalletAvailable {
			return s
		}
		s.ChainID = e.ChainID
		if !e.OK {
			s.State = WrongNetwork
			s.Network = NetworkMismatch
			s.Account = nil
			s.Warning = e.Warning
			return s
		}
		s.Network = NetworkOK
		s.Warning = ""
		if s.State == WrongNetwork || s.State == Unknown {
			s.State = WalletPresentDisconnected
		}
		return s

	case AccountsLoaded:
		if !s.WalletAvailable || s.Network != NetworkOK {
			return s
		}
		if len(e.Accounts) == 0 {
			s.State = WalletPresentDisconnected
			s.Account = nil
			return s
		}
		account := e.Accounts[0]
		s.State = Connected
		s.Account = &account
		s.Warning = ""
		return s

	case CheckFailed:
		if !s.WalletAvailable {
			return s
		}
		s.State = WalletPresentDisconnected
		s.Network = NetworkUnknown
		s.Account = nil
		if e.Err != nil {
			s.Warning = e.Err.Error()
		}
		return s

	case ConnectRejected:
		if e.Err != nil {
			s.Warning = e.Err.Error()
		}
		return s
	}
	return s
}
