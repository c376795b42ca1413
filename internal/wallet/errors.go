package wallet

import "errors"

var (
	// ErrNoWallet is returned when no keystore key is available. Installing
	// (creating or importing) a key requires restarting the session.
	ErrNoWallet = errors.New("no wallet detected")

	// ErrUserRejected is returned when the user declines a wallet prompt.
	ErrUserRejected = errors.New("user rejected the request")

	// ErrNotAuthorized is returned when signing is requested for an account
	// the user has not connected.
	ErrNotAuthorized = errors.New("account not authorized")

	// ErrNotOpen is returned when the provider has no network endpoint.
	ErrNotOpen = errors.New("wallet provider not connected to a network")

	ErrAccountNotFound = errors.New("account not found")
	ErrAccountLocked   = errors.New("account is locked")
	ErrInvalidKey      = errors.New("invalid private key")
)
