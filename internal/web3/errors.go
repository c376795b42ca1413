package web3

import (
	"errors"
	"fmt"

	"github.com/yolodolo42/pokemint/internal/wallet"
)

var (
	// ErrProvider marks a transport or RPC failure. Retrying the whole
	// operation is safe.
	ErrProvider = errors.New("provider error")

	// ErrTransactionReverted is returned when a mined transaction has a
	// failed status.
	ErrTransactionReverted = errors.New("transaction reverted")

	// ErrNoSigner is returned for mutating calls without an attached account.
	ErrNoSigner = errors.New("no signer attached")

	// ErrNetworkChanged is the failure reported for a mint abandoned because
	// the wallet switched networks.
	ErrNetworkChanged = errors.New("network changed")

	ErrNoWallet     = wallet.ErrNoWallet
	ErrUserRejected = wallet.ErrUserRejected
)

// providerErr wraps err as an ErrProvider unless it already carries a more
// specific meaning.
func providerErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUserRejected) || errors.Is(err, ErrProvider) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrProvider, op, err)
}
