package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeystoreSigner implements Signer using go-ethereum's encrypted keystore
type KeystoreSigner struct {
	// mu protects key from concurrent access. Prevents signing operations from
	// racing with Lock() which zeros the key material.
	mu      sync.RWMutex
	ks      *keystore.KeyStore
	account accounts.Account
	key     *ecdsa.PrivateKey // nil when locked
}

// KeystoreManager manages the keystore directory and accounts
type KeystoreManager struct {
	ks  *keystore.KeyStore
	dir string
}

// NewKeystoreManager creates a keystore manager under dataDir/keystore
// using the standard scrypt parameters.
func NewKeystoreManager(dataDir string) (*KeystoreManager, error) {
	return NewKeystoreManagerWithScrypt(dataDir, keystore.StandardScryptN, keystore.StandardScryptP)
}

// NewKeystoreManagerWithScrypt is NewKeystoreManager with explicit scrypt
// cost parameters.
func NewKeystoreManagerWithScrypt(dataDir string, scryptN, scryptP int) (*KeystoreManager, error) {
	keystoreDir := filepath.Join(dataDir, "keystore")
	if err := os.MkdirAll(keystoreDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keystore directory: %w", err)
	}

	ks := keystore.NewKeyStore(keystoreDir, scryptN, scryptP)

	return &KeystoreManager{
		ks:  ks,
		dir: keystoreDir,
	}, nil
}

// HasKeys reports whether the keystore directory holds at least one key
// file. This is the wallet-present check: it does not decrypt anything.
func HasKeys(dataDir string) bool {
	entries, err := os.ReadDir(filepath.Join(dataDir, "keystore"))
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if !entry.IsDir() && entry.Name()[0] != '.' {
			return true
		}
	}
	return false
}

// Dir returns the keystore directory.
func (km *KeystoreManager) Dir() string {
	return km.dir
}

// CreateAccount creates a new account with the given password
func (km *KeystoreManager) CreateAccount(password string) (accounts.Account, error) {
	return km.ks.NewAccount(password)
}

// ImportKey imports a private key and encrypts it with the password
func (km *KeystoreManager) ImportKey(privateKeyHex string, password string) (accounts.Account, error) {
	// Remove 0x prefix if present
	if len(privateKeyHex) >= 2 && privateKeyHex[:2] == "0x" {
		privateKeyHex = privateKeyHex[2:]
	}

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return accounts.Account{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	return km.ks.ImportECDSA(privateKey, password)
}

// ListAccounts returns all accounts in the keystore
func (km *KeystoreManager) ListAccounts() []accounts.Account {
	return km.ks.Accounts()
}

// Addresses returns the addresses of all keystore accounts.
func (km *KeystoreManager) Addresses() []common.Address {
	accs := km.ks.Accounts()
	out := make([]common.Address, len(accs))
	for i, acc := range accs {
		out[i] = acc.Address
	}
	return out
}

// Unlock decrypts the key for address and returns a signer holding it.
func (km *KeystoreManager) Unlock(address common.Address, password string) (*KeystoreSigner, error) {
	var targetAccount *accounts.Account
	for _, acc := range km.ks.Accounts() {
		if acc.Address == address {
			targetAccount = &acc
			break
		}
	}

	if targetAccount == nil {
		return nil, ErrAccountNotFound
	}

	// Unlock and get the key
	if err := km.ks.Unlock(*targetAccount, password); err != nil {
		return nil, fmt.Errorf("failed to unlock account: %w", err)
	}

	// Export the key to get access to it
	keyJSON, err := km.ks.Export(*targetAccount, password, password)
	if err != nil {
		return nil, fmt.Errorf("failed to export key: %w", err)
	}

	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt key: %w", err)
	}

	return &KeystoreSigner{
		ks:      km.ks,
		account: *targetAccount,
		key:     key.PrivateKey,
	}, nil
}

// Address returns the address of the signer
func (ks *KeystoreSigner) Address() common.Address {
	return ks.account.Address
}

// SignTransaction signs a transaction
func (ks *KeystoreSigner) SignTransaction(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	if ks.key == nil {
		return nil, ErrAccountLocked
	}

	signer := types.LatestSignerForChainID(chainID)
	return types.SignTx(tx, signer, ks.key)
}

// Lock zeros the private key and relocks the keystore entry. Safe to call
// multiple times. After Lock, all signing operations return ErrAccountLocked.
func (ks *KeystoreSigner) Lock() {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.key != nil {
		ks.key.D.SetInt64(0)
		ks.key = nil
		_ = ks.ks.Lock(ks.account.Address)
	}
}
