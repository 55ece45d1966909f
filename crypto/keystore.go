package crypto

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// ScryptCost is the key-derivation work factor of a keystore file.
type ScryptCost struct {
	N int
	P int
}

var (
	// StandardScrypt is the cost used for account keys on disk.
	StandardScrypt = ScryptCost{N: keystore.StandardScryptN, P: keystore.StandardScryptP}
	// LightScrypt is cheap enough for tests and throwaway keys.
	LightScrypt = ScryptCost{N: keystore.LightScryptN, P: keystore.LightScryptP}
)

// SaveToKeystore writes the account key to a v3 keystore file at the standard
// scrypt cost.
func SaveToKeystore(path string, key *PrivateKey, passphrase string) error {
	return SaveToKeystoreWithCost(path, key, passphrase, StandardScrypt)
}

// SaveToKeystoreWithCost encrypts the key with the given scrypt cost and
// replaces path atomically. The parent directory is created 0700 and the
// file is written 0600.
func SaveToKeystoreWithCost(path string, key *PrivateKey, passphrase string, cost ScryptCost) error {
	if key == nil || key.PrivateKey == nil {
		return errors.New("crypto: nil private key")
	}
	if path == "" {
		return errors.New("crypto: empty keystore path")
	}
	if cost.N <= 0 || cost.P <= 0 {
		return fmt.Errorf("crypto: invalid scrypt cost N=%d P=%d", cost.N, cost.P)
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return err
	}
	keyJSON, err := keystore.EncryptKey(&keystore.Key{
		Id:         id,
		Address:    ethcrypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key.PrivateKey,
	}, passphrase, cost.N, cost.P)
	if err != nil {
		return fmt.Errorf("crypto: encrypt key: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".keystore-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(keyJSON); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// LoadFromKeystore decrypts a v3 keystore file using the supplied passphrase.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, errors.New("crypto: empty keystore path")
	}
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decrypted, err := keystore.DecryptKey(keyJSON, passphrase)
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypt keystore: %w", err)
	}
	return &PrivateKey{PrivateKey: decrypted.PrivateKey}, nil
}
