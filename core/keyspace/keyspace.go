// Package keyspace builds the storage addresses for every record family kept
// in the ledger store.
//
// State layout
//
//	0x01/ (credential entry)  -> [account][website] => rlp(entry)
//	0x02/ (stake)             -> [account] => units
//	0x03/ (unstake height)    -> [account] => height
//	0x04/ (purchase)          -> [account] => units
//	0x05  (burn)              => total burned value
//	0x06/ (stored count)      -> [account] => count
//	0x07/ (auth nonce)        -> [account] => last nonce
//	0x08/ (token balance)     -> [account] => value
//
// Accounts are fixed width, so a namespace byte followed by an account is
// always a prefix owned by exactly one account.
package keyspace

import (
	"errors"
	"fmt"
)

// Namespace identifies a record family by its reserved first key byte.
type Namespace byte

const (
	Credential    Namespace = 0x01
	Stake         Namespace = 0x02
	UnstakeHeight Namespace = 0x03
	Purchase      Namespace = 0x04
	Burn          Namespace = 0x05
	StoredCount   Namespace = 0x06
	AuthNonce     Namespace = 0x07
	Balance       Namespace = 0x08
)

// AccountLength is the width of every account dimension in a key.
const AccountLength = 20

var ErrAccountLength = errors.New("keyspace: account must be 20 bytes")

var namespaceNames = map[Namespace]string{
	Credential:    "credential",
	Stake:         "stake",
	UnstakeHeight: "unstake-height",
	Purchase:      "purchase",
	Burn:          "burn",
	StoredCount:   "stored-count",
	AuthNonce:     "auth-nonce",
	Balance:       "balance",
}

func (n Namespace) String() string {
	if name, ok := namespaceNames[n]; ok {
		return name
	}
	return fmt.Sprintf("namespace(0x%02x)", byte(n))
}

// Namespaces lists every reserved prefix in ascending order.
func Namespaces() []Namespace {
	return []Namespace{Credential, Stake, UnstakeHeight, Purchase, Burn, StoredCount, AuthNonce, Balance}
}

// AccountKey returns ns ‖ account for the per-account record families.
func AccountKey(ns Namespace, account []byte) ([]byte, error) {
	if len(account) != AccountLength {
		return nil, fmt.Errorf("%w: got %d", ErrAccountLength, len(account))
	}
	if ns == Burn {
		return nil, fmt.Errorf("keyspace: %s has no account dimension", ns)
	}
	key := make([]byte, 1+AccountLength)
	key[0] = byte(ns)
	copy(key[1:], account)
	return key, nil
}

// CredentialKey returns 0x01 ‖ account ‖ website.
func CredentialKey(account []byte, website string) ([]byte, error) {
	prefix, err := AccountKey(Credential, account)
	if err != nil {
		return nil, err
	}
	key := make([]byte, len(prefix)+len(website))
	copy(key, prefix)
	copy(key[len(prefix):], website)
	return key, nil
}

// CredentialPrefix returns the prefix shared by all credential entries of an
// account.
func CredentialPrefix(account []byte) ([]byte, error) {
	return AccountKey(Credential, account)
}

// WebsiteFromKey extracts the website component of a credential key.
func WebsiteFromKey(key []byte) (string, error) {
	if len(key) < 1+AccountLength || Namespace(key[0]) != Credential {
		return "", errors.New("keyspace: not a credential key")
	}
	return string(key[1+AccountLength:]), nil
}

// BurnKey returns the key of the global burn counter.
func BurnKey() []byte {
	return []byte{byte(Burn)}
}
