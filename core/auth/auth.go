// Package auth decides who controls an account. A request is attributed to
// an account when it carries a secp256k1 signature over the request digest
// that recovers to that account, together with a nonce greater than any the
// account has used before.
package auth

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"ontlock/core/keyspace"
	ontcrypto "ontlock/crypto"
)

// Domain separates ontlock request signatures from other secp256k1 payloads.
const Domain = "ontlock/request/v1"

var (
	ErrSignatureMismatch = errors.New("auth: signature does not match account")
	ErrStaleNonce        = errors.New("auth: nonce must exceed the last used nonce")
	ErrNonceRequired     = errors.New("auth: nonce must be positive")
)

// Caller is the identity an operation runs under.
type Caller interface {
	IsController(account [20]byte) bool
}

// Signer is a caller proven to hold the key of a single account.
type Signer [20]byte

func (s Signer) IsController(account [20]byte) bool { return account == [20]byte(s) }

// Anonymous controls no account. Read-only operations run under it.
type Anonymous struct{}

func (Anonymous) IsController([20]byte) bool { return false }

type request struct {
	Domain  string
	Account []byte
	Method  string
	Args    []string
	Nonce   uint64
}

// Digest returns the keccak256 hash a client signs to authorize method with
// args on behalf of account.
func Digest(account [20]byte, method string, args []string, nonce uint64) []byte {
	if args == nil {
		args = []string{}
	}
	payload, err := rlp.EncodeToBytes(&request{
		Domain:  Domain,
		Account: account[:],
		Method:  method,
		Args:    args,
		Nonce:   nonce,
	})
	if err != nil {
		// Strings, byte slices and integers always encode.
		panic(fmt.Sprintf("auth: encode request: %v", err))
	}
	return crypto.Keccak256(payload)
}

// Sign produces the request signature for key. Used by clients and tests.
func Sign(key *ontcrypto.PrivateKey, method string, args []string, nonce uint64) ([]byte, error) {
	account := key.PubKey().Address().Array()
	return key.Sign(Digest(account, method, args, nonce))
}

// Verify checks that sig over the request digest recovers to account.
func Verify(account [20]byte, method string, args []string, nonce uint64, sig []byte) (Signer, error) {
	if nonce == 0 {
		return Signer{}, ErrNonceRequired
	}
	recovered, err := ontcrypto.RecoverAddress(Digest(account, method, args, nonce), sig)
	if err != nil {
		return Signer{}, fmt.Errorf("auth: %w", err)
	}
	if recovered.Array() != account {
		return Signer{}, ErrSignatureMismatch
	}
	return Signer(account), nil
}

type nonceState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// LastNonce returns the highest nonce account has used, zero when none.
func LastNonce(state nonceState, account [20]byte) (uint64, error) {
	key, err := keyspace.AccountKey(keyspace.AuthNonce, account[:])
	if err != nil {
		return 0, err
	}
	var last uint64
	if _, err := state.KVGet(key, &last); err != nil {
		return 0, fmt.Errorf("auth: load nonce: %w", err)
	}
	return last, nil
}

// ConsumeNonce records nonce as used by account. Nonces must strictly
// increase; gaps are allowed.
func ConsumeNonce(state nonceState, account [20]byte, nonce uint64) error {
	if nonce == 0 {
		return ErrNonceRequired
	}
	last, err := LastNonce(state, account)
	if err != nil {
		return err
	}
	if nonce <= last {
		return fmt.Errorf("%w: got %d, last %d", ErrStaleNonce, nonce, last)
	}
	key, err := keyspace.AccountKey(keyspace.AuthNonce, account[:])
	if err != nil {
		return err
	}
	return state.KVPut(key, nonce)
}
