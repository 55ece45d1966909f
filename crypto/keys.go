package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix defines the human-readable part of an encoded account.
type AddressPrefix string

// AccountPrefix is the bech32 prefix used for vault accounts.
const AccountPrefix AddressPrefix = "olk"

// AddressLength is the fixed width of an account identifier.
const AddressLength = 20

var ErrInvalidAddressLength = errors.New("crypto: address must be 20 bytes")

// Address is a 20-byte account identifier bound to a bech32 prefix.
type Address struct {
	prefix AddressPrefix
	bytes  [AddressLength]byte
}

// NewAddress wraps raw account bytes. Inputs of any other width are rejected.
func NewAddress(prefix AddressPrefix, b []byte) (Address, error) {
	if len(b) != AddressLength {
		return Address{}, fmt.Errorf("%w: got %d", ErrInvalidAddressLength, len(b))
	}
	var out Address
	out.prefix = prefix
	copy(out.bytes[:], b)
	return out, nil
}

// MustNewAddress is NewAddress for callers holding a fixed-size array.
func MustNewAddress(prefix AddressPrefix, b []byte) Address {
	addr, err := NewAddress(prefix, b)
	if err != nil {
		panic(err)
	}
	return addr
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a.bytes[:])
	return out
}

// Array returns the account as a fixed-size array, the form used for keys.
func (a Address) Array() [AddressLength]byte {
	return a.bytes
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	return NewAddress(AddressPrefix(prefix), conv)
}

// ParseAccount accepts either a bech32 account or a 0x-prefixed hex string and
// returns the raw account bytes.
func ParseAccount(value string) ([AddressLength]byte, error) {
	var zero [AddressLength]byte
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return zero, errors.New("crypto: account required")
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		raw, err := hex.DecodeString(trimmed[2:])
		if err != nil {
			return zero, fmt.Errorf("crypto: decode hex account: %w", err)
		}
		addr, err := NewAddress(AccountPrefix, raw)
		if err != nil {
			return zero, err
		}
		return addr.Array(), nil
	}
	addr, err := DecodeAddress(trimmed)
	if err != nil {
		return zero, err
	}
	if addr.Prefix() != AccountPrefix {
		return zero, fmt.Errorf("crypto: unexpected account prefix %q", addr.Prefix())
	}
	return addr.Array(), nil
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(ethcrypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return ethcrypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

// Sign produces a 65-byte recoverable signature over a 32-byte digest.
func (k *PrivateKey) Sign(digest []byte) ([]byte, error) {
	return ethcrypto.Sign(digest, k.PrivateKey)
}

func (k *PublicKey) Address() Address {
	return MustNewAddress(AccountPrefix, ethcrypto.PubkeyToAddress(*k.PublicKey).Bytes())
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := ethcrypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// RecoverAddress returns the account that produced sig over digest.
func RecoverAddress(digest, sig []byte) (Address, error) {
	if len(sig) != 65 {
		return Address{}, fmt.Errorf("crypto: signature must be 65 bytes")
	}
	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return Address{}, fmt.Errorf("crypto: recover signer: %w", err)
	}
	return MustNewAddress(AccountPrefix, ethcrypto.PubkeyToAddress(*pub).Bytes()), nil
}
