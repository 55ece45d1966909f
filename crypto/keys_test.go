package crypto

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func TestAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.PubKey().Address()
	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Array() != addr.Array() {
		t.Fatalf("address mismatch after decode")
	}
	if decoded.Prefix() != AccountPrefix {
		t.Fatalf("unexpected prefix %q", decoded.Prefix())
	}
}

func TestParseAccountAcceptsHexAndBech32(t *testing.T) {
	raw := bytes.Repeat([]byte{0xab}, AddressLength)
	fromHex, err := ParseAccount("0x" + hex.EncodeToString(raw))
	if err != nil {
		t.Fatalf("parse hex: %v", err)
	}
	fromBech, err := ParseAccount(MustNewAddress(AccountPrefix, raw).String())
	if err != nil {
		t.Fatalf("parse bech32: %v", err)
	}
	if fromHex != fromBech {
		t.Fatalf("expected identical accounts")
	}
}

func TestParseAccountRejectsWrongLength(t *testing.T) {
	if _, err := ParseAccount("0x" + hex.EncodeToString(make([]byte, 19))); err == nil {
		t.Fatalf("expected length error")
	}
	if _, err := ParseAccount(""); err == nil {
		t.Fatalf("expected error for empty account")
	}
}

func TestRecoverAddress(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	digest := ethcrypto.Keccak256([]byte("payload"))
	sig, err := key.Sign(digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	recovered, err := RecoverAddress(digest, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered.Array() != key.PubKey().Address().Array() {
		t.Fatalf("recovered signer mismatch")
	}
	if _, err := RecoverAddress(digest, sig[:64]); err == nil {
		t.Fatalf("expected short signature to fail")
	}
}

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "keys", "account.keystore")
	if err := SaveToKeystoreWithCost(path, key, "secret", LightScrypt); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("unexpected keystore mode %v", info.Mode().Perm())
	}
	loaded, err := LoadFromKeystore(path, "secret")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(loaded.Bytes(), key.Bytes()) {
		t.Fatalf("loaded key differs")
	}
	if _, err := LoadFromKeystore(path, "wrong"); err == nil {
		t.Fatalf("expected wrong passphrase to fail")
	}
	if err := SaveToKeystoreWithCost(path, key, "secret", ScryptCost{}); err == nil {
		t.Fatalf("expected zero scrypt cost to be rejected")
	}
}

func TestKeystoreRecordsScryptCost(t *testing.T) {
	if StandardScrypt.N != keystore.StandardScryptN || StandardScrypt.P != keystore.StandardScryptP {
		t.Fatalf("standard cost drifted from go-ethereum: %+v", StandardScrypt)
	}
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "account.keystore")
	if err := SaveToKeystoreWithCost(path, key, "secret", LightScrypt); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var file struct {
		Crypto struct {
			KDF       string                 `json:"kdf"`
			KDFParams map[string]interface{} `json:"kdfparams"`
		} `json:"crypto"`
	}
	if err := json.Unmarshal(raw, &file); err != nil {
		t.Fatalf("decode keystore json: %v", err)
	}
	if file.Crypto.KDF != "scrypt" {
		t.Fatalf("unexpected kdf %q", file.Crypto.KDF)
	}
	if n, _ := file.Crypto.KDFParams["n"].(float64); int(n) != LightScrypt.N {
		t.Fatalf("expected n=%d, got %v", LightScrypt.N, file.Crypto.KDFParams["n"])
	}
}
