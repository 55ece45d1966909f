package vault

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// CredentialEntry is the record stored per (account, website). Entries are kept
// in clear form.
type CredentialEntry struct {
	Username string
	Password string
}

// CredentialRecord is one element of the serialized per-account mapping.
type CredentialRecord struct {
	Website  string
	Username string
	Password string
}

// StakePosition summarises an account's stake.
type StakePosition struct {
	Account      [20]byte
	Amount       uint64
	UnlockHeight uint64
}

// EncodeEntry serializes an entry. The encoding is never empty, so an empty
// byte string is free to mean "not found".
func EncodeEntry(entry CredentialEntry) ([]byte, error) {
	return rlp.EncodeToBytes(&entry)
}

func DecodeEntry(data []byte) (CredentialEntry, error) {
	var entry CredentialEntry
	if len(data) == 0 {
		return entry, ErrEntryNotFound
	}
	if err := rlp.DecodeBytes(data, &entry); err != nil {
		return entry, fmt.Errorf("vault: decode entry: %w", err)
	}
	return entry, nil
}

// EncodeMapping serializes the website -> entry mapping of one account.
func EncodeMapping(records []CredentialRecord) ([]byte, error) {
	if records == nil {
		records = []CredentialRecord{}
	}
	return rlp.EncodeToBytes(records)
}

func DecodeMapping(data []byte) ([]CredentialRecord, error) {
	if len(data) == 0 {
		return []CredentialRecord{}, nil
	}
	var records []CredentialRecord
	if err := rlp.DecodeBytes(data, &records); err != nil {
		return nil, fmt.Errorf("vault: decode mapping: %w", err)
	}
	return records, nil
}
