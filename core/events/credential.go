package events

import "ontlock/core/types"

const (
	// TypeCredentialStored is emitted when a credential entry is written.
	TypeCredentialStored = "credential.stored"
	// TypeCredentialDeleted is emitted when a live credential entry is removed.
	TypeCredentialDeleted = "credential.deleted"
)

// CredentialStored never carries the username or password.
type CredentialStored struct {
	Account     [20]byte
	Website     string
	Overwrite   bool
	StoredCount uint64
	Allowance   uint64
}

func (CredentialStored) EventType() string { return TypeCredentialStored }

func (e CredentialStored) Event() *types.Event {
	attrs := map[string]string{
		"account":     formatAccount(e.Account),
		"website":     e.Website,
		"storedCount": formatUint(e.StoredCount),
		"allowance":   formatUint(e.Allowance),
	}
	if e.Overwrite {
		attrs["overwrite"] = "true"
	}
	return &types.Event{Type: TypeCredentialStored, Attributes: attrs}
}

type CredentialDeleted struct {
	Account     [20]byte
	Website     string
	StoredCount uint64
}

func (CredentialDeleted) EventType() string { return TypeCredentialDeleted }

func (e CredentialDeleted) Event() *types.Event {
	return &types.Event{
		Type: TypeCredentialDeleted,
		Attributes: map[string]string{
			"account":     formatAccount(e.Account),
			"website":     e.Website,
			"storedCount": formatUint(e.StoredCount),
		},
	}
}
