package vault

import (
	"fmt"

	"ontlock/core/events"
	"ontlock/core/keyspace"
)

func (e *Engine) checkWebsite(op, website string) error {
	if website == "" {
		return fail(op, ClassValidation, ErrWebsiteRequired)
	}
	return e.checkField(op, "website", website)
}

// StoredCount returns the number of live entries recorded for account.
func (e *Engine) StoredCount(account [20]byte) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	return e.accountUint(keyspace.StoredCount, account)
}

// Put writes the entry for (account, website). A new website must fit within
// the account's allowance; overwriting an existing website leaves the stored
// count untouched and is allowed even when the account is over quota.
func (e *Engine) Put(caller Caller, account [20]byte, website, username, password string) error {
	const op = "put"
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.checkWebsite(op, website); err != nil {
		return err
	}
	if err := e.checkField(op, "username", username); err != nil {
		return err
	}
	if err := e.checkField(op, "password", password); err != nil {
		return err
	}
	if err := e.authorize(op, caller, account); err != nil {
		return err
	}

	entryKey, err := keyspace.CredentialKey(account[:], website)
	if err != nil {
		return fail(op, ClassValidation, err)
	}
	countKey, err := keyspace.AccountKey(keyspace.StoredCount, account[:])
	if err != nil {
		return fail(op, ClassValidation, err)
	}
	exists, err := e.state.KVGet(entryKey, nil)
	if err != nil {
		return fail(op, ClassInternal, err)
	}
	stored, _, err := e.loadUint(countKey)
	if err != nil {
		return fail(op, ClassInternal, err)
	}
	allowance, err := e.Allowance(account)
	if err != nil {
		return fail(op, ClassInternal, err)
	}
	next := stored
	if !exists {
		if stored >= allowance {
			return fail(op, ClassInvariant, fmt.Errorf("%w: %d of %d entries used", ErrAllowanceExceeded, stored, allowance))
		}
		next = stored + 1
	}

	if next != stored {
		if err := e.state.KVPut(countKey, next); err != nil {
			return fail(op, ClassInternal, err)
		}
	}
	if err := e.state.KVPut(entryKey, &CredentialEntry{Username: username, Password: password}); err != nil {
		return fail(op, ClassInternal, err)
	}
	e.emit(events.CredentialStored{
		Account:     account,
		Website:     website,
		Overwrite:   exists,
		StoredCount: next,
		Allowance:   allowance,
	})
	return nil
}

// Get returns the serialized entry for (account, website). A missing entry
// yields an empty slice and ok=false. Reads are public.
func (e *Engine) Get(account [20]byte, website string) ([]byte, bool, error) {
	const op = "get"
	if err := e.ready(); err != nil {
		return nil, false, err
	}
	if err := e.checkWebsite(op, website); err != nil {
		return nil, false, err
	}
	key, err := keyspace.CredentialKey(account[:], website)
	if err != nil {
		return nil, false, fail(op, ClassValidation, err)
	}
	data, ok, err := e.state.KVGetRaw(key)
	if err != nil {
		return nil, false, fail(op, ClassInternal, err)
	}
	if !ok {
		return []byte{}, false, nil
	}
	return data, true, nil
}

// Entries lists every live entry of account ordered by website bytes.
func (e *Engine) Entries(account [20]byte) ([]CredentialRecord, error) {
	const op = "getAll"
	if err := e.ready(); err != nil {
		return nil, err
	}
	prefix, err := keyspace.CredentialPrefix(account[:])
	if err != nil {
		return nil, fail(op, ClassValidation, err)
	}
	records := make([]CredentialRecord, 0)
	err = e.state.KVIterate(prefix, func(key, value []byte) error {
		website, err := keyspace.WebsiteFromKey(key)
		if err != nil {
			return err
		}
		entry, err := DecodeEntry(value)
		if err != nil {
			return err
		}
		records = append(records, CredentialRecord{Website: website, Username: entry.Username, Password: entry.Password})
		return nil
	})
	if err != nil {
		return nil, fail(op, ClassInternal, err)
	}
	return records, nil
}

// GetAll returns the serialized mapping of every entry held by account, or an
// empty slice when the account holds none.
func (e *Engine) GetAll(account [20]byte) ([]byte, error) {
	records, err := e.Entries(account)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []byte{}, nil
	}
	encoded, err := EncodeMapping(records)
	if err != nil {
		return nil, fail("getAll", ClassInternal, err)
	}
	return encoded, nil
}

// Delete removes the entry for (account, website). Deleting an absent entry
// succeeds without touching the stored count.
func (e *Engine) Delete(caller Caller, account [20]byte, website string) error {
	const op = "delete"
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.checkWebsite(op, website); err != nil {
		return err
	}
	if err := e.authorize(op, caller, account); err != nil {
		return err
	}
	entryKey, err := keyspace.CredentialKey(account[:], website)
	if err != nil {
		return fail(op, ClassValidation, err)
	}
	exists, err := e.state.KVGet(entryKey, nil)
	if err != nil {
		return fail(op, ClassInternal, err)
	}
	if !exists {
		return nil
	}
	countKey, err := keyspace.AccountKey(keyspace.StoredCount, account[:])
	if err != nil {
		return fail(op, ClassValidation, err)
	}
	stored, _, err := e.loadUint(countKey)
	if err != nil {
		return fail(op, ClassInternal, err)
	}
	if stored == 0 {
		return fail(op, ClassInvariant, fmt.Errorf("%w: live entry %q with zero count", ErrCounterUnderflow, website))
	}
	next := stored - 1
	if next == 0 {
		err = e.state.KVDelete(countKey)
	} else {
		err = e.state.KVPut(countKey, next)
	}
	if err != nil {
		return fail(op, ClassInternal, err)
	}
	if err := e.state.KVDelete(entryKey); err != nil {
		return fail(op, ClassInternal, err)
	}
	e.emit(events.CredentialDeleted{Account: account, Website: website, StoredCount: next})
	return nil
}
