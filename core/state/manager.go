package state

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"ontlock/storage"
)

type pendingWrite struct {
	value   []byte
	deleted bool
}

// Manager stages RLP-encoded writes over a storage.Database. Reads observe the
// staged writes first. Nothing reaches the database until Commit, which
// applies every staged write in one atomic batch; Discard drops them.
//
// Manager is not safe for concurrent use.
type Manager struct {
	db      storage.Database
	pending map[string]pendingWrite
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, pending: make(map[string]pendingWrite)}
}

func (m *Manager) raw(key []byte) ([]byte, bool, error) {
	if w, ok := m.pending[string(key)]; ok {
		if w.deleted {
			return nil, false, nil
		}
		return w.value, true, nil
	}
	data, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("kv: encode %x: %w", key, err)
	}
	m.pending[string(key)] = pendingWrite{value: encoded}
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, ok, err := m.raw(key)
	if err != nil || !ok {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("kv: decode %x: %w", key, err)
	}
	return true, nil
}

// KVHas reports whether a live value exists under key.
func (m *Manager) KVHas(key []byte) (bool, error) {
	return m.KVGet(key, nil)
}

// KVGetRaw returns the encoded bytes stored under key without decoding them.
func (m *Manager) KVGetRaw(key []byte) ([]byte, bool, error) {
	if len(key) == 0 {
		return nil, false, fmt.Errorf("kv: key must not be empty")
	}
	data, ok, err := m.raw(key)
	if err != nil || !ok {
		return nil, false, err
	}
	return append([]byte(nil), data...), true, nil
}

// KVDelete stages the removal of key. Deleting an absent key is a no-op.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	m.pending[string(key)] = pendingWrite{deleted: true}
	return nil
}

// KVIterate visits every live key under prefix in ascending byte order,
// merging staged writes with the committed database contents. The value
// passed to fn is the raw RLP encoding.
func (m *Manager) KVIterate(prefix []byte, fn func(key, value []byte) error) error {
	merged := make(map[string][]byte)
	err := m.db.Iterate(prefix, func(key, value []byte) error {
		merged[string(key)] = value
		return nil
	})
	if err != nil {
		return err
	}
	for key, w := range m.pending {
		if !bytes.HasPrefix([]byte(key), prefix) {
			continue
		}
		if w.deleted {
			delete(merged, key)
			continue
		}
		merged[key] = w.value
	}
	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := fn([]byte(key), merged[key]); err != nil {
			return err
		}
	}
	return nil
}

// Dirty reports how many keys carry staged writes.
func (m *Manager) Dirty() int {
	return len(m.pending)
}

// Commit writes every staged change in one batch. The staging area is only
// cleared once the database accepted the batch.
func (m *Manager) Commit() error {
	if len(m.pending) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m.pending))
	for key := range m.pending {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	batch := storage.NewBatch()
	for _, key := range keys {
		w := m.pending[key]
		if w.deleted {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), w.value)
	}
	if err := m.db.Write(batch); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.pending = make(map[string]pendingWrite)
	return nil
}

// Discard drops every staged write.
func (m *Manager) Discard() {
	m.pending = make(map[string]pendingWrite)
}
