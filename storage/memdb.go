package storage

import (
	"errors"
	"sync"

	"github.com/syndtr/goleveldb/leveldb/comparer"
	lvlerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/memdb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// MemDB is an ordered in-memory store used by tests and the "memory" backend.
type MemDB struct {
	mu sync.RWMutex
	db *memdb.DB
}

func NewMemDB() *MemDB {
	return &MemDB{db: memdb.New(comparer.DefaultComparer, 0)}
}

func (m *MemDB) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, lvlerrors.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return copyBytes(value), nil
}

func (m *MemDB) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db.Contains(key), nil
}

func (m *MemDB) Put(key []byte, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Put(key, value)
}

func (m *MemDB) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delete(key)
}

func (m *MemDB) delete(key []byte) error {
	if err := m.db.Delete(key); err != nil && !errors.Is(err, lvlerrors.ErrNotFound) {
		return err
	}
	return nil
}

func (m *MemDB) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	iter := m.db.NewIterator(util.BytesPrefix(prefix))
	defer iter.Release()
	for iter.Next() {
		if err := fn(copyBytes(iter.Key()), copyBytes(iter.Value())); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Write applies the batch while holding the write lock, so readers observe
// either none or all of it.
func (m *MemDB) Write(batch *Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return batch.Replay(m.db.Put, m.delete)
}

// Close satisfies the Database interface; there is nothing to release.
func (m *MemDB) Close() error {
	return nil
}
