package storage

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open leveldb: %w", err)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := l.db.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

func (l *LevelDB) Has(key []byte) (bool, error) {
	return l.db.Has(key, nil)
}

func (l *LevelDB) Put(key []byte, value []byte) error {
	return l.db.Put(key, value, nil)
}

func (l *LevelDB) Delete(key []byte) error {
	return l.db.Delete(key, nil)
}

func (l *LevelDB) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	iter := l.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		if err := fn(copyBytes(iter.Key()), copyBytes(iter.Value())); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Write commits the batch through a single LevelDB write batch.
func (l *LevelDB) Write(batch *Batch) error {
	lb := new(leveldb.Batch)
	_ = batch.Replay(func(key, value []byte) error {
		lb.Put(key, value)
		return nil
	}, func(key []byte) error {
		lb.Delete(key)
		return nil
	})
	if lb.Len() == 0 {
		return nil
	}
	return l.db.Write(lb, nil)
}

// Close closes the database connection.
func (l *LevelDB) Close() error {
	return l.db.Close()
}
