package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Get when the key has never been written or was
// deleted.
var ErrNotFound = errors.New("storage: key not found")

// Database is the byte-keyed, byte-valued ledger store. Backends are
// interchangeable: in-memory for tests, LevelDB or bbolt on disk.
type Database interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Put(key []byte, value []byte) error
	Delete(key []byte) error
	// Iterate visits every key starting with prefix in ascending byte order.
	// Returning an error from fn stops the walk and is passed back.
	Iterate(prefix []byte, fn func(key, value []byte) error) error
	// Write applies every operation in the batch or none of them.
	Write(batch *Batch) error
	Close() error
}

// Supported backend names for Open.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBolt    = "bbolt"
)

// Open creates the backend named by backend rooted at dataDir.
func Open(backend, dataDir string) (Database, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendMemory:
		return NewMemDB(), nil
	case "", BackendLevelDB:
		if strings.TrimSpace(dataDir) == "" {
			return nil, fmt.Errorf("storage: data dir required for %s", BackendLevelDB)
		}
		return NewLevelDB(filepath.Join(dataDir, "ledger"))
	case BackendBolt:
		if strings.TrimSpace(dataDir) == "" {
			return nil, fmt.Errorf("storage: data dir required for %s", BackendBolt)
		}
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: prepare data dir: %w", err)
		}
		return NewBoltDB(filepath.Join(dataDir, "ledger.db"))
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
