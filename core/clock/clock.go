// Package clock provides ledger height sources. The stake lock compares
// against these heights, so every source is monotonic: a reading never goes
// below one already returned.
package clock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Source reports the current ledger height.
type Source interface {
	CurrentHeight(ctx context.Context) (uint64, error)
}

// Local derives heights from wall-clock time: one block per interval since
// genesis.
type Local struct {
	genesis  time.Time
	interval time.Duration
	nowFn    func() time.Time

	mu   sync.Mutex
	last uint64
}

// NewLocal returns a wall-clock height source.
func NewLocal(genesis time.Time, interval time.Duration) (*Local, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("clock: block interval must be positive")
	}
	return &Local{genesis: genesis, interval: interval, nowFn: time.Now}, nil
}

// SetNowFunc overrides the time source. Intended for tests.
func (l *Local) SetNowFunc(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now == nil {
		now = time.Now
	}
	l.nowFn = now
}

func (l *Local) CurrentHeight(context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	elapsed := l.nowFn().Sub(l.genesis)
	var height uint64
	if elapsed > 0 {
		height = uint64(elapsed / l.interval)
	}
	if height < l.last {
		height = l.last
	}
	l.last = height
	return height, nil
}

// BlockNumberReader is the subset of the Ethereum RPC used for heights.
type BlockNumberReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// DialEthereum connects to an Ethereum JSON-RPC endpoint.
func DialEthereum(endpoint string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("clock: ethereum endpoint required")
	}
	return ethclient.Dial(trimmed)
}

// Ethereum follows the block number of an external Ethereum node.
type Ethereum struct {
	client BlockNumberReader

	mu   sync.Mutex
	last uint64
}

// NewEthereum wraps client as a height source.
func NewEthereum(client BlockNumberReader) *Ethereum {
	return &Ethereum{client: client}
}

func (e *Ethereum) CurrentHeight(ctx context.Context) (uint64, error) {
	if e == nil || e.client == nil {
		return 0, errors.New("clock: ethereum client not configured")
	}
	height, err := e.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("clock: block number: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	// Load-balanced endpoints can briefly report an older head.
	if height < e.last {
		height = e.last
	}
	e.last = height
	return height, nil
}

// Manual is a height source advanced explicitly by its owner.
type Manual struct {
	mu     sync.Mutex
	height uint64
}

// NewManual returns a manual source starting at height.
func NewManual(height uint64) *Manual { return &Manual{height: height} }

func (m *Manual) CurrentHeight(context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.height, nil
}

// Advance moves the height forward by n blocks.
func (m *Manual) Advance(n uint64) {
	m.mu.Lock()
	m.height += n
	m.mu.Unlock()
}

// Set moves the height to h. Lower values are ignored.
func (m *Manual) Set(h uint64) {
	m.mu.Lock()
	if h > m.height {
		m.height = h
	}
	m.mu.Unlock()
}
