package bank

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"ontlock/core/events"
	"ontlock/core/keyspace"
)

var (
	// ErrInsufficientBalance is returned when a debit exceeds the account balance.
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	// ErrInvalidValue is returned for nil or zero transfer values.
	ErrInvalidValue = errors.New("bank: value must be positive")
	// ErrSelfTransfer is returned when source and destination are identical.
	ErrSelfTransfer = errors.New("bank: source and destination must differ")
	// ErrBalanceOverflow is returned when a credit would exceed 256 bits.
	ErrBalanceOverflow = errors.New("bank: balance overflow")

	errNilState = errors.New("bank: state not configured")
)

type ledgerState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Ledger keeps native token balances in the same state the vault writes to, so
// a transfer staged during an operation commits or rolls back with it.
type Ledger struct {
	state   ledgerState
	emitter events.Emitter
}

// NewLedger returns a ledger bound to state.
func NewLedger(state ledgerState) *Ledger {
	return &Ledger{state: state, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event sink. Passing nil resets it to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// Balance returns the balance held by account. Unknown accounts hold zero.
func (l *Ledger) Balance(account [20]byte) (*uint256.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	key, err := keyspace.AccountKey(keyspace.Balance, account[:])
	if err != nil {
		return nil, err
	}
	balance := new(uint256.Int)
	if _, err := l.state.KVGet(key, balance); err != nil {
		return nil, fmt.Errorf("bank: load balance: %w", err)
	}
	return balance, nil
}

func (l *Ledger) setBalance(account [20]byte, value *uint256.Int) error {
	key, err := keyspace.AccountKey(keyspace.Balance, account[:])
	if err != nil {
		return err
	}
	return l.state.KVPut(key, value)
}

// Transfer moves value from one account to another. Both balances are checked
// before either is written.
func (l *Ledger) Transfer(_ context.Context, from, to [20]byte, value *uint256.Int) error {
	if value == nil || value.IsZero() {
		return ErrInvalidValue
	}
	if from == to {
		return ErrSelfTransfer
	}
	fromBalance, err := l.Balance(from)
	if err != nil {
		return err
	}
	if fromBalance.Lt(value) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromBalance.Dec(), value.Dec())
	}
	toBalance, err := l.Balance(to)
	if err != nil {
		return err
	}
	credited, overflow := new(uint256.Int).AddOverflow(toBalance, value)
	if overflow {
		return ErrBalanceOverflow
	}
	debited := new(uint256.Int).Sub(fromBalance, value)
	if err := l.setBalance(from, debited); err != nil {
		return err
	}
	if err := l.setBalance(to, credited); err != nil {
		return err
	}
	l.emitter.Emit(events.Transfer{From: from, To: to, Amount: new(uint256.Int).Set(value)})
	return nil
}

// Mint credits account with freshly issued value and returns the new balance.
func (l *Ledger) Mint(to [20]byte, value *uint256.Int) (*uint256.Int, error) {
	if value == nil || value.IsZero() {
		return nil, ErrInvalidValue
	}
	balance, err := l.Balance(to)
	if err != nil {
		return nil, err
	}
	updated, overflow := new(uint256.Int).AddOverflow(balance, value)
	if overflow {
		return nil, ErrBalanceOverflow
	}
	if err := l.setBalance(to, updated); err != nil {
		return nil, err
	}
	l.emitter.Emit(events.Mint{To: to, Amount: new(uint256.Int).Set(value), Balance: new(uint256.Int).Set(updated)})
	return updated, nil
}
