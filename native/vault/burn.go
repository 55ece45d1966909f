package vault

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"ontlock/core/events"
	"ontlock/core/keyspace"
)

// Purchased returns the allowance units bought outright by account.
func (e *Engine) Purchased(account [20]byte) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	return e.accountUint(keyspace.Purchase, account)
}

// Burned returns the global total of value removed from circulation by
// purchases.
func (e *Engine) Burned() (*uint256.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	total := new(uint256.Int)
	if _, err := e.state.KVGet(keyspace.BurnKey(), total); err != nil {
		return nil, err
	}
	return total, nil
}

// Buy spends units*10^8*BuyPrice of account's value for a permanent allowance
// increase. The value is counted as burned; there is no refund path.
func (e *Engine) Buy(ctx context.Context, caller Caller, account [20]byte, units uint64) error {
	const op = "buy"
	if err := e.ready(); err != nil {
		return err
	}
	if units == 0 {
		return fail(op, ClassValidation, ErrInvalidAmount)
	}
	if err := e.authorize(op, caller, account); err != nil {
		return err
	}
	purchaseKey, err := keyspace.AccountKey(keyspace.Purchase, account[:])
	if err != nil {
		return fail(op, ClassValidation, err)
	}
	current, _, err := e.loadUint(purchaseKey)
	if err != nil {
		return fail(op, ClassInternal, err)
	}
	total, ok := checkedAdd(current, units)
	if !ok {
		return fail(op, ClassInvariant, fmt.Errorf("%w: purchase", ErrCounterOverflow))
	}
	burned, err := e.Burned()
	if err != nil {
		return fail(op, ClassInternal, err)
	}
	value := TokenValue(units, e.params.BuyPrice)
	totalBurned, overflow := new(uint256.Int).AddOverflow(burned, value)
	if overflow {
		return fail(op, ClassInvariant, fmt.Errorf("%w: burn total", ErrCounterOverflow))
	}

	if err := e.moveValue(ctx, op, account, e.params.Holding, value); err != nil {
		return err
	}

	if err := e.state.KVPut(purchaseKey, total); err != nil {
		return fail(op, ClassInternal, err)
	}
	if err := e.state.KVPut(keyspace.BurnKey(), totalBurned); err != nil {
		return fail(op, ClassInternal, err)
	}
	e.emit(events.AllowancePurchased{
		Account:     account,
		Units:       units,
		TotalUnits:  total,
		Burned:      value,
		TotalBurned: totalBurned,
	})
	return nil
}
