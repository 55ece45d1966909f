package vault

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"ontlock/core/events"
	"ontlock/core/keyspace"
)

// CurrentStake returns the staked unit count of account (zero when absent).
func (e *Engine) CurrentStake(account [20]byte) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	return e.accountUint(keyspace.Stake, account)
}

// TokenStaked returns the base value locked by account's stake.
func (e *Engine) TokenStaked(account [20]byte) (*uint256.Int, error) {
	units, err := e.CurrentStake(account)
	if err != nil {
		return nil, err
	}
	return TokenValue(units, e.params.StakePrice), nil
}

// UnlockHeight returns the height from which account may unstake. ok is false
// when no lock was ever armed or the position was closed.
func (e *Engine) UnlockHeight(account [20]byte) (uint64, bool, error) {
	if err := e.ready(); err != nil {
		return 0, false, err
	}
	key, err := keyspace.AccountKey(keyspace.UnstakeHeight, account[:])
	if err != nil {
		return 0, false, err
	}
	return e.loadUint(key)
}

// Position returns the full stake position of account.
func (e *Engine) Position(account [20]byte) (StakePosition, error) {
	units, err := e.CurrentStake(account)
	if err != nil {
		return StakePosition{}, err
	}
	unlock, _, err := e.UnlockHeight(account)
	if err != nil {
		return StakePosition{}, err
	}
	return StakePosition{Account: account, Amount: units, UnlockHeight: unlock}, nil
}

// Stake locks units*10^8*StakePrice of account's value in the holding account
// and re-arms the lock to currentHeight+StakeDelay, also for existing
// positions.
func (e *Engine) Stake(ctx context.Context, caller Caller, account [20]byte, units uint64) error {
	const op = "stake"
	if err := e.ready(); err != nil {
		return err
	}
	if units == 0 {
		return fail(op, ClassValidation, ErrInvalidAmount)
	}
	if err := e.authorize(op, caller, account); err != nil {
		return err
	}
	stakeKey, err := keyspace.AccountKey(keyspace.Stake, account[:])
	if err != nil {
		return fail(op, ClassValidation, err)
	}
	unlockKey, err := keyspace.AccountKey(keyspace.UnstakeHeight, account[:])
	if err != nil {
		return fail(op, ClassValidation, err)
	}
	current, _, err := e.loadUint(stakeKey)
	if err != nil {
		return fail(op, ClassInternal, err)
	}
	total, ok := checkedAdd(current, units)
	if !ok {
		return fail(op, ClassInvariant, fmt.Errorf("%w: stake", ErrCounterOverflow))
	}
	height, err := e.currentHeight(ctx, op)
	if err != nil {
		return err
	}
	unlock, ok := checkedAdd(height, e.params.StakeDelay)
	if !ok {
		return fail(op, ClassInvariant, fmt.Errorf("%w: unlock height", ErrCounterOverflow))
	}
	value := TokenValue(units, e.params.StakePrice)

	if err := e.moveValue(ctx, op, account, e.params.Holding, value); err != nil {
		return err
	}

	if err := e.state.KVPut(stakeKey, total); err != nil {
		return fail(op, ClassInternal, err)
	}
	if err := e.state.KVPut(unlockKey, unlock); err != nil {
		return fail(op, ClassInternal, err)
	}
	e.emit(events.StakeLocked{
		Account:      account,
		Units:        units,
		TotalUnits:   total,
		Value:        value,
		UnlockHeight: unlock,
	})
	return nil
}

// Unstake releases units back to account once the lock has expired. A
// position reduced to zero is removed; a partial unstake leaves the unlock
// height untouched.
func (e *Engine) Unstake(ctx context.Context, caller Caller, account [20]byte, units uint64) error {
	const op = "unstake"
	if err := e.ready(); err != nil {
		return err
	}
	if units == 0 {
		return fail(op, ClassValidation, ErrInvalidAmount)
	}
	if err := e.authorize(op, caller, account); err != nil {
		return err
	}
	stakeKey, err := keyspace.AccountKey(keyspace.Stake, account[:])
	if err != nil {
		return fail(op, ClassValidation, err)
	}
	unlockKey, err := keyspace.AccountKey(keyspace.UnstakeHeight, account[:])
	if err != nil {
		return fail(op, ClassValidation, err)
	}
	height, err := e.currentHeight(ctx, op)
	if err != nil {
		return err
	}
	unlock, _, err := e.loadUint(unlockKey)
	if err != nil {
		return fail(op, ClassInternal, err)
	}
	if height < unlock {
		return fail(op, ClassInvariant, fmt.Errorf("%w until height %d (current %d)", ErrStakeLocked, unlock, height))
	}
	current, _, err := e.loadUint(stakeKey)
	if err != nil {
		return fail(op, ClassInternal, err)
	}
	if units > current {
		return fail(op, ClassInvariant, fmt.Errorf("%w: requested %d, staked %d", ErrInsufficientStake, units, current))
	}
	remaining := current - units
	value := TokenValue(units, e.params.StakePrice)

	if err := e.moveValue(ctx, op, e.params.Holding, account, value); err != nil {
		return err
	}

	if remaining == 0 {
		if err := e.state.KVDelete(stakeKey); err != nil {
			return fail(op, ClassInternal, err)
		}
		if err := e.state.KVDelete(unlockKey); err != nil {
			return fail(op, ClassInternal, err)
		}
	} else if err := e.state.KVPut(stakeKey, remaining); err != nil {
		return fail(op, ClassInternal, err)
	}
	e.emit(events.StakeReleased{
		Account:        account,
		Units:          units,
		RemainingUnits: remaining,
		Value:          value,
		Closed:         remaining == 0,
	})
	return nil
}
