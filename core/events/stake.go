package events

import (
	"github.com/holiman/uint256"

	"ontlock/core/types"
)

const (
	// TypeStakeLocked is emitted when units are staked and the lock re-armed.
	TypeStakeLocked = "stake.locked"
	// TypeStakeReleased is emitted when units are unstaked after the lock.
	TypeStakeReleased = "stake.released"
)

// StakeLocked captures a successful stake call.
type StakeLocked struct {
	Account      [20]byte
	Units        uint64
	TotalUnits   uint64
	Value        *uint256.Int
	UnlockHeight uint64
}

// EventType satisfies the Event interface.
func (StakeLocked) EventType() string { return TypeStakeLocked }

// Event converts the structured payload into a broadcastable event.
func (e StakeLocked) Event() *types.Event {
	return &types.Event{
		Type: TypeStakeLocked,
		Attributes: map[string]string{
			"account":      formatAccount(e.Account),
			"units":        formatUint(e.Units),
			"totalUnits":   formatUint(e.TotalUnits),
			"value":        formatValue(e.Value),
			"unlockHeight": formatUint(e.UnlockHeight),
		},
	}
}

// StakeReleased captures a successful unstake call. Closed is set when the
// position was removed entirely.
type StakeReleased struct {
	Account        [20]byte
	Units          uint64
	RemainingUnits uint64
	Value          *uint256.Int
	Closed         bool
}

// EventType satisfies the Event interface.
func (StakeReleased) EventType() string { return TypeStakeReleased }

// Event converts the structured payload into a broadcastable event.
func (e StakeReleased) Event() *types.Event {
	attrs := map[string]string{
		"account":        formatAccount(e.Account),
		"units":          formatUint(e.Units),
		"remainingUnits": formatUint(e.RemainingUnits),
		"value":          formatValue(e.Value),
	}
	if e.Closed {
		attrs["closed"] = "true"
	}
	return &types.Event{Type: TypeStakeReleased, Attributes: attrs}
}
