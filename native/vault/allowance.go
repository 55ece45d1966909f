package vault

import (
	"math"

	"github.com/holiman/uint256"

	"ontlock/core/keyspace"
)

// ComputeAllowance returns base + multiplier*stake + multiplier*purchase,
// saturating at MaxUint64.
func ComputeAllowance(p Params, stakeUnits, purchaseUnits uint64) uint64 {
	total := new(uint256.Int).SetUint64(stakeUnits)
	total.Add(total, uint256.NewInt(purchaseUnits))
	total.Mul(total, uint256.NewInt(p.Multiplier))
	total.Add(total, uint256.NewInt(p.BaseAllowance))
	if !total.IsUint64() {
		return math.MaxUint64
	}
	return total.Uint64()
}

// Allowance recomputes the capacity of account from its current stake and
// purchase records. The result is never cached.
func (e *Engine) Allowance(account [20]byte) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	staked, err := e.accountUint(keyspace.Stake, account)
	if err != nil {
		return 0, err
	}
	purchased, err := e.accountUint(keyspace.Purchase, account)
	if err != nil {
		return 0, err
	}
	return ComputeAllowance(e.params, staked, purchased), nil
}
