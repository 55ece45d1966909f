package vault

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

const (
	// TokenFactor converts whole token units into base value (10^8).
	TokenFactor uint64 = 100_000_000

	DefaultBaseAllowance uint64 = 5
	DefaultMultiplier    uint64 = 5
	DefaultStakePrice    uint64 = 50
	DefaultBuyPrice      uint64 = 500
	DefaultStakeDelay    uint64 = 45_000
	DefaultMaxFieldBytes        = 64
)

// Params holds the economic constants of the vault.
type Params struct {
	BaseAllowance uint64
	Multiplier    uint64
	StakePrice    uint64
	BuyPrice      uint64
	// StakeDelay is the number of blocks a stake stays locked.
	StakeDelay uint64
	// MaxFieldBytes bounds website, username and password (inclusive).
	MaxFieldBytes int
	// Holding receives staked and purchased value.
	Holding [20]byte
}

// DefaultHoldingAddress derives the vault's own holding account.
func DefaultHoldingAddress() [20]byte {
	var out [20]byte
	digest := ethcrypto.Keccak256([]byte("ontlock/holding"))
	copy(out[:], digest[12:])
	return out
}

// DefaultParams returns the reference economics: base 5, multiplier 5, stake
// price 50, buy price 500 and a 45000-block lock.
func DefaultParams() Params {
	return Params{
		BaseAllowance: DefaultBaseAllowance,
		Multiplier:    DefaultMultiplier,
		StakePrice:    DefaultStakePrice,
		BuyPrice:      DefaultBuyPrice,
		StakeDelay:    DefaultStakeDelay,
		MaxFieldBytes: DefaultMaxFieldBytes,
		Holding:       DefaultHoldingAddress(),
	}
}

// Validate rejects parameters the engine cannot run with.
func (p Params) Validate() error {
	if p.Multiplier == 0 {
		return errors.New("vault: multiplier must be positive")
	}
	if p.StakePrice == 0 {
		return errors.New("vault: stake price must be positive")
	}
	if p.BuyPrice == 0 {
		return errors.New("vault: buy price must be positive")
	}
	if p.MaxFieldBytes <= 0 {
		return fmt.Errorf("vault: max field bytes must be positive, got %d", p.MaxFieldBytes)
	}
	if p.Holding == ([20]byte{}) {
		return errors.New("vault: holding address required")
	}
	return nil
}

// TokenValue converts a unit count into base value: units * 10^8 * price.
// Both stake and unstake go through this single conversion.
func TokenValue(units, price uint64) *uint256.Int {
	value := new(uint256.Int).SetUint64(units)
	value.Mul(value, uint256.NewInt(TokenFactor))
	value.Mul(value, uint256.NewInt(price))
	return value
}
