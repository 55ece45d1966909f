package events

import (
	"github.com/holiman/uint256"

	"ontlock/core/types"
)

const (
	// TypeAllowancePurchased is emitted when allowance is bought by burning value.
	TypeAllowancePurchased = "allowance.purchased"
)

// AllowancePurchased captures a buy call together with the new global burn
// total.
type AllowancePurchased struct {
	Account     [20]byte
	Units       uint64
	TotalUnits  uint64
	Burned      *uint256.Int
	TotalBurned *uint256.Int
}

func (AllowancePurchased) EventType() string { return TypeAllowancePurchased }

// Event renders the purchase for downstream consumers.
func (e AllowancePurchased) Event() *types.Event {
	return &types.Event{
		Type: TypeAllowancePurchased,
		Attributes: map[string]string{
			"account":     formatAccount(e.Account),
			"units":       formatUint(e.Units),
			"totalUnits":  formatUint(e.TotalUnits),
			"burned":      formatValue(e.Burned),
			"totalBurned": formatValue(e.TotalBurned),
		},
	}
}
