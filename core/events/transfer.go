package events

import (
	"github.com/holiman/uint256"

	"ontlock/core/types"
)

const (
	// TypeTransfer is emitted for token balance movements on the local ledger.
	TypeTransfer = "transfer.native"
	// TypeMint is emitted when an operator credits an account.
	TypeMint = "transfer.mint"
)

type Transfer struct {
	From   [20]byte
	To     [20]byte
	Amount *uint256.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	return &types.Event{
		Type: TypeTransfer,
		Attributes: map[string]string{
			"from":   formatAccount(e.From),
			"to":     formatAccount(e.To),
			"amount": formatValue(e.Amount),
		},
	}
}

type Mint struct {
	To      [20]byte
	Amount  *uint256.Int
	Balance *uint256.Int
}

func (Mint) EventType() string { return TypeMint }

func (e Mint) Event() *types.Event {
	return &types.Event{
		Type: TypeMint,
		Attributes: map[string]string{
			"to":      formatAccount(e.To),
			"amount":  formatValue(e.Amount),
			"balance": formatValue(e.Balance),
		},
	}
}
