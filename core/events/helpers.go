package events

import (
	"strconv"

	"github.com/holiman/uint256"

	"ontlock/crypto"
)

func formatValue(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func formatAccount(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.AccountPrefix, addr[:]).String()
}
