package events

import (
	"math/big"
	"strconv"

	"yzyvault/crypto"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }

func formatAddress(addr crypto.Address) string {
	if crypto.IsZero(addr) {
		return ""
	}
	return addr.Hex()
}
