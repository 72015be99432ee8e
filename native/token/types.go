package token

import (
	"math/big"

	"yzyvault/crypto"
)

// BasisPoints is the denominator for transfer fees.
const BasisPoints = 10_000

// DefaultTransferFeeBps is the fee the fee-source token launches with (1%).
const DefaultTransferFeeBps uint64 = 100

// Meta is the persisted token configuration.
type Meta struct {
	Address        crypto.Address
	Name           string
	Symbol         string
	Decimals       uint8
	TotalSupply    *big.Int
	TransferFeeBps uint64
	Paused         bool
	Governance     crypto.Address
	// FeeSink receives withheld fees. An unset sink disables the fee.
	FeeSink crypto.Address
	Exempt  []crypto.Address
}

// Clone returns a deep copy of the metadata.
func (m Meta) Clone() Meta {
	clone := m
	clone.TotalSupply = copyBig(m.TotalSupply)
	clone.Exempt = append([]crypto.Address(nil), m.Exempt...)
	return clone
}

// IsExempt reports whether transfers touching holder skip the fee.
func (m Meta) IsExempt(holder crypto.Address) bool {
	if holder == m.FeeSink {
		return true
	}
	for _, exempt := range m.Exempt {
		if exempt == holder {
			return true
		}
	}
	return false
}

// Allocation is a genesis balance.
type Allocation struct {
	Holder crypto.Address
	Amount *big.Int
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
