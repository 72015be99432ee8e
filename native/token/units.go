package token

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// DefaultDecimals is the precision of both the fee-source token and the LP
// token.
const DefaultDecimals uint8 = 18

// ParseAmount parses a base-unit integer amount. Values must fit in 256 bits.
func ParseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	value, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return value.ToBig(), nil
}

// ParseUnits converts a human readable decimal such as "1.5" into base units
// scaled by decimals.
func ParseUnits(raw string, decimals uint8) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	whole, frac, hasFrac := strings.Cut(trimmed, ".")
	if hasFrac && len(frac) > int(decimals) {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", raw, decimals)
	}
	if whole == "" {
		whole = "0"
	}
	frac += strings.Repeat("0", int(decimals)-len(frac))
	digits := strings.TrimLeft(whole+frac, "0")
	if digits == "" {
		digits = "0"
	}
	return ParseAmount(digits)
}

// FormatUnits renders base units as a decimal string with trailing zeros
// trimmed.
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	sign := ""
	value := new(big.Int).Set(amount)
	if value.Sign() < 0 {
		sign = "-"
		value.Neg(value)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(value, scale, new(big.Int))
	if frac.Sign() == 0 {
		return sign + whole.String()
	}
	fracStr := frac.String()
	fracStr = strings.Repeat("0", int(decimals)-len(fracStr)) + fracStr
	return sign + whole.String() + "." + strings.TrimRight(fracStr, "0")
}
