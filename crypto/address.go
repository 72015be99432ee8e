package crypto

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
)

// Bech32Prefix is the human-readable part used when rendering addresses in
// bech32 form.
const Bech32Prefix = "yzy"

// Address identifies an account or a token. It shares the 20-byte layout of an
// EVM address so LP pair and token identifiers carry over unchanged.
type Address = common.Address

// ZeroAddress is the unset address.
var ZeroAddress Address

// IsZero reports whether addr is the unset address.
func IsZero(addr Address) bool {
	return addr == ZeroAddress
}

// ParseAddress decodes either a 0x-prefixed hex address or a bech32 address with
// the yzy prefix.
func ParseAddress(raw string) (Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ZeroAddress, fmt.Errorf("address must not be empty")
	}
	if common.IsHexAddress(trimmed) {
		return common.HexToAddress(trimmed), nil
	}
	hrp, data, err := bech32.Decode(trimmed)
	if err != nil {
		return ZeroAddress, fmt.Errorf("invalid address %q: %w", trimmed, err)
	}
	if hrp != Bech32Prefix {
		return ZeroAddress, fmt.Errorf("invalid address %q: unsupported prefix %q", trimmed, hrp)
	}
	decoded, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return ZeroAddress, fmt.Errorf("invalid address %q: %w", trimmed, err)
	}
	if len(decoded) != common.AddressLength {
		return ZeroAddress, fmt.Errorf("invalid address %q: length %d", trimmed, len(decoded))
	}
	return common.BytesToAddress(decoded), nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(raw string) Address {
	addr, err := ParseAddress(raw)
	if err != nil {
		panic(err)
	}
	return addr
}

// Bech32 renders addr with the yzy prefix.
func Bech32(addr Address) string {
	conv, err := bech32.ConvertBits(addr.Bytes(), 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(Bech32Prefix, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}
