package signing

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// IsValidAddress reports whether addr is a 0x-prefixed 20-byte hex address.
// Mixed-case input must carry a valid EIP-55 checksum; all-lower and
// all-upper hex are accepted as unchecksummed.
func IsValidAddress(addr string) bool {
	if !strings.HasPrefix(addr, "0x") || !common.IsHexAddress(addr) {
		return false
	}
	body := addr[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return common.HexToAddress(addr).Hex() == addr
}

// NormalizeAddress returns the lowercase form used as a storage key.
func NormalizeAddress(addr string) string {
	return strings.ToLower(addr)
}

// SameAddress compares two addresses ignoring hex case.
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}
