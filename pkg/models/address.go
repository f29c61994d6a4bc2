package models

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// CanonicalAddress lowercases an EVM address into the form used for all
// comparisons and map keys: "0x" + 40 lowercase hex characters.
func CanonicalAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// IsValidAddress reports whether s parses as a 20-byte hex address.
func IsValidAddress(s string) bool {
	return common.IsHexAddress(s)
}

// ChecksumAddress renders an address in EIP-55 mixed-case form for display.
// Internal storage stays lowercase.
func ChecksumAddress(s string) string {
	if !common.IsHexAddress(s) {
		return s
	}
	return common.HexToAddress(s).Hex()
}
