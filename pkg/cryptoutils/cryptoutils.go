// Package cryptoutils provides utility functions for binary and cryptographic operations.
package cryptoutils

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	ISO9797_METHOD2_PADDING_BYTE = 0x80
	BCD_FILLER_NIBBLE            = 0x0F
	KEY_LENGTH_AES128            = 16
	PAN_MIN_LENGTH               = 13
	PAN_MAX_LENGTH               = 19
)

// Raw2Str converts raw binary data to an uppercase hex string.
func Raw2Str(raw []byte) string {
	return strings.ToUpper(hex.EncodeToString(raw))
}

// Str2Raw decodes a hex string into raw binary. Spaces and dashes are ignored
// so that values copied from traces ("00 A4 04 00") decode as-is.
func Str2Raw(s string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", "-", "", "\n", "", "\t", "").Replace(s)
	if len(clean)%2 != 0 {
		return nil, fmt.Errorf("hex string has odd length %d", len(clean))
	}

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex string: %w", err)
	}

	return raw, nil
}

// IsDigits reports whether s is non-empty and made only of ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return true
}
