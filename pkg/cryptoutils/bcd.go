package cryptoutils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// EncodeBCD converts an even-length string of decimal digits into packed BCD bytes.
func EncodeBCD(digits string) ([]byte, error) {
	if len(digits)%2 != 0 {
		return nil, errors.New("must be even number of digits for BCD")
	}

	out := make([]byte, len(digits)/2)
	for i := range out {
		hi := digits[2*i] - '0'
		lo := digits[2*i+1] - '0'
		if hi > 9 || lo > 9 {
			return nil, fmt.Errorf("invalid digit in %q", digits)
		}

		out[i] = hi<<4 | lo
	}

	return out, nil
}

// DecodeBCD unpacks BCD bytes into a digit string. A trailing F filler nibble is dropped.
func DecodeBCD(data []byte) (string, error) {
	var sb strings.Builder
	for i, b := range data {
		for j, nib := range []byte{b >> 4, b & 0x0F} {
			last := i == len(data)-1 && j == 1
			switch {
			case nib <= 9:
				sb.WriteByte('0' + nib)
			case nib == BCD_FILLER_NIBBLE && last:
			default:
				return "", fmt.Errorf("invalid BCD nibble %X at byte %d", nib, i)
			}
		}
	}

	return sb.String(), nil
}

// NumericBCD encodes value as size bytes of left zero-padded BCD (EMV format n).
func NumericBCD(value uint64, size int) ([]byte, error) {
	digits := strconv.FormatUint(value, 10)
	if len(digits) > size*2 {
		return nil, fmt.Errorf("value %d does not fit in %d BCD bytes", value, size)
	}

	return EncodeBCD(strings.Repeat("0", size*2-len(digits)) + digits)
}

// BCDToUint decodes packed BCD into an integer.
func BCDToUint(data []byte) (uint64, error) {
	digits, err := DecodeBCD(data)
	if err != nil {
		return 0, err
	}
	if digits == "" {
		return 0, nil
	}

	return strconv.ParseUint(digits, 10, 64)
}

// PackNibbles packs a string of hex nibble characters (digits, 'D' separators)
// into bytes, right-padding an odd count with F (EMV format cn / track 2).
func PackNibbles(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		s += "F"
	}

	raw, err := Str2Raw(s)
	if err != nil {
		return nil, fmt.Errorf("pack nibbles: %w", err)
	}

	return raw, nil
}
