// Package errorcodes defines ISO 7816-4 status words using a structured type.
// StatusWord holds the two trailer bytes and a human-readable description.
package errorcodes

import "fmt"

// Predefined status words returned by the card application.
var (
	Sw9000 = StatusWord{0x90, 0x00, "Normal processing"}
	Sw6700 = StatusWord{0x67, 0x00, "Wrong length"}
	Sw6985 = StatusWord{0x69, 0x85, "Conditions of use not satisfied"}
	Sw6A80 = StatusWord{0x6A, 0x80, "Incorrect parameters in the data field"}
	Sw6A82 = StatusWord{0x6A, 0x82, "File or application not found"}
	Sw6A83 = StatusWord{0x6A, 0x83, "Record not found"}
	Sw6A86 = StatusWord{0x6A, 0x86, "Incorrect parameters P1-P2"}
	Sw6D00 = StatusWord{0x6D, 0x00, "Instruction code not supported or invalid"}
	Sw6E00 = StatusWord{0x6E, 0x00, "Class not supported"}
	Sw6F00 = StatusWord{0x6F, 0x00, "No precise diagnosis"}
)

var known = []StatusWord{Sw9000, Sw6700, Sw6985, Sw6A80, Sw6A82, Sw6A83, Sw6A86, Sw6D00, Sw6E00, Sw6F00}

// StatusWord represents an SW1-SW2 trailer with its description.
type StatusWord struct {
	SW1         byte
	SW2         byte
	Description string
}

// Error implements the Go error interface: "<SW1SW2>: <Description>".
func (s StatusWord) Error() string {
	return fmt.Sprintf("%02X%02X: %s", s.SW1, s.SW2, s.Description)
}

// Bytes returns the two trailer bytes, for appending to response data.
func (s StatusWord) Bytes() []byte {
	return []byte{s.SW1, s.SW2}
}

// Uint16 returns SW1SW2 as a single value (e.g. 0x9000).
func (s StatusWord) Uint16() uint16 {
	return uint16(s.SW1)<<8 | uint16(s.SW2)
}

// IsSuccess reports whether the status word signals normal processing.
func (s StatusWord) IsSuccess() bool {
	return s.SW1 == 0x90 && s.SW2 == 0x00
}

// Lookup returns the predefined status word for sw1/sw2, or a generic one
// carrying the raw bytes when it is not in the table.
func Lookup(sw1, sw2 byte) StatusWord {
	for _, s := range known {
		if s.SW1 == sw1 && s.SW2 == sw2 {
			return s
		}
	}

	return StatusWord{sw1, sw2, "Unknown status"}
}
