// Package cryptogram derives per-card keys and computes application
// cryptograms, transaction certificate hashes and issuer application data.
package cryptogram

import (
	"errors"
	"fmt"
)

// ErrReservedType is returned for GENERATE AC reference control bits 11.
var ErrReservedType = errors.New("reserved cryptogram type")

// Type is the cryptogram requested by the terminal.
type Type int

const (
	AAC Type = iota
	TC
	ARQC
)

// TypeFromP1 decodes bits 7-6 of GENERATE AC P1.
func TypeFromP1(p1 byte) (Type, error) {
	switch p1 >> 6 {
	case 0b00:
		return AAC, nil
	case 0b01:
		return TC, nil
	case 0b10:
		return ARQC, nil
	}

	return 0, fmt.Errorf("%w: p1 %02X", ErrReservedType, p1)
}

// String returns the EMV abbreviation.
func (t Type) String() string {
	switch t {
	case AAC:
		return "AAC"
	case TC:
		return "TC"
	case ARQC:
		return "ARQC"
	}

	return fmt.Sprintf("Type(%d)", int(t))
}

// Marker is the type byte mixed into the cryptogram input and the CID.
func (t Type) Marker() byte {
	switch t {
	case TC:
		return 0x40
	case ARQC:
		return 0x80
	}

	return 0x00
}

// cvr is the first card verification results byte for t.
func (t Type) cvr() byte {
	switch t {
	case TC:
		return 0x40
	case ARQC:
		return 0x03
	}

	return 0x00
}
