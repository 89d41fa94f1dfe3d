// Package apdu decodes command APDUs and encodes response APDUs (ISO/IEC 7816-4).
//
// Only short length fields are supported: Lc and Le are a single byte each.
// Extended length frames (data over 255 bytes) are rejected as malformed.
package apdu

import (
	"errors"
	"fmt"
)

const (
	headerLength = 4
	maxShortLc   = 255
)

// ErrMalformed is returned when a frame cannot be decoded as a command APDU.
var ErrMalformed = errors.New("malformed apdu")

// Command is a decoded command APDU.
type Command struct {
	CLA  byte
	INS  byte
	P1   byte
	P2   byte
	Data []byte
	// Le is the raw expected-length byte; HasLe tells whether it was present.
	Le    byte
	HasLe bool
}

// ParseCommand decodes a raw frame. The returned command owns a copy of the data field.
//
//	n == 4: header only
//	n == 5: header + Le
//	n >= 6: header + Lc + data [+ Le]
func ParseCommand(raw []byte) (Command, error) {
	n := len(raw)
	if n < headerLength {
		return Command{}, fmt.Errorf("%w: frame of %d bytes is shorter than the header", ErrMalformed, n)
	}

	cmd := Command{CLA: raw[0], INS: raw[1], P1: raw[2], P2: raw[3]}

	switch {
	case n == headerLength:
		return cmd, nil
	case n == headerLength+1:
		cmd.Le = raw[4]
		cmd.HasLe = true

		return cmd, nil
	}

	lc := int(raw[4])
	body := raw[headerLength+1:]
	if lc > len(body) {
		return Command{}, fmt.Errorf("%w: lc %d exceeds remaining %d bytes", ErrMalformed, lc, len(body))
	}

	cmd.Data = append([]byte(nil), body[:lc]...)
	if len(body) == lc+1 {
		cmd.Le = body[lc]
		cmd.HasLe = true
	}

	return cmd, nil
}

// NewCommand builds a command for sending. ne is the expected length (0 for none, 256 max).
func NewCommand(cla, ins, p1, p2 byte, data []byte, ne int) Command {
	cmd := Command{CLA: cla, INS: ins, P1: p1, P2: p2, Data: data}
	if ne > 0 {
		cmd.HasLe = true
		cmd.Le = byte(ne) // 256 encodes as 0x00.
	}

	return cmd
}

// Ne returns the expected response length; a present Le of 0x00 means 256.
func (c Command) Ne() int {
	if !c.HasLe {
		return 0
	}
	if c.Le == 0 {
		return 256
	}

	return int(c.Le)
}

// Header returns CLA INS P1 P2.
func (c Command) Header() [4]byte {
	return [4]byte{c.CLA, c.INS, c.P1, c.P2}
}

// Bytes encodes the command in short form.
func (c Command) Bytes() ([]byte, error) {
	if len(c.Data) > maxShortLc {
		return nil, fmt.Errorf("%w: data length %d needs extended length", ErrMalformed, len(c.Data))
	}

	out := make([]byte, 0, headerLength+2+len(c.Data))
	out = append(out, c.CLA, c.INS, c.P1, c.P2)
	if len(c.Data) > 0 {
		out = append(out, byte(len(c.Data)))
		out = append(out, c.Data...)
	}
	if c.HasLe {
		out = append(out, c.Le)
	}

	return out, nil
}

// String returns a short header description for logs.
func (c Command) String() string {
	return fmt.Sprintf("%02X %02X %02X %02X (lc=%d)", c.CLA, c.INS, c.P1, c.P2, len(c.Data))
}
