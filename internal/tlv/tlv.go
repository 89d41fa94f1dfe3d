// Package tlv builds and parses the BER-TLV subset used on the contactless
// interface: one or two byte tags and single byte lengths (0-255).
package tlv

import (
	"errors"
	"fmt"
)

var (
	// ErrLengthOverflow is returned when a value or constructed body exceeds 255 bytes.
	ErrLengthOverflow = errors.New("tlv length overflow")
	// ErrTruncated is returned when an element runs past the end of the buffer.
	ErrTruncated = errors.New("truncated tlv")
	// ErrNoOpenTag is returned when closing with no constructed tag open.
	ErrNoOpenTag = errors.New("no open constructed tag")
	// ErrUnclosedTag is returned when bytes are requested while a constructed tag is open.
	ErrUnclosedTag = errors.New("unclosed constructed tag")
)

const maxLength = 0xFF

// Tag is a one or two byte tag. Values above 0xFF encode as two bytes.
type Tag uint16

// Bytes returns the wire encoding of the tag.
func (t Tag) Bytes() []byte {
	if t > 0xFF {
		return []byte{byte(t >> 8), byte(t)}
	}

	return []byte{byte(t)}
}

// IsConstructed reports whether the tag's first byte has the constructed bit set.
func (t Tag) IsConstructed() bool {
	first := byte(t)
	if t > 0xFF {
		first = byte(t >> 8)
	}

	return first&0x20 != 0
}

// String returns the tag in upper case hex, e.g. "9F38".
func (t Tag) String() string {
	if t > 0xFF {
		return fmt.Sprintf("%04X", uint16(t))
	}

	return fmt.Sprintf("%02X", uint16(t))
}

// Element is one parsed tag/value pair.
type Element struct {
	Tag   Tag
	Value []byte
}

// IsConstructed reports whether the value holds nested elements.
func (e Element) IsConstructed() bool {
	return e.Tag.IsConstructed()
}

// Children parses the value of a constructed element.
func (e Element) Children() ([]Element, error) {
	return Parse(e.Value)
}

// Find returns the value of the first element with the given tag.
func Find(elems []Element, tag Tag) ([]byte, bool) {
	for _, e := range elems {
		if e.Tag == tag {
			return e.Value, true
		}
	}

	return nil, false
}
