package tlv

import "fmt"

// Parse reads a flat TLV stream into an ordered list of elements.
// Constructed values are not descended into; call Children for that.
func Parse(data []byte) ([]Element, error) {
	var out []Element

	for i := 0; i < len(data); {
		tag, n, err := readTag(data[i:])
		if err != nil {
			return nil, fmt.Errorf("element at offset %d: %w", i, err)
		}
		i += n

		if i >= len(data) {
			return nil, fmt.Errorf("%w: tag %s at offset %d has no length", ErrTruncated, tag, i-n)
		}
		length := int(data[i])
		i++

		if length > len(data)-i {
			return nil, fmt.Errorf(
				"%w: tag %s declares %d bytes, %d remain",
				ErrTruncated, tag, length, len(data)-i,
			)
		}

		out = append(out, Element{Tag: tag, Value: append([]byte(nil), data[i:i+length]...)})
		i += length
	}

	return out, nil
}

// DOLEntry is one tag/length pair of a data object list (PDOL, CDOL).
type DOLEntry struct {
	Tag    Tag
	Length int
}

// ParseDOL reads a data object list: tags followed by lengths, no values.
func ParseDOL(data []byte) ([]DOLEntry, error) {
	var out []DOLEntry

	for i := 0; i < len(data); {
		tag, n, err := readTag(data[i:])
		if err != nil {
			return nil, err
		}
		i += n

		if i >= len(data) {
			return nil, fmt.Errorf("%w: dol tag %s has no length", ErrTruncated, tag)
		}
		out = append(out, DOLEntry{Tag: tag, Length: int(data[i])})
		i++
	}

	return out, nil
}

// readTag returns the tag at the head of data and its encoded size.
func readTag(data []byte) (Tag, int, error) {
	if len(data) == 0 {
		return 0, 0, ErrTruncated
	}
	if data[0]&0x1F != 0x1F {
		return Tag(data[0]), 1, nil
	}
	if len(data) < 2 {
		return 0, 0, fmt.Errorf("%w: two byte tag %02X cut short", ErrTruncated, data[0])
	}

	return Tag(uint16(data[0])<<8 | uint16(data[1])), 2, nil
}
