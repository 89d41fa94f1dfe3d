package tlv

import "fmt"

// Builder writes nested TLV structures into a flat buffer.
//
// Constructed tags are written with a one byte length placeholder that is
// backpatched on close. Length overflow is sticky: once it happens every
// further call is a no-op and Bytes returns the error.
type Builder struct {
	buf  []byte
	open []int // placeholder offsets, innermost last
	err  error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// OpenConstructed writes tag and a length placeholder.
func (b *Builder) OpenConstructed(tag Tag) {
	if b.err != nil {
		return
	}

	b.buf = append(b.buf, tag.Bytes()...)
	b.open = append(b.open, len(b.buf))
	b.buf = append(b.buf, 0x00)
}

// AppendPrimitive writes tag, length and value.
func (b *Builder) AppendPrimitive(tag Tag, value []byte) {
	if b.err != nil {
		return
	}
	if len(value) > maxLength {
		b.err = fmt.Errorf("%w: tag %s value is %d bytes", ErrLengthOverflow, tag, len(value))

		return
	}

	b.buf = append(b.buf, tag.Bytes()...)
	b.buf = append(b.buf, byte(len(value)))
	b.buf = append(b.buf, value...)
}

// AppendTagLength writes a data object list entry: tag and length, no value.
func (b *Builder) AppendTagLength(tag Tag, length int) {
	if b.err != nil {
		return
	}
	if length < 0 || length > maxLength {
		b.err = fmt.Errorf("%w: tag %s length %d", ErrLengthOverflow, tag, length)

		return
	}

	b.buf = append(b.buf, tag.Bytes()...)
	b.buf = append(b.buf, byte(length))
}

// CloseConstructed backpatches the innermost open tag with the number of
// bytes written after its placeholder.
//
// Closing with nothing open returns ErrNoOpenTag and leaves the buffer
// untouched; the builder stays usable.
func (b *Builder) CloseConstructed() error {
	if b.err != nil {
		return b.err
	}
	if len(b.open) == 0 {
		return ErrNoOpenTag
	}

	pos := b.open[len(b.open)-1]
	b.open = b.open[:len(b.open)-1]

	n := len(b.buf) - pos - 1
	if n > maxLength {
		b.err = fmt.Errorf("%w: constructed body is %d bytes", ErrLengthOverflow, n)

		return b.err
	}
	b.buf[pos] = byte(n)

	return nil
}

// Constructed opens tag, runs fn to write the children and closes it.
func (b *Builder) Constructed(tag Tag, fn func(b *Builder)) {
	b.OpenConstructed(tag)
	fn(b)
	if err := b.CloseConstructed(); err != nil && b.err == nil {
		b.err = err
	}
}

// Err returns the sticky error, if any.
func (b *Builder) Err() error {
	return b.err
}

// Bytes returns a copy of the encoded buffer.
func (b *Builder) Bytes() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.open) > 0 {
		return nil, fmt.Errorf("%w: %d still open", ErrUnclosedTag, len(b.open))
	}

	return append([]byte(nil), b.buf...), nil
}
