package nfc

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/ebfe/scard"
)

// escapeCode is the ACR122U escape control code.
const escapeCode = 3500

// ErrNoReader is returned when no matching PC/SC reader is attached.
var ErrNoReader = errors.New("no pc/sc reader found")

// Reader is a PC/SC reader opened in direct mode so it can be used without
// a card in the field.
type Reader struct {
	ctx  *scard.Context
	card *scard.Card
	name string
}

// OpenReader connects to the first reader whose name contains name, or the
// first reader when name is empty.
func OpenReader(name string) (*Reader, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("failed to establish context: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("failed to list readers: %w", err)
	}

	selected, err := pickReader(readers, name)
	if err != nil {
		ctx.Release()
		return nil, err
	}

	card, err := ctx.Connect(selected, scard.ShareDirect, scard.ProtocolUndefined)
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("failed to connect to reader %q: %w", selected, err)
	}

	return &Reader{ctx: ctx, card: card, name: selected}, nil
}

func pickReader(readers []string, name string) (string, error) {
	for _, r := range readers {
		if name == "" || strings.Contains(strings.ToLower(r), strings.ToLower(name)) {
			return r, nil
		}
	}
	if name == "" {
		return "", ErrNoReader
	}

	return "", fmt.Errorf("%q: %w", name, ErrNoReader)
}

// Name returns the PC/SC name of the reader.
func (r *Reader) Name() string {
	return r.name
}

// Exchange sends an escape command and strips the trailing 9000.
func (r *Reader) Exchange(cmd []byte) ([]byte, error) {
	rsp, err := r.card.Control(controlCode(), cmd)
	if err != nil {
		return nil, err
	}

	return trimStatus(rsp)
}

// Close releases the reader resources.
func (r *Reader) Close() error {
	if r.card != nil {
		r.card.Disconnect(scard.LeaveCard)
	}
	if r.ctx != nil {
		return r.ctx.Release()
	}

	return nil
}

func controlCode() uint32 {
	if runtime.GOOS == "windows" {
		return 0x00310000 | escapeCode<<2
	}

	return 0x42000000 + escapeCode
}

func trimStatus(rsp []byte) ([]byte, error) {
	if len(rsp) < 2 {
		return rsp, nil
	}
	sw1, sw2 := rsp[len(rsp)-2], rsp[len(rsp)-1]
	switch {
	case sw1 == 0x90 && sw2 == 0x00:
		return rsp[:len(rsp)-2], nil
	case sw1 == 0x63 && sw2 == 0x00 && len(rsp) == 2:
		return nil, errors.New("reader operation failed: 63 00")
	}

	return rsp, nil
}
