// Package nfc drives a PN532 based contactless reader (ACR122U) in card
// emulation mode and feeds the APDUs it receives to a card.
package nfc

import (
	"errors"
	"fmt"
)

const (
	hostToChip = 0xD4
	chipToHost = 0xD5

	cmdTgInitAsTarget = 0x8C
	cmdTgGetData      = 0x86
	cmdTgSetData      = 0x8E

	// statusReleased is reported once the terminal releases the target.
	statusReleased = 0x29
	statusMask     = 0x3F

	// modePICCOnly restricts activation to passive ISO/IEC 14443-4 PICC.
	modePICCOnly = 0x05
	// selResISODEP advertises ISO-DEP (ISO/IEC 14443-4) support.
	selResISODEP = 0x20
)

var (
	// ErrReleased is returned when the terminal has left the field or
	// released the emulated card.
	ErrReleased = errors.New("target released by initiator")
	// ErrFrame is returned for replies that are not PN532 responses.
	ErrFrame = errors.New("unexpected pn532 frame")
)

// Transport carries one pseudo-APDU to the reader and returns its reply
// with the reader status word removed.
type Transport interface {
	Exchange(cmd []byte) ([]byte, error)
}

// PN532 wraps chip commands in the reader's direct transmit pseudo-APDU.
type PN532 struct {
	t Transport
	// uid is the three byte NFCID1 announced during anti-collision.
	uid [3]byte
}

// NewPN532 returns a PN532 driver on top of t.
func NewPN532(t Transport) *PN532 {
	return &PN532{t: t, uid: [3]byte{0x08, 0x12, 0x34}}
}

// call sends cmd with params and returns the reply payload following the
// response code.
func (p *PN532) call(cmd byte, params []byte) ([]byte, error) {
	frame := make([]byte, 0, 7+len(params))
	frame = append(frame, 0xFF, 0x00, 0x00, 0x00, byte(2+len(params)), hostToChip, cmd)
	frame = append(frame, params...)

	resp, err := p.t.Exchange(frame)
	if err != nil {
		return nil, fmt.Errorf("pn532 %02X: %w", cmd, err)
	}
	if len(resp) < 2 || resp[0] != chipToHost || resp[1] != cmd+1 {
		return nil, fmt.Errorf("pn532 %02X reply % X: %w", cmd, resp, ErrFrame)
	}

	return resp[2:], nil
}

// InitAsTarget waits for a terminal to activate the emulated card and
// returns the first command it sent.
func (p *PN532) InitAsTarget() ([]byte, error) {
	params := make([]byte, 0, 37)
	params = append(params, modePICCOnly)
	// MIFARE params: SENS_RES, NFCID1t, SEL_RES.
	params = append(params, 0x04, 0x00, p.uid[0], p.uid[1], p.uid[2], selResISODEP)
	// FeliCa params are unused in PICC mode.
	params = append(params, make([]byte, 18)...)
	// NFCID3t.
	params = append(params, make([]byte, 10)...)
	// No general bytes, no historical bytes.
	params = append(params, 0x00, 0x00)

	resp, err := p.call(cmdTgInitAsTarget, params)
	if err != nil {
		return nil, err
	}
	if len(resp) < 1 {
		return nil, fmt.Errorf("init as target: %w", ErrFrame)
	}

	return resp[1:], nil
}

// GetData returns the next command APDU from the terminal.
func (p *PN532) GetData() ([]byte, error) {
	resp, err := p.call(cmdTgGetData, nil)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	return resp[1:], nil
}

// SetData sends a response APDU to the terminal.
func (p *PN532) SetData(data []byte) error {
	resp, err := p.call(cmdTgSetData, data)
	if err != nil {
		return err
	}

	return checkStatus(resp)
}

func checkStatus(resp []byte) error {
	if len(resp) < 1 {
		return ErrFrame
	}
	switch st := resp[0] & statusMask; st {
	case 0x00:
		return nil
	case statusReleased:
		return ErrReleased
	default:
		return fmt.Errorf("pn532 status %02X", st)
	}
}
