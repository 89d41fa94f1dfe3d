package hce

import (
	"errors"
	"fmt"

	"github.com/andrei-cloud/go_hce/internal/apdu"
	"github.com/andrei-cloud/go_hce/internal/emv"
	"github.com/andrei-cloud/go_hce/internal/errorcodes"
)

// p2RecordByNumber is the P2 reference control meaning "P1 is a record number".
const p2RecordByNumber = 0x04

// handleReadRecord returns the static record addressed by P1 (record) and
// P2 (SFI in bits 8-4).
func handleReadRecord(e *Engine, st state, cmd apdu.Command) (state, []byte, error) {
	var next recordsReadableState
	switch s := st.(type) {
	case optionsSetState:
		next = s.readRecord()
	case recordsReadableState:
		next = s.readRecord()
	default:
		return nil, nil, fmt.Errorf("read record in phase %s: %w", st.phase(), errorcodes.Sw6985)
	}
	if cmd.P2&0x07 != p2RecordByNumber {
		return nil, nil, fmt.Errorf("p2 %02X: %w", cmd.P2, errorcodes.Sw6A86)
	}

	sfi, record := cmd.P2>>3, cmd.P1
	card := next.card
	data, err := emv.ReadRecord(emv.Profile{
		PAN:            card.PAN,
		Expiry:         card.Expiry,
		CardholderName: card.CardholderName,
		PANSequence:    card.PANSequence,
		ATC:            card.ATC,
	}, sfi, record)
	if errors.Is(err, emv.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("%w: %w", errorcodes.Sw6A83, err)
	}
	if err != nil {
		return nil, nil, err
	}

	return next, data, nil
}
