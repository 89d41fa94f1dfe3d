package nfc

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// rats is the ISO/IEC 14443-4 request for answer to select; the chip
// answers it itself.
const rats = 0xE0

// Card answers command APDUs for the emulated card.
type Card interface {
	Process(frame []byte) []byte
	Deactivate()
}

// Observer is told about each exchange; used for logging and display.
type Observer func(command, response []byte)

// Emulator presents a Card to terminals through a PN532.
type Emulator struct {
	chip    *PN532
	card    Card
	observe Observer
	backoff time.Duration
}

// NewEmulator returns an Emulator serving card through chip.
func NewEmulator(chip *PN532, card Card, observe Observer) *Emulator {
	return &Emulator{chip: chip, card: card, observe: observe, backoff: 500 * time.Millisecond}
}

// Run serves taps until ctx is done. Every tap starts from a deactivated card.
func (e *Emulator) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		first, err := e.chip.InitAsTarget()
		if err != nil {
			log.Debug().Err(err).Str("event", "target_init_failed").Msg("waiting for terminal")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.backoff):
			}
			continue
		}

		if len(first) > 0 && first[0] == rats {
			first = nil
		}

		log.Info().Str("event", "field_activated").Msg("terminal activated card")
		err = e.session(ctx, first)
		e.card.Deactivate()
		switch {
		case err == nil, errors.Is(err, ErrReleased):
			log.Info().Str("event", "field_released").Msg("terminal released card")
		default:
			log.Warn().Err(err).Str("event", "session_aborted").Msg("card session aborted")
		}
	}
}

// session answers commands until the terminal releases the card. first is
// the command captured during activation, if any.
func (e *Emulator) session(ctx context.Context, first []byte) error {
	cmd := first
	for ctx.Err() == nil {
		if len(cmd) == 0 {
			var err error
			if cmd, err = e.chip.GetData(); err != nil {
				return err
			}
		}

		resp := e.card.Process(cmd)
		if e.observe != nil {
			e.observe(cmd, resp)
		}
		if err := e.chip.SetData(resp); err != nil {
			return err
		}
		cmd = nil
	}

	return ctx.Err()
}
