package hce

import (
	"bytes"
	"fmt"

	"github.com/andrei-cloud/go_hce/internal/apdu"
	"github.com/andrei-cloud/go_hce/internal/emv"
	"github.com/andrei-cloud/go_hce/internal/errorcodes"
	"github.com/andrei-cloud/go_hce/internal/store"
	"github.com/andrei-cloud/go_hce/pkg/cryptoutils"
	"github.com/rs/zerolog/log"
)

// handleSelect selects the payment application or the PPSE directory.
// Any prior session is discarded once the selection succeeds.
func handleSelect(e *Engine, _ state, cmd apdu.Command) (state, []byte, error) {
	if cmd.P1 != 0x04 || cmd.P2 != 0x00 {
		return nil, nil, errorcodes.Sw6A86
	}
	if len(cmd.Data) == 0 {
		return nil, nil, fmt.Errorf("select without df name: %w", errorcodes.Sw6A82)
	}

	card, err := e.activeCard()
	if err != nil {
		return nil, nil, err
	}
	aid, ok := emv.AIDForNetwork(card.Network)
	if !ok {
		return nil, nil, fmt.Errorf("card %d network %s: %w", card.ID, card.Network, errorcodes.Sw6A82)
	}

	if bytes.Equal(cmd.Data, emv.PPSEName) {
		data, err := emv.PPSE(aid, e.label)
		if err != nil {
			return nil, nil, err
		}
		log.Info().
			Str("event", "ppse_selected").
			Str("aid", cryptoutils.Raw2Str(aid)).
			Msg("directory returned")

		return idleState{}, data, nil
	}

	if emv.NetworkForAID(cmd.Data) != card.Network || !bytes.HasPrefix(aid, cmd.Data) {
		return nil, nil, fmt.Errorf("aid %X does not match card %d: %w", cmd.Data, card.ID, errorcodes.Sw6A82)
	}

	data, err := emv.FCI(aid, e.label)
	if err != nil {
		return nil, nil, err
	}

	sess := session{
		card:      card,
		aid:       aid,
		network:   card.Network,
		startedAt: e.clock.Now(),
	}
	log.Info().
		Str("event", "application_selected").
		Str("aid", cryptoutils.Raw2Str(aid)).
		Int64("card_id", card.ID).
		Str("pan", card.MaskedPAN()).
		Msg("new transaction session")

	return selectApplication(sess), data, nil
}

// activeCard returns the card chosen in settings if it can transact.
func (e *Engine) activeCard() (store.Card, error) {
	settings, err := e.settings.Settings()
	if err != nil {
		return store.Card{}, err
	}
	if settings.ActiveCardID == 0 {
		return store.Card{}, fmt.Errorf("no active card: %w", errorcodes.Sw6A82)
	}

	card, err := e.cards.GetCard(settings.ActiveCardID)
	if err != nil {
		return store.Card{}, fmt.Errorf("%w: %w", errorcodes.Sw6A82, err)
	}
	if !card.Enabled {
		return store.Card{}, fmt.Errorf("card %d disabled: %w", card.ID, errorcodes.Sw6A82)
	}
	if emv.Expired(card.Expiry, e.clock.Now()) {
		return store.Card{}, fmt.Errorf("card %d expired: %w", card.ID, errorcodes.Sw6A82)
	}

	return card, nil
}
