package hce

import (
	"fmt"

	"github.com/andrei-cloud/go_hce/internal/apdu"
	"github.com/andrei-cloud/go_hce/internal/emv"
	"github.com/andrei-cloud/go_hce/internal/errorcodes"
	"github.com/andrei-cloud/go_hce/internal/tlv"
	"github.com/andrei-cloud/go_hce/pkg/cryptoutils"
	"github.com/rs/zerolog/log"
)

// pdolDataLength is TTQ(4) + amount(6) + currency(2) + country(2).
const pdolDataLength = 14

// handleGPO captures the terminal data requested by the PDOL and returns
// the AIP and AFL.
func handleGPO(e *Engine, st state, cmd apdu.Command) (state, []byte, error) {
	sel, ok := st.(selectedState)
	if !ok {
		return nil, nil, fmt.Errorf("gpo in phase %s: %w", st.phase(), errorcodes.Sw6985)
	}
	if cmd.P1 != 0x00 || cmd.P2 != 0x00 {
		return nil, nil, errorcodes.Sw6A86
	}

	terminal, err := parseTerminalData(cmd.Data)
	if err != nil {
		return nil, nil, err
	}

	data, err := emv.ProcessingOptions()
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Str("event", "processing_options").
		Uint64("amount", terminal.amount).
		Str("currency", terminal.currency).
		Str("country", terminal.country).
		Msg("terminal data captured")

	return sel.setOptions(terminal), data, nil
}

// parseTerminalData reads the PDOL fields at their fixed offsets. The
// command template (tag 83) wrapper is optional and only recognised when its
// length byte covers the rest of the data.
func parseTerminalData(data []byte) (terminalData, error) {
	if len(data) >= 2 && data[0] == byte(emv.TagCommandTemplate) && int(data[1]) == len(data)-2 {
		elems, err := tlv.Parse(data)
		if err != nil {
			return terminalData{}, fmt.Errorf("pdol template: %w: %w", errorcodes.Sw6700, err)
		}
		if v, ok := tlv.Find(elems, emv.TagCommandTemplate); ok {
			data = v
		}
	}
	if len(data) < pdolDataLength {
		return terminalData{}, fmt.Errorf("pdol data of %d bytes: %w", len(data), errorcodes.Sw6700)
	}

	amount, err := cryptoutils.BCDToUint(data[4:10])
	if err != nil {
		return terminalData{}, fmt.Errorf("amount: %w: %w", errorcodes.Sw6A80, err)
	}
	currency, err := cryptoutils.DecodeBCD(data[10:12])
	if err != nil {
		return terminalData{}, fmt.Errorf("currency: %w: %w", errorcodes.Sw6A80, err)
	}
	country, err := cryptoutils.DecodeBCD(data[12:14])
	if err != nil {
		return terminalData{}, fmt.Errorf("country: %w: %w", errorcodes.Sw6A80, err)
	}

	return terminalData{
		ttq:      append([]byte(nil), data[:4]...),
		amount:   amount,
		currency: currency,
		country:  country,
	}, nil
}
