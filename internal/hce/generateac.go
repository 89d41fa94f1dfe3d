package hce

import (
	"errors"
	"fmt"
	"math"

	"github.com/andrei-cloud/go_hce/internal/apdu"
	"github.com/andrei-cloud/go_hce/internal/cryptogram"
	"github.com/andrei-cloud/go_hce/internal/emv"
	"github.com/andrei-cloud/go_hce/internal/errorcodes"
	"github.com/andrei-cloud/go_hce/internal/store"
	"github.com/andrei-cloud/go_hce/pkg/cryptoutils"
	"github.com/rs/zerolog/log"
)

const (
	// cdolDataLength is transaction type(1) + date(3) + unpredictable number(4).
	cdolDataLength = 8
	// cvmBiometric is OR-ed into the CID when cardholder verification is required.
	cvmBiometric = 0x02
)

// handleGenerateAC computes the requested application cryptogram, stores the
// transaction and submits transaction certificates for authorization.
func handleGenerateAC(e *Engine, st state, cmd apdu.Command) (state, []byte, error) {
	rr, ok := st.(recordsReadableState)
	if !ok {
		return nil, nil, fmt.Errorf("generate ac in phase %s: %w", st.phase(), errorcodes.Sw6985)
	}
	if cmd.P2 != 0x00 {
		return nil, nil, fmt.Errorf("p2 %02X: %w", cmd.P2, errorcodes.Sw6A86)
	}
	typ, err := cryptogram.TypeFromP1(cmd.P1)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", errorcodes.Sw6A86, err)
	}
	if len(cmd.Data) < cdolDataLength {
		return nil, nil, fmt.Errorf("cdol data of %d bytes: %w", len(cmd.Data), errorcodes.Sw6700)
	}
	txnType := cmd.Data[0]
	un := append([]byte(nil), cmd.Data[4:8]...)

	card, err := e.cards.GetCard(rr.card.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: %w", errorcodes.Sw6A82, err)
	}
	if err != nil {
		return nil, nil, err
	}

	if e.advanceATC {
		if card.ATC == math.MaxUint16 {
			return nil, nil, fmt.Errorf("card %d atc exhausted: %w", card.ID, errorcodes.Sw6985)
		}
		card.ATC++
		if err := e.cards.SaveCard(&card); err != nil {
			return nil, nil, fmt.Errorf("persist atc: %w", err)
		}
	}

	settings, err := e.settings.Settings()
	if err != nil {
		return nil, nil, err
	}

	txn := cryptogram.Transaction{
		Amount:              rr.terminal.amount,
		CurrencyCode:        rr.terminal.currency,
		CountryCode:         rr.terminal.country,
		UnpredictableNumber: un,
		Timestamp:           rr.startedAt,
	}
	res, err := e.crypto.Generate(&card, txn, card.ATC, typ)
	if err != nil {
		return nil, nil, err
	}
	hash, err := e.crypto.Hash(card, txn)
	if err != nil {
		return nil, nil, err
	}
	iad, err := e.crypto.IssuerApplicationData(typ)
	if err != nil {
		return nil, nil, err
	}

	cid := typ.Marker()
	if settings.BiometricRequired {
		cid |= cvmBiometric
	}

	data, err := emv.GenerateAC(emv.ACResponse{
		TCHash:     hash,
		ATC:        card.ATC,
		CID:        cid,
		Cryptogram: res.Cryptogram,
		IAD:        iad,
	})
	if err != nil {
		return nil, nil, err
	}

	record := store.Transaction{
		CardID:              card.ID,
		Timestamp:           rr.startedAt,
		Amount:              rr.terminal.amount,
		CurrencyCode:        rr.terminal.currency,
		CountryCode:         rr.terminal.country,
		TransactionType:     txnType,
		AID:                 cryptoutils.Raw2Str(rr.aid),
		Network:             rr.network,
		Cryptogram:          cryptoutils.Raw2Str(res.Cryptogram),
		CryptogramType:      typ.String(),
		CryptogramPath:      res.Path,
		UnpredictableNumber: cryptoutils.Raw2Str(res.UnpredictableNumber),
		ATC:                 card.ATC,
		Status:              recordStatus(typ),
	}
	if _, err := e.txns.InsertTransaction(&record); err != nil {
		return nil, nil, fmt.Errorf("persist transaction: %w", err)
	}

	log.Info().
		Str("event", "cryptogram_issued").
		Str("transaction_id", record.ID).
		Str("type", typ.String()).
		Uint16("atc", card.ATC).
		Str("cryptogram_path", res.Path).
		Str("status", record.Status).
		Msg("generate ac completed")

	if typ == cryptogram.TC && e.auth != nil {
		if err := e.auth.Submit(record, settings.ForceApproval); err != nil {
			log.Error().
				Err(err).
				Str("event", "authorization_submit_failed").
				Str("transaction_id", record.ID).
				Msg("transaction left pending")
		}
	}

	return rr.issue(record.ID, typ), data, nil
}

func recordStatus(t cryptogram.Type) string {
	switch t {
	case cryptogram.TC:
		return store.StatusPending
	case cryptogram.ARQC:
		return store.StatusOnlineRequested
	}

	return store.StatusOfflineDeclined
}
