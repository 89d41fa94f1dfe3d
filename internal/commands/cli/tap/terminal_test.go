package tap

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/andrei-cloud/go_hce/internal/clock"
	"github.com/andrei-cloud/go_hce/internal/cryptogram"
	"github.com/andrei-cloud/go_hce/internal/errorcodes"
	"github.com/andrei-cloud/go_hce/internal/hce"
	"github.com/andrei-cloud/go_hce/internal/store"
	"github.com/andrei-cloud/go_hce/pkg/cryptoutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCard(t *testing.T, active bool) (*hce.Engine, *store.Store) {
	t.Helper()

	s := store.NewMemory()
	card := store.Card{
		PAN:            "4111111111111111",
		Expiry:         "12/29",
		CVV:            "123",
		CardholderName: "John Smith",
		Enabled:        true,
	}
	require.NoError(t, s.SaveCard(&card))
	if active {
		require.NoError(t, s.SaveSettings(store.Settings{ActiveCardID: card.ID}))
	}

	return hce.New(s, s, s, hce.WithClock(clock.Fixed(time.Unix(1700000000, 0)))), s
}

func direct(e *hce.Engine) Transceiver {
	return func(frame []byte) ([]byte, error) {
		return e.Process(frame), nil
	}
}

func purchase(typ cryptogram.Type) Request {
	return Request{
		Amount:              10000,
		CurrencyCode:        "0840",
		CountryCode:         "0840",
		Type:                typ,
		Date:                time.Date(2023, time.October, 15, 0, 0, 0, 0, time.UTC),
		UnpredictableNumber: []byte{0xDE, 0xAD, 0xBE, 0xEF},
	}
}

func TestRunPurchase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typ        cryptogram.Type
		cryptogram string
		cid        byte
		status     string
	}{
		{cryptogram.TC, "BDFEC58113531587", 0x40, store.StatusPending},
		{cryptogram.ARQC, "F8269E89F776E5A6", 0x80, store.StatusOnlineRequested},
		{cryptogram.AAC, "1388ECA388808BAA", 0x00, store.StatusOfflineDeclined},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.typ.String(), func(t *testing.T) {
			t.Parallel()

			card, s := newCard(t, true)
			out, err := Run(direct(card), purchase(tt.typ))
			require.NoError(t, err)

			assert.Equal(t, "A0000000031010", cryptoutils.Raw2Str(out.AID))
			assert.Equal(t, tt.cryptogram, cryptoutils.Raw2Str(out.Cryptogram))
			assert.Equal(t, tt.cid, out.CID)
			assert.Equal(t, uint16(1), out.ATC)

			names := make([]string, 0, len(out.Exchanges))
			for _, ex := range out.Exchanges {
				names = append(names, ex.Name)
				assert.True(t, ex.Status.IsSuccess(), ex.Name)
			}
			assert.Equal(t, []string{
				"SELECT PPSE",
				"SELECT",
				"GET PROCESSING OPTIONS",
				"READ RECORD SFI 1 REC 1",
				"READ RECORD SFI 2 REC 1",
				"READ RECORD SFI 2 REC 2",
				"GENERATE AC",
			}, names)
			assert.Equal(t, "80A8000010830E360000000000000100000840084000",
				cryptoutils.Raw2Str(out.Exchanges[2].Command))

			txns, err := s.ListTransactions(0)
			require.NoError(t, err)
			require.Len(t, txns, 1)
			assert.Equal(t, tt.status, txns[0].Status)
		})
	}
}

func TestRunExplicitAID(t *testing.T) {
	t.Parallel()

	card, _ := newCard(t, true)
	req := purchase(cryptogram.TC)
	req.AID = []byte{0xA0, 0x00, 0x00, 0x00, 0x03}

	out, err := Run(direct(card), req)
	require.NoError(t, err)
	assert.Equal(t, "SELECT", out.Exchanges[0].Name)
	assert.Len(t, out.Exchanges, 6)
}

func TestRunStopsOnStatus(t *testing.T) {
	t.Parallel()

	card, _ := newCard(t, false)
	out, err := Run(direct(card), purchase(cryptogram.TC))

	assert.ErrorIs(t, err, errorcodes.Sw6A82)
	require.Len(t, out.Exchanges, 1)
	assert.Equal(t, "6A82", cryptoutils.Raw2Str(out.Exchanges[0].Response))
}

func TestRunTransportError(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	_, err := Run(func([]byte) ([]byte, error) { return nil, boom }, purchase(cryptogram.TC))
	assert.ErrorIs(t, err, boom)
}

func TestRunRejectsBadCodes(t *testing.T) {
	t.Parallel()

	card, _ := newCard(t, true)
	req := purchase(cryptogram.TC)
	req.CurrencyCode = "840"

	_, err := Run(direct(card), req)
	assert.ErrorContains(t, err, "currency code")
}

func TestPrint(t *testing.T) {
	t.Parallel()

	card, _ := newCard(t, true)
	out, err := Run(direct(card), purchase(cryptogram.TC))
	require.NoError(t, err)

	var buf bytes.Buffer
	Print(&buf, out)

	text := buf.String()
	assert.Contains(t, text, "SELECT PPSE")
	assert.Contains(t, text, ">> 00A404000E325041592E5359532E444446303100")
	assert.Contains(t, text, "9F26")
	assert.Contains(t, text, "Cryptogram BDFEC58113531587 CID 40 ATC 1")
}

func TestResponsesWithLongFormLengths(t *testing.T) {
	t.Parallel()

	ac, err := cryptoutils.Str2Raw("7781379F2701809F360200079F26081122334455667788" +
		"9F10200000000000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)

	term := &terminal{}
	require.NoError(t, term.readCryptogram(ac))
	assert.Equal(t, "1122334455667788", cryptoutils.Raw2Str(term.out.Cryptogram))
	assert.Equal(t, byte(0x80), term.out.CID)
	assert.Equal(t, uint16(7), term.out.ATC)

	gpo, err := cryptoutils.Str2Raw("77810A82020000940408010100")
	require.NoError(t, err)
	afl, err := applicationFileLocator(gpo)
	require.NoError(t, err)
	assert.Equal(t, "08010100", cryptoutils.Raw2Str(afl))

	ppse, err := cryptoutils.Str2Raw("6F81178409325041592E5359532EA50ABF0C0761054F03A00001")
	require.NoError(t, err)
	aid, err := firstAID(ppse)
	require.NoError(t, err)
	assert.Equal(t, "A00001", cryptoutils.Raw2Str(aid))
}
