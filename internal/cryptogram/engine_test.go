package cryptogram

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/andrei-cloud/go_hce/internal/store"
	"github.com/andrei-cloud/go_hce/pkg/cryptoutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "4098188F490A783E07A1EA83BF20501D"

var testNow = time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) (*store.Store, store.Card) {
	t.Helper()

	s := store.NewMemory(store.WithClock(func() time.Time { return testNow }))
	card := store.Card{PAN: "4111111111111111", Expiry: "12/29", CVV: "123", Enabled: true}
	require.NoError(t, s.SaveCard(&card))

	return s, card
}

func testTxn() Transaction {
	return Transaction{
		Amount:              10000,
		CurrencyCode:        "0840",
		CountryCode:         "0840",
		UnpredictableNumber: []byte{0xDE, 0xAD, 0xBE, 0xEF},
		Timestamp:           time.Unix(1700000000, 0),
	}
}

type failingSaves struct {
	*store.Store
}

func (failingSaves) SaveCard(*store.Card) error { return errors.New("disk full") }

func TestTypeFromP1(t *testing.T) {
	t.Parallel()

	tests := []struct {
		p1      byte
		want    Type
		wantErr bool
	}{
		{0x00, AAC, false},
		{0x10, AAC, false},
		{0x40, TC, false},
		{0x50, TC, false},
		{0x80, ARQC, false},
		{0x90, ARQC, false},
		{0xC0, 0, true},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(cryptoutils.Raw2Str([]byte{tt.p1}), func(t *testing.T) {
			t.Parallel()

			got, err := TypeFromP1(tt.p1)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrReservedType)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeriveKeyPersistsOnce(t *testing.T) {
	t.Parallel()

	s, card := newStore(t)
	e := NewEngine(s)

	key, err := e.DeriveKey(&card)
	require.NoError(t, err)
	assert.Equal(t, testKey, cryptoutils.Raw2Str(key))

	stored, err := s.GetCard(card.ID)
	require.NoError(t, err)
	assert.Equal(t, testKey, stored.CryptogramKey)

	// A stale copy without the key picks up the stored one.
	stale := stored
	stale.CryptogramKey = ""
	stale.CVV = "999"
	again, err := e.DeriveKey(&stale)
	require.NoError(t, err)
	assert.Equal(t, testKey, cryptoutils.Raw2Str(again))
	assert.Equal(t, "123", stale.CVV)
}

func TestDeriveKeyPersistFailure(t *testing.T) {
	t.Parallel()

	s, card := newStore(t)
	e := NewEngine(failingSaves{s})

	key, err := e.DeriveKey(&card)
	require.NoError(t, err)
	assert.Equal(t, testKey, cryptoutils.Raw2Str(key))
}

func TestBuildInput(t *testing.T) {
	t.Parallel()

	s, card := newStore(t)
	e := NewEngine(s)

	input, un, err := e.BuildInput(card, testTxn(), 1, TC)
	require.NoError(t, err)
	assert.Equal(t, "9BBEF19476623CA500010000000100000840084040DEADBEEF", cryptoutils.Raw2Str(input))
	assert.Equal(t, "DEADBEEF", cryptoutils.Raw2Str(un))

	txn := testTxn()
	txn.UnpredictableNumber = nil
	e = NewEngine(s, WithRandom(bytes.NewReader([]byte{1, 2, 3, 4})))
	input, un, err = e.BuildInput(card, txn, 1, TC)
	require.NoError(t, err)
	assert.Equal(t, "01020304", cryptoutils.Raw2Str(un))
	assert.Equal(t, un, input[21:])

	txn.UnpredictableNumber = []byte{1, 2}
	_, _, err = e.BuildInput(card, txn, 1, TC)
	require.Error(t, err)

	txn = testTxn()
	txn.CurrencyCode = "840"
	_, _, err = e.BuildInput(card, txn, 1, TC)
	require.Error(t, err)
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typ  Type
		want string
	}{
		{TC, "BDFEC58113531587"},
		{ARQC, "F8269E89F776E5A6"},
		{AAC, "1388ECA388808BAA"},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.typ.String(), func(t *testing.T) {
			t.Parallel()

			s, card := newStore(t)
			res, err := NewEngine(s).Generate(&card, testTxn(), 1, tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cryptoutils.Raw2Str(res.Cryptogram))
			assert.Equal(t, PathAESCBC, res.Path)
			assert.Equal(t, tt.typ, res.Type)
			assert.Equal(t, testKey, card.CryptogramKey)
		})
	}
}

func TestGenerateIsDeterministicPerATC(t *testing.T) {
	t.Parallel()

	s, card := newStore(t)
	e := NewEngine(s)

	a, err := e.Generate(&card, testTxn(), 1, TC)
	require.NoError(t, err)
	b, err := e.Generate(&card, testTxn(), 1, TC)
	require.NoError(t, err)
	c, err := e.Generate(&card, testTxn(), 2, TC)
	require.NoError(t, err)

	assert.Equal(t, a.Cryptogram, b.Cryptogram)
	assert.NotEqual(t, a.Cryptogram, c.Cryptogram)
}

func TestGenerateFallsBackToHMAC(t *testing.T) {
	t.Parallel()

	s, card := newStore(t)
	// 15 bytes is not a valid AES key length.
	card.CryptogramKey = testKey[:30]

	res, err := NewEngine(s).Generate(&card, testTxn(), 1, TC)
	require.NoError(t, err)
	assert.Equal(t, PathHMACFallback, res.Path)
	assert.Equal(t, "AD314BA20129670D", cryptoutils.Raw2Str(res.Cryptogram))
}

func TestGenerateBadStoredKey(t *testing.T) {
	t.Parallel()

	s, card := newStore(t)
	card.CryptogramKey = "not hex"

	_, err := NewEngine(s).Generate(&card, testTxn(), 1, TC)
	require.Error(t, err)
}

func TestHash(t *testing.T) {
	t.Parallel()

	s, card := newStore(t)
	card.ATC = 1

	h, err := NewEngine(s).Hash(card, testTxn())
	require.NoError(t, err)
	assert.Equal(t, "4AFCCCB5A025524C", cryptoutils.Raw2Str(h))
}

func TestIssuerApplicationData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typ  Type
		want string
	}{
		{ARQC, "110300000000011111111111111111"},
		{TC, "114000000000011111111111111111"},
		{AAC, "110000000000011111111111111111"},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.typ.String(), func(t *testing.T) {
			t.Parallel()

			e := NewEngine(nil, WithRandom(strings.NewReader(strings.Repeat("\x11", 8))))
			iad, err := e.IssuerApplicationData(tt.typ)
			require.NoError(t, err)
			require.Len(t, iad, 15)
			assert.Equal(t, tt.want, cryptoutils.Raw2Str(iad))
		})
	}

	_, err := NewEngine(nil, WithRandom(strings.NewReader(""))).IssuerApplicationData(TC)
	require.Error(t, err)
}
