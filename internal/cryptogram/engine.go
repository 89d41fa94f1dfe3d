package cryptogram

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/andrei-cloud/go_hce/internal/store"
	"github.com/andrei-cloud/go_hce/pkg/cryptoutils"
	"github.com/rs/zerolog/log"
)

const (
	keyLength        = cryptoutils.KEY_LENGTH_AES128
	panHashLength    = 8
	acLength         = 8
	hashLength       = 8
	unLength         = 4
	inputLength      = 25
	iadFormatVersion = 0x11
)

// Paths reported in logs and results.
const (
	PathAESCBC       = "aes-cbc"
	PathHMACFallback = "hmac-sha256-fallback"
)

// KeyStore persists the derived key on the card record.
type KeyStore interface {
	GetCard(id int64) (store.Card, error)
	SaveCard(card *store.Card) error
}

// Transaction carries the terminal supplied attributes the engine needs.
type Transaction struct {
	Amount              uint64
	CurrencyCode        string // four digits, e.g. "0840"
	CountryCode         string // four digits
	UnpredictableNumber []byte // four bytes, random when empty
	Timestamp           time.Time
}

// Result is a computed application cryptogram.
type Result struct {
	Cryptogram          []byte
	Type                Type
	Path                string
	UnpredictableNumber []byte
}

// Engine computes cryptograms for cards held in a KeyStore.
type Engine struct {
	cards KeyStore
	rand  io.Reader
}

// Option configures an Engine.
type Option func(*Engine)

// WithRandom sets the source used for unpredictable numbers and IAD padding.
func WithRandom(r io.Reader) Option {
	return func(e *Engine) { e.rand = r }
}

// NewEngine returns an engine backed by cards.
func NewEngine(cards KeyStore, opts ...Option) *Engine {
	e := &Engine{cards: cards, rand: rand.Reader}
	for _, o := range opts {
		o(e)
	}

	return e
}

// DeriveKey returns the card's cryptogram key, deriving and persisting it on
// first use. card is updated with the stored key.
func (e *Engine) DeriveKey(card *store.Card) ([]byte, error) {
	if card.CryptogramKey != "" {
		key, err := hex.DecodeString(card.CryptogramKey)
		if err != nil {
			return nil, fmt.Errorf("card %d stored key: %w", card.ID, err)
		}

		return key, nil
	}

	key := cryptoutils.SHA256(keyLength, []byte(card.PAN), []byte(card.Expiry), []byte(card.CVV))
	card.CryptogramKey = cryptoutils.Raw2Str(key)

	err := e.cards.SaveCard(card)
	switch {
	case err == nil:
		log.Info().
			Str("event", "cryptogram_key_created").
			Int64("card_id", card.ID).
			Msg("derived and stored card cryptogram key")
	case errors.Is(err, store.ErrKeyImmutable):
		// Another writer stored a key first; the stored one wins.
		stored, gerr := e.cards.GetCard(card.ID)
		if gerr != nil {
			return nil, fmt.Errorf("card %d reload key: %w", card.ID, gerr)
		}
		*card = stored

		return e.DeriveKey(card)
	default:
		log.Error().
			Err(err).
			Str("event", "cryptogram_key_persist_failed").
			Int64("card_id", card.ID).
			Msg("using derived key without persisting it")
	}

	return key, nil
}

// BuildInput returns the 25 byte cryptogram input block and the unpredictable number used:
// PAN hash(8) || ATC(2) || amount(6) || currency(2) || country(2) || type(1) || UN(4).
func (e *Engine) BuildInput(card store.Card, txn Transaction, atc uint16, t Type) ([]byte, []byte, error) {
	amount, err := cryptoutils.NumericBCD(txn.Amount, 6)
	if err != nil {
		return nil, nil, fmt.Errorf("amount: %w", err)
	}
	currency, err := fourDigitCode(txn.CurrencyCode)
	if err != nil {
		return nil, nil, fmt.Errorf("currency: %w", err)
	}
	country, err := fourDigitCode(txn.CountryCode)
	if err != nil {
		return nil, nil, fmt.Errorf("country: %w", err)
	}

	un := txn.UnpredictableNumber
	switch len(un) {
	case 0:
		un = make([]byte, unLength)
		if _, err := io.ReadFull(e.rand, un); err != nil {
			return nil, nil, fmt.Errorf("unpredictable number: %w", err)
		}
	case unLength:
	default:
		return nil, nil, fmt.Errorf("unpredictable number is %d bytes, want %d", len(un), unLength)
	}

	input := make([]byte, 0, inputLength)
	input = append(input, panHash(card.PAN)...)
	input = binary.BigEndian.AppendUint16(input, atc)
	input = append(input, amount...)
	input = append(input, currency...)
	input = append(input, country...)
	input = append(input, t.Marker())
	input = append(input, un...)

	return input, append([]byte(nil), un...), nil
}

// Generate computes the application cryptogram: the first 8 bytes of the final
// AES-CBC block over the padded input. When the cipher path fails the result
// falls back to HMAC-SHA256 over the same input; the path is logged and returned.
func (e *Engine) Generate(card *store.Card, txn Transaction, atc uint16, t Type) (Result, error) {
	key, err := e.DeriveKey(card)
	if err != nil {
		return Result{}, err
	}

	input, un, err := e.BuildInput(*card, txn, atc, t)
	if err != nil {
		return Result{}, err
	}

	res := Result{Type: t, Path: PathAESCBC, UnpredictableNumber: un}

	res.Cryptogram, err = cryptoutils.AESCBCMAC(key, input, acLength)
	if err != nil {
		res.Path = PathHMACFallback
		res.Cryptogram = cryptoutils.HMACSHA256(key, input, acLength)
		log.Warn().
			Err(err).
			Str("event", "cryptogram_generated").
			Str("cryptogram_path", res.Path).
			Int64("card_id", card.ID).
			Str("type", t.String()).
			Msg("cipher path failed, cryptogram computed with keyed hash")

		return res, nil
	}

	log.Info().
		Str("event", "cryptogram_generated").
		Str("cryptogram_path", res.Path).
		Int64("card_id", card.ID).
		Str("type", t.String()).
		Uint16("atc", atc).
		Msg("cryptogram computed")

	return res, nil
}

// Hash returns the transaction certificate hash:
// SHA-256(PAN hash || amount(6) || currency(2) || unix seconds(4) || counter(4)), first 8 bytes.
func (e *Engine) Hash(card store.Card, txn Transaction) ([]byte, error) {
	amount, err := cryptoutils.NumericBCD(txn.Amount, 6)
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	currency, err := fourDigitCode(txn.CurrencyCode)
	if err != nil {
		return nil, fmt.Errorf("currency: %w", err)
	}

	ts := binary.BigEndian.AppendUint32(nil, uint32(txn.Timestamp.Unix()))
	counter := binary.BigEndian.AppendUint32(nil, uint32(card.ATC))

	return cryptoutils.SHA256(hashLength, panHash(card.PAN), amount, currency, ts, counter), nil
}

// IssuerApplicationData returns version(1) || CVR(4) || derivation counter(2) || random(8).
func (e *Engine) IssuerApplicationData(t Type) ([]byte, error) {
	iad := []byte{iadFormatVersion, t.cvr(), 0x00, 0x00, 0x00, 0x00, 0x01}

	tail := make([]byte, 8)
	if _, err := io.ReadFull(e.rand, tail); err != nil {
		return nil, fmt.Errorf("issuer application data: %w", err)
	}

	return append(iad, tail...), nil
}

func panHash(pan string) []byte {
	return cryptoutils.SHA256(panHashLength, []byte(strings.ReplaceAll(pan, " ", "")))
}

func fourDigitCode(code string) ([]byte, error) {
	if len(code) != 4 {
		return nil, fmt.Errorf("code %q must be 4 digits", code)
	}

	return cryptoutils.EncodeBCD(code)
}
