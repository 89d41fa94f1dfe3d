package store

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/andrei-cloud/go_hce/internal/emv"
	"github.com/andrei-cloud/go_hce/pkg/cryptoutils"
)

// Card is a payment card provisioned on the emulator.
type Card struct {
	ID             int64     `json:"id"`
	PAN            string    `json:"pan"`
	Expiry         string    `json:"expiry"`
	CVV            string    `json:"cvv"`
	CardholderName string    `json:"cardholder_name"`
	Network        string    `json:"network"`
	PANSequence    string    `json:"pan_sequence"`
	ATC            uint16    `json:"atc"`
	CryptogramKey  string    `json:"cryptogram_key,omitempty"`
	Enabled        bool      `json:"enabled"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// MaskedPAN returns the PAN with all but the first six and last four digits masked.
func (c Card) MaskedPAN() string {
	if len(c.PAN) < 10 {
		return strings.Repeat("*", len(c.PAN))
	}

	return c.PAN[:6] + strings.Repeat("*", len(c.PAN)-10) + c.PAN[len(c.PAN)-4:]
}

// Normalize strips formatting from user input and fills defaults.
func (c *Card) Normalize() {
	c.PAN = strings.NewReplacer(" ", "", "-", "").Replace(c.PAN)
	c.Expiry = strings.TrimSpace(c.Expiry)
	c.CVV = strings.TrimSpace(c.CVV)
	c.CardholderName = strings.TrimSpace(c.CardholderName)
	c.Network = strings.ToUpper(strings.TrimSpace(c.Network))
	if c.Network == "" {
		c.Network = emv.NetworkForPAN(c.PAN)
	}
	if c.PANSequence == "" {
		c.PANSequence = "01"
	}
}

// Validate checks the card fields.
func (c Card) Validate() error {
	if !cryptoutils.IsDigits(c.PAN) ||
		len(c.PAN) < cryptoutils.PAN_MIN_LENGTH || len(c.PAN) > cryptoutils.PAN_MAX_LENGTH {
		return fmt.Errorf("%w: pan must be %d-%d digits", ErrInvalidCard,
			cryptoutils.PAN_MIN_LENGTH, cryptoutils.PAN_MAX_LENGTH)
	}
	if _, _, err := emv.ParseExpiry(c.Expiry); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCard, err)
	}
	if !cryptoutils.IsDigits(c.CVV) || len(c.CVV) < 3 || len(c.CVV) > 4 {
		return fmt.Errorf("%w: cvv must be 3 or 4 digits", ErrInvalidCard)
	}
	if len(c.PANSequence) != 2 || !cryptoutils.IsDigits(c.PANSequence) {
		return fmt.Errorf("%w: pan sequence must be 2 digits", ErrInvalidCard)
	}
	if _, ok := emv.AIDForNetwork(c.Network); !ok {
		return fmt.Errorf("%w: unsupported network %q", ErrInvalidCard, c.Network)
	}

	return nil
}

// GetCard returns the card with id.
func (s *Store) GetCard(id int64) (Card, error) {
	done, err := s.begin()
	if err != nil {
		return Card{}, err
	}
	defer done()

	i := s.cardIndex(id)
	if i < 0 {
		return Card{}, fmt.Errorf("card %d: %w", id, ErrNotFound)
	}

	return s.openCard(s.doc.Cards[i])
}

// SaveCard inserts a card (ID 0) or replaces an existing one. New cards get an
// ID and must not be expired.
func (s *Store) SaveCard(card *Card) error {
	card.Normalize()
	if err := card.Validate(); err != nil {
		return err
	}

	done, err := s.begin()
	if err != nil {
		return err
	}
	defer done()

	now := s.now()
	i := -1
	if card.ID != 0 {
		if i = s.cardIndex(card.ID); i < 0 {
			return fmt.Errorf("card %d: %w", card.ID, ErrNotFound)
		}
		existing := s.doc.Cards[i].CryptogramKey
		if existing != "" && !strings.EqualFold(existing, card.CryptogramKey) {
			return fmt.Errorf("card %d: %w", card.ID, ErrKeyImmutable)
		}
	} else {
		if len(s.doc.Cards) >= MaxCards {
			return fmt.Errorf("%w: at most %d cards", ErrCardLimit, MaxCards)
		}
		if emv.Expired(card.Expiry, now) {
			return fmt.Errorf("%w: card expired %s", ErrInvalidCard, card.Expiry)
		}
		card.ID = s.doc.NextCardID
		card.CreatedAt = now
	}
	card.UpdatedAt = now

	sealed, err := s.sealCard(*card)
	if err != nil {
		return err
	}

	prev := slices.Clone(s.doc.Cards)
	prevNext := s.doc.NextCardID
	if i < 0 {
		s.doc.Cards = append(s.doc.Cards, sealed)
		s.doc.NextCardID++
	} else {
		s.doc.Cards[i] = sealed
	}

	if err := s.flush(); err != nil {
		s.doc.Cards = prev
		s.doc.NextCardID = prevNext

		return err
	}

	return nil
}

// ListCards returns every card ordered by id.
func (s *Store) ListCards() ([]Card, error) {
	done, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer done()

	out := make([]Card, 0, len(s.doc.Cards))
	for _, c := range s.doc.Cards {
		opened, err := s.openCard(c)
		if err != nil {
			return nil, err
		}
		out = append(out, opened)
	}

	slices.SortFunc(out, func(a, b Card) int { return int(a.ID - b.ID) })

	return out, nil
}

// DeleteCard removes a card. If it was the active card the selection is cleared.
func (s *Store) DeleteCard(id int64) error {
	done, err := s.begin()
	if err != nil {
		return err
	}
	defer done()

	i := s.cardIndex(id)
	if i < 0 {
		return fmt.Errorf("card %d: %w", id, ErrNotFound)
	}

	prev := slices.Clone(s.doc.Cards)
	prevSettings := s.doc.Settings
	s.doc.Cards = slices.Delete(s.doc.Cards, i, i+1)
	if s.doc.Settings.ActiveCardID == id {
		s.doc.Settings.ActiveCardID = 0
	}

	if err := s.flush(); err != nil {
		s.doc.Cards = prev
		s.doc.Settings = prevSettings

		return err
	}

	return nil
}

func (s *Store) cardIndex(id int64) int {
	return slices.IndexFunc(s.doc.Cards, func(c Card) bool { return c.ID == id })
}

func (s *Store) sealCard(c Card) (Card, error) {
	var err error
	if c.PAN, err = s.sealer.seal(c.PAN); err != nil {
		return Card{}, fmt.Errorf("card %d pan: %w", c.ID, err)
	}
	if c.CVV, err = s.sealer.seal(c.CVV); err != nil {
		return Card{}, fmt.Errorf("card %d cvv: %w", c.ID, err)
	}

	return c, nil
}

func (s *Store) openCard(c Card) (Card, error) {
	var err error
	if c.PAN, err = s.sealer.open(c.PAN); err != nil {
		return Card{}, fmt.Errorf("card %d pan: %w", c.ID, err)
	}
	if c.CVV, err = s.sealer.open(c.CVV); err != nil {
		return Card{}, fmt.Errorf("card %d cvv: %w", c.ID, err)
	}

	return c, nil
}
