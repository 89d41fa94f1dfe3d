package store

import (
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func testCard() Card {
	return Card{
		PAN:            "4111 1111 1111 1111",
		Expiry:         "12/29",
		CVV:            "123",
		CardholderName: "John Smith",
		Enabled:        true,
	}
}

func TestSaveAndGetCard(t *testing.T) {
	t.Parallel()

	s := NewMemory(WithClock(clock))

	card := testCard()
	require.NoError(t, s.SaveCard(&card))
	assert.Equal(t, int64(1), card.ID)
	assert.Equal(t, "4111111111111111", card.PAN)
	assert.Equal(t, "VISA", card.Network)
	assert.Equal(t, "01", card.PANSequence)
	assert.Equal(t, fixedNow, card.CreatedAt)

	got, err := s.GetCard(card.ID)
	require.NoError(t, err)
	assert.Equal(t, card, got)
	assert.Equal(t, "411111******1111", got.MaskedPAN())

	_, err = s.GetCard(42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveCardValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *Card)
	}{
		{"short pan", func(c *Card) { c.PAN = "411111" }},
		{"non numeric pan", func(c *Card) { c.PAN = "4111x11111111111" }},
		{"bad expiry", func(c *Card) { c.Expiry = "13/29" }},
		{"expired", func(c *Card) { c.Expiry = "09/26" }},
		{"short cvv", func(c *Card) { c.CVV = "12" }},
		{"alpha cvv", func(c *Card) { c.CVV = "12a" }},
		{"unsupported network", func(c *Card) { c.Network = "JCB" }},
		{"bad pan sequence", func(c *Card) { c.PANSequence = "1" }},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := NewMemory(WithClock(clock))
			card := testCard()
			tt.mutate(&card)

			assert.ErrorIs(t, s.SaveCard(&card), ErrInvalidCard)
			cards, err := s.ListCards()
			require.NoError(t, err)
			assert.Empty(t, cards)
		})
	}
}

func TestCardLimit(t *testing.T) {
	t.Parallel()

	s := NewMemory(WithClock(clock))
	for i := 0; i < MaxCards; i++ {
		card := testCard()
		require.NoError(t, s.SaveCard(&card))
	}

	card := testCard()
	assert.ErrorIs(t, s.SaveCard(&card), ErrCardLimit)

	cards, err := s.ListCards()
	require.NoError(t, err)
	assert.Len(t, cards, MaxCards)
	assert.Equal(t, int64(1), cards[0].ID)
	assert.Equal(t, int64(MaxCards), cards[MaxCards-1].ID)
}

func TestCryptogramKeyIsImmutable(t *testing.T) {
	t.Parallel()

	s := NewMemory(WithClock(clock))
	card := testCard()
	require.NoError(t, s.SaveCard(&card))

	card.CryptogramKey = "4098188F490A783E07A1EA83BF20501D"
	require.NoError(t, s.SaveCard(&card))

	// Same key, different case, is accepted.
	card.CryptogramKey = strings.ToLower(card.CryptogramKey)
	card.ATC = 7
	require.NoError(t, s.SaveCard(&card))

	card.CryptogramKey = "00000000000000000000000000000000"
	assert.ErrorIs(t, s.SaveCard(&card), ErrKeyImmutable)

	got, err := s.GetCard(card.ID)
	require.NoError(t, err)
	assert.Equal(t, uint16(7), got.ATC)
}

func TestDeleteCardClearsActive(t *testing.T) {
	t.Parallel()

	s := NewMemory(WithClock(clock))
	card := testCard()
	require.NoError(t, s.SaveCard(&card))
	require.NoError(t, s.SaveSettings(Settings{ActiveCardID: card.ID, BiometricRequired: true}))

	require.NoError(t, s.DeleteCard(card.ID))
	settings, err := s.Settings()
	require.NoError(t, err)
	assert.Equal(t, Settings{BiometricRequired: true}, settings)

	assert.ErrorIs(t, s.DeleteCard(card.ID), ErrNotFound)
	assert.ErrorIs(t, s.SaveSettings(Settings{ActiveCardID: 99}), ErrNotFound)
}

func TestTransactions(t *testing.T) {
	t.Parallel()

	s := NewMemory(WithClock(clock))

	first := Transaction{CardID: 1, Amount: 100, Timestamp: fixedNow.Add(-time.Minute), Status: StatusPending}
	id, err := s.InsertTransaction(&first)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, first.ID)

	second := Transaction{CardID: 2, Amount: 200, Status: StatusOnlineRequested}
	_, err = s.InsertTransaction(&second)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, second.Timestamp)
	assert.NotEqual(t, first.ID, second.ID)

	first.Status = StatusApproved
	first.ResponseCode = "00"
	require.NoError(t, s.UpdateTransaction(first))

	got, err := s.GetTransaction(first.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)

	all, err := s.ListTransactions(0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")

	mine, err := s.ListTransactions(1)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, first.ID, mine[0].ID)

	assert.ErrorIs(t, s.UpdateTransaction(Transaction{ID: "missing"}), ErrNotFound)
	_, err = s.GetTransaction("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreSealsAndReopens(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sealer, err := NewSealer("correct horse battery staple")
	require.NoError(t, err)

	s, err := Open(dir, WithSealer(sealer), WithClock(clock))
	require.NoError(t, err)

	card := testCard()
	require.NoError(t, s.SaveCard(&card))
	require.NoError(t, s.SaveSettings(Settings{ActiveCardID: card.ID}))

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "4111111111111111")
	assert.Contains(t, string(raw), sealedPrefix)

	reopened, err := Open(dir, WithSealer(sealer), WithClock(clock))
	require.NoError(t, err)
	got, err := reopened.GetCard(card.ID)
	require.NoError(t, err)
	assert.Equal(t, "4111111111111111", got.PAN)
	assert.Equal(t, "123", got.CVV)

	settings, err := reopened.Settings()
	require.NoError(t, err)
	assert.Equal(t, card.ID, settings.ActiveCardID)

	// A new card continues the id sequence.
	next := testCard()
	require.NoError(t, reopened.SaveCard(&next))
	assert.Equal(t, card.ID+1, next.ID)
}

func TestFileStoreSharedBetweenHandles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	serve, err := Open(dir, WithClock(clock))
	require.NoError(t, err)
	cli, err := Open(dir, WithClock(clock))
	require.NoError(t, err)

	card := testCard()
	require.NoError(t, cli.SaveCard(&card))
	require.NoError(t, cli.SaveSettings(Settings{ActiveCardID: card.ID, ForceApproval: true}))

	settings, err := serve.Settings()
	require.NoError(t, err)
	assert.Equal(t, Settings{ActiveCardID: card.ID, ForceApproval: true}, settings)

	served, err := serve.GetCard(card.ID)
	require.NoError(t, err)
	served.ATC = 5
	require.NoError(t, serve.SaveCard(&served))
	_, err = serve.InsertTransaction(&Transaction{CardID: card.ID, Status: StatusPending})
	require.NoError(t, err)

	// A later write from the other handle keeps what serve persisted.
	require.NoError(t, cli.SaveSettings(Settings{ActiveCardID: card.ID, BiometricRequired: true}))

	reopened, err := Open(dir, WithClock(clock))
	require.NoError(t, err)
	cards, err := reopened.ListCards()
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, uint16(5), cards[0].ATC)

	txns, err := reopened.ListTransactions(0)
	require.NoError(t, err)
	assert.Len(t, txns, 1)

	settings, err = reopened.Settings()
	require.NoError(t, err)
	assert.Equal(t, Settings{ActiveCardID: card.ID, BiometricRequired: true}, settings)
}

func TestFileStoreConcurrentHandles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first, err := Open(dir, WithClock(clock))
	require.NoError(t, err)
	second, err := Open(dir, WithClock(clock))
	require.NoError(t, err)

	const perHandle = 20
	var wg sync.WaitGroup
	for _, s := range []*Store{first, second} {
		wg.Add(1)
		go func(s *Store) {
			defer wg.Done()
			for i := 0; i < perHandle; i++ {
				_, err := s.InsertTransaction(&Transaction{CardID: 1, Status: StatusPending})
				assert.NoError(t, err)
			}
		}(s)
	}
	wg.Wait()

	txns, err := first.ListTransactions(0)
	require.NoError(t, err)
	assert.Len(t, txns, 2*perHandle)
}

func TestFileStoreFailsClosed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sealer, err := NewSealer(strings.Repeat("ab", 32))
	require.NoError(t, err)

	s, err := Open(dir, WithSealer(sealer), WithClock(clock))
	require.NoError(t, err)
	card := testCard()
	require.NoError(t, s.SaveCard(&card))

	wrong, err := NewSealer("another key")
	require.NoError(t, err)
	withWrongKey, err := Open(dir, WithSealer(wrong), WithClock(clock))
	require.NoError(t, err)
	_, err = withWrongKey.GetCard(card.ID)
	assert.ErrorIs(t, err, ErrOpenFailed)

	withoutKey, err := Open(dir, WithClock(clock))
	require.NoError(t, err)
	_, err = withoutKey.ListCards()
	assert.ErrorIs(t, err, ErrOpenFailed)
}

func TestSealer(t *testing.T) {
	t.Parallel()

	s, err := NewSealer("secret")
	require.NoError(t, err)

	a, err := s.Seal("123")
	require.NoError(t, err)
	b, err := s.Seal("123")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "fresh nonce per value")

	plain, err := s.Open(a)
	require.NoError(t, err)
	assert.Equal(t, "123", plain)

	_, err = s.Open("123")
	assert.ErrorIs(t, err, ErrOpenFailed)
	_, err = s.Open(sealedPrefix + "!!")
	assert.ErrorIs(t, err, ErrOpenFailed)

	_, err = NewSealer("")
	assert.ErrorIs(t, err, ErrSealFailed)
}

func TestSealerNonceFailure(t *testing.T) {
	t.Parallel()

	s, err := NewSealer("secret")
	require.NoError(t, err)
	s.rand = strings.NewReader("")

	_, err = s.Seal("4111111111111111")
	assert.ErrorIs(t, err, ErrSealFailed)

	st := NewMemory(WithSealer(s), WithClock(clock))
	card := testCard()
	assert.ErrorIs(t, st.SaveCard(&card), ErrSealFailed)
	cards, err := st.ListCards()
	require.NoError(t, err)
	assert.Empty(t, cards)
}
