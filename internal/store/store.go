// Package store persists cards, transactions and settings.
//
// A Store keeps one JSON document in memory. When opened on a directory every
// operation takes an exclusive lock on the directory, reloads the document and
// rewrites it atomically after a change, so several processes can share it. PAN and CVV are sealed with the
// configured Sealer before they are written.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	documentName = "go_hce.json"
	lockName     = "go_hce.lock"
	// MaxCards is the number of cards a store accepts.
	MaxCards = 10
)

var (
	// ErrNotFound is returned when a card or transaction id is unknown.
	ErrNotFound = errors.New("not found")
	// ErrCardLimit is returned when adding a card beyond MaxCards.
	ErrCardLimit = errors.New("card limit reached")
	// ErrInvalidCard is returned when card fields fail validation.
	ErrInvalidCard = errors.New("invalid card")
	// ErrKeyImmutable is returned when a save would replace an existing cryptogram key.
	ErrKeyImmutable = errors.New("cryptogram key cannot change once set")
)

// CardStore reads and writes card records.
type CardStore interface {
	GetCard(id int64) (Card, error)
	SaveCard(card *Card) error
	ListCards() ([]Card, error)
	DeleteCard(id int64) error
}

// TransactionStore reads and writes transaction records.
type TransactionStore interface {
	InsertTransaction(txn *Transaction) (string, error)
	UpdateTransaction(txn Transaction) error
	GetTransaction(id string) (Transaction, error)
	ListTransactions(cardID int64) ([]Transaction, error)
}

// SettingsStore reads and writes the emulator settings.
type SettingsStore interface {
	Settings() (Settings, error)
	SaveSettings(s Settings) error
}

type document struct {
	NextCardID   int64         `json:"next_card_id"`
	Cards        []Card        `json:"cards"`
	Transactions []Transaction `json:"transactions"`
	Settings     Settings      `json:"settings"`
}

// Store implements CardStore, TransactionStore and SettingsStore.
type Store struct {
	mu     sync.Mutex
	path   string // empty for in-memory stores
	sealer *Sealer
	doc    document
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithSealer seals PAN and CVV at rest.
func WithSealer(s *Sealer) Option {
	return func(st *Store) { st.sealer = s }
}

// WithClock overrides the time source used for timestamps and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(st *Store) { st.now = now }
}

// NewMemory returns a store that never touches disk.
func NewMemory(opts ...Option) *Store {
	s := &Store{doc: document{NextCardID: 1}, now: time.Now}
	for _, o := range opts {
		o(s)
	}

	return s
}

// Open loads (or creates) the store document in dir.
func Open(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	s := NewMemory(opts...)
	s.path = filepath.Join(dir, documentName)

	done, err := s.begin()
	if err != nil {
		return nil, err
	}
	done()

	return s, nil
}

// begin serializes one operation. File-backed stores also hold the directory
// lock and reload the document written by other processes. The returned func
// releases both.
func (s *Store) begin() (func(), error) {
	s.mu.Lock()
	if s.path == "" {
		return s.mu.Unlock, nil
	}

	unlock, err := lockFile(filepath.Join(filepath.Dir(s.path), lockName))
	if err != nil {
		s.mu.Unlock()

		return nil, fmt.Errorf("lock store: %w", err)
	}
	if err := s.load(); err != nil {
		unlock()
		s.mu.Unlock()

		return nil, err
	}

	return func() {
		unlock()
		s.mu.Unlock()
	}, nil
}

// load replaces the in-memory document with the file contents. Callers hold
// the directory lock.
func (s *Store) load() error {
	doc := document{NextCardID: 1}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.doc = doc

		return nil
	}
	if err != nil {
		return fmt.Errorf("read store: %w", err)
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode store %s: %w", s.path, err)
	}
	if doc.NextCardID == 0 {
		doc.NextCardID = 1
	}
	s.doc = doc

	return nil
}

// Path returns the backing file, or "" for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// flush writes the document to disk. Callers hold the lock taken by begin.
func (s *Store) flush() error {
	if s.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), documentName+".*")
	if err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()

		return fmt.Errorf("write store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write store: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}

	return nil
}
