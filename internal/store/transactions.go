package store

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Transaction statuses.
const (
	StatusPending         = "pending"
	StatusApproved        = "approved"
	StatusDeclined        = "declined"
	StatusOfflineDeclined = "offline_declined"
	StatusOnlineRequested = "online_requested"
)

// Transaction is the durable record of one GENERATE AC.
type Transaction struct {
	ID                  string    `json:"id"`
	CardID              int64     `json:"card_id"`
	Timestamp           time.Time `json:"timestamp"`
	Amount              uint64    `json:"amount"`
	CurrencyCode        string    `json:"currency_code"`
	CountryCode         string    `json:"country_code"`
	TransactionType     byte      `json:"transaction_type"`
	AID                 string    `json:"aid"`
	Network             string    `json:"network"`
	Cryptogram          string    `json:"cryptogram"`
	CryptogramType      string    `json:"cryptogram_type"`
	CryptogramPath      string    `json:"cryptogram_path"`
	UnpredictableNumber string    `json:"unpredictable_number"`
	ATC                 uint16    `json:"atc"`
	Status              string    `json:"status"`
	ResponseCode        string    `json:"response_code,omitempty"`
	ResponseMessage     string    `json:"response_message,omitempty"`
	AuthorizationCode   string    `json:"authorization_code,omitempty"`
	ForcedApproval      bool      `json:"forced_approval"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// InsertTransaction stores txn under a fresh id and returns it.
func (s *Store) InsertTransaction(txn *Transaction) (string, error) {
	done, err := s.begin()
	if err != nil {
		return "", err
	}
	defer done()

	txn.ID = uuid.NewString()
	if txn.Timestamp.IsZero() {
		txn.Timestamp = s.now()
	}
	txn.UpdatedAt = s.now()

	s.doc.Transactions = append(s.doc.Transactions, *txn)
	if err := s.flush(); err != nil {
		s.doc.Transactions = s.doc.Transactions[:len(s.doc.Transactions)-1]

		return "", err
	}

	return txn.ID, nil
}

// UpdateTransaction replaces the record with txn.ID.
func (s *Store) UpdateTransaction(txn Transaction) error {
	done, err := s.begin()
	if err != nil {
		return err
	}
	defer done()

	i := slices.IndexFunc(s.doc.Transactions, func(t Transaction) bool { return t.ID == txn.ID })
	if i < 0 {
		return fmt.Errorf("transaction %s: %w", txn.ID, ErrNotFound)
	}

	prev := s.doc.Transactions[i]
	txn.UpdatedAt = s.now()
	s.doc.Transactions[i] = txn
	if err := s.flush(); err != nil {
		s.doc.Transactions[i] = prev

		return err
	}

	return nil
}

// GetTransaction returns the record with id.
func (s *Store) GetTransaction(id string) (Transaction, error) {
	done, err := s.begin()
	if err != nil {
		return Transaction{}, err
	}
	defer done()

	i := slices.IndexFunc(s.doc.Transactions, func(t Transaction) bool { return t.ID == id })
	if i < 0 {
		return Transaction{}, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}

	return s.doc.Transactions[i], nil
}

// ListTransactions returns records newest first. cardID 0 lists every card.
func (s *Store) ListTransactions(cardID int64) ([]Transaction, error) {
	done, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer done()

	out := make([]Transaction, 0, len(s.doc.Transactions))
	for _, t := range s.doc.Transactions {
		if cardID == 0 || t.CardID == cardID {
			out = append(out, t)
		}
	}

	slices.SortStableFunc(out, func(a, b Transaction) int { return b.Timestamp.Compare(a.Timestamp) })

	return out, nil
}
