// Package authorization submits issued transaction certificates to a payment
// network and records the outcome.
package authorization

import (
	"context"
	"errors"

	"github.com/andrei-cloud/go_hce/internal/store"
)

// Response codes.
const (
	CodeApproved           = "00"
	CodeInsufficientFunds  = "51"
	CodeExpiredCard        = "54"
	CodeSuspectedFraud     = "59"
	CodeLostCard           = "41"
	CodeStolenCard         = "43"
	CodeRestrictedCard     = "62"
	CodeInvalidTransaction = "12"
	CodeFormatError        = "30"
	CodeProcessingError    = "96"
	// CodeCommunicationError is recorded when the network could not be reached.
	CodeCommunicationError = "Z3"
)

var messages = map[string]string{
	CodeApproved:           "Approved",
	CodeInsufficientFunds:  "Declined: Insufficient Funds",
	CodeExpiredCard:        "Declined: Expired Card",
	CodeSuspectedFraud:     "Declined: Suspected Fraud",
	CodeLostCard:           "Declined: Lost Card",
	CodeStolenCard:         "Declined: Stolen Card",
	CodeRestrictedCard:     "Declined: Restricted Card",
	CodeInvalidTransaction: "Error: Invalid Transaction",
	CodeFormatError:        "Error: Format Error",
	CodeProcessingError:    "Error: Processing Error",
	CodeCommunicationError: "Declined: Communication Error",
}

// ErrUnavailable is returned by clients that cannot reach the network.
var ErrUnavailable = errors.New("authorization network unavailable")

// Message returns the human readable text for a response code.
func Message(code string) string {
	if m, ok := messages[code]; ok {
		return m
	}

	return "Unknown Response: " + code
}

// Snapshot is the immutable view of a transaction handed to a Client.
type Snapshot struct {
	TransactionID string
	CardID        int64
	Amount        uint64
	CurrencyCode  string
	AID           string
	Cryptogram    string
	ATC           uint16
}

// SnapshotOf copies the fields a Client needs out of txn.
func SnapshotOf(txn store.Transaction) Snapshot {
	return Snapshot{
		TransactionID: txn.ID,
		CardID:        txn.CardID,
		Amount:        txn.Amount,
		CurrencyCode:  txn.CurrencyCode,
		AID:           txn.AID,
		Cryptogram:    txn.Cryptogram,
		ATC:           txn.ATC,
	}
}

// Result is the network decision.
type Result struct {
	Approved          bool
	ResponseCode      string
	ResponseMessage   string
	AuthorizationCode string
	Network           string
}

// Client decides on a transaction.
type Client interface {
	Authorize(ctx context.Context, s Snapshot) (Result, error)
	ForceApprove(ctx context.Context, s Snapshot) (Result, error)
}
