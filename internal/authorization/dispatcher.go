package authorization

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/andrei-cloud/go_hce/internal/store"
	"github.com/rs/zerolog/log"
)

// Event reports a completed authorization.
type Event struct {
	Transaction store.Transaction
	Err         error
}

// Listener receives completion events. Listeners run on the authorization
// goroutine and must not block.
type Listener func(Event)

// Dispatcher runs authorizations off the command path.
type Dispatcher struct {
	client  Client
	txns    store.TransactionStore
	timeout time.Duration

	mu        sync.Mutex
	listeners []Listener
	wg        sync.WaitGroup
}

// NewDispatcher returns a dispatcher that records outcomes in txns. A zero
// timeout lets calls run until the client returns.
func NewDispatcher(client Client, txns store.TransactionStore, timeout time.Duration) *Dispatcher {
	return &Dispatcher{client: client, txns: txns, timeout: timeout}
}

// Subscribe registers l for completion events.
func (d *Dispatcher) Subscribe(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.listeners = append(d.listeners, l)
}

// Submit marks txn pending and authorizes it asynchronously. It returns once
// the pending marker is stored; the outcome is written to the store later.
func (d *Dispatcher) Submit(txn store.Transaction, force bool) error {
	if txn.ID == "" {
		return errors.New("transaction has no id")
	}

	txn.Status = store.StatusPending
	txn.ForcedApproval = force
	if err := d.txns.UpdateTransaction(txn); err != nil {
		return fmt.Errorf("mark transaction %s pending: %w", txn.ID, err)
	}

	log.Info().
		Str("event", "authorization_dispatched").
		Str("transaction_id", txn.ID).
		Bool("forced", force).
		Msg("authorization submitted")

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(txn, force)
	}()

	return nil
}

// Wait blocks until every submitted authorization has completed.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(txn store.Transaction, force bool) {
	// Session resets never cancel an in-flight authorization.
	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	snap := SnapshotOf(txn)

	var (
		res Result
		err error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("authorization client panic: %v", r)
			}
		}()
		if force {
			res, err = d.client.ForceApprove(ctx, snap)
		} else {
			res, err = d.client.Authorize(ctx, snap)
		}
	}()

	if err != nil {
		res = Result{
			ResponseCode:    CodeCommunicationError,
			ResponseMessage: Message(CodeCommunicationError),
		}
		log.Error().
			Err(err).
			Str("event", "authorization_failed").
			Str("transaction_id", txn.ID).
			Msg("authorization recorded as declined")
	}

	txn.Status = store.StatusDeclined
	if res.Approved {
		txn.Status = store.StatusApproved
	}
	txn.ResponseCode = res.ResponseCode
	txn.ResponseMessage = res.ResponseMessage
	txn.AuthorizationCode = res.AuthorizationCode
	if res.Network != "" {
		txn.Network = res.Network
	}

	if uerr := d.txns.UpdateTransaction(txn); uerr != nil {
		log.Error().
			Err(uerr).
			Str("event", "authorization_persist_failed").
			Str("transaction_id", txn.ID).
			Msg("failed to store authorization result")
		if err == nil {
			err = uerr
		}
	} else {
		log.Info().
			Str("event", "authorization_completed").
			Str("transaction_id", txn.ID).
			Str("status", txn.Status).
			Str("response_code", txn.ResponseCode).
			Msg("authorization result stored")
	}

	d.mu.Lock()
	listeners := append([]Listener(nil), d.listeners...)
	d.mu.Unlock()

	for _, l := range listeners {
		l(Event{Transaction: txn, Err: err})
	}
}
