// Package hce implements the contactless card application: it answers
// command APDUs from a terminal and drives the transaction session from
// application selection to cryptogram generation.
package hce

import (
	"errors"
	"fmt"
	"sync"

	"github.com/andrei-cloud/go_hce/internal/apdu"
	"github.com/andrei-cloud/go_hce/internal/clock"
	"github.com/andrei-cloud/go_hce/internal/cryptogram"
	"github.com/andrei-cloud/go_hce/internal/errorcodes"
	"github.com/andrei-cloud/go_hce/internal/store"
	"github.com/rs/zerolog/log"
)

// DefaultLabel is the application label returned in the FCI.
const DefaultLabel = "PayPlus"

// Authorizer accepts issued transaction certificates for asynchronous authorization.
type Authorizer interface {
	Submit(txn store.Transaction, force bool) error
}

// Engine is the card application. It is safe for concurrent use; commands
// are processed one at a time.
type Engine struct {
	cards      store.CardStore
	txns       store.TransactionStore
	settings   store.SettingsStore
	crypto     *cryptogram.Engine
	auth       Authorizer
	clock      clock.Clock
	label      string
	advanceATC bool

	mu    sync.Mutex
	state state
}

// Option configures an Engine.
type Option func(*Engine)

// WithAuthorizer sets where transaction certificates are submitted.
func WithAuthorizer(a Authorizer) Option {
	return func(e *Engine) { e.auth = a }
}

// WithClock sets the transaction timestamp source.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLabel sets the application label.
func WithLabel(label string) Option {
	return func(e *Engine) { e.label = label }
}

// WithATCAdvance controls whether GENERATE AC increments the card's ATC.
func WithATCAdvance(advance bool) Option {
	return func(e *Engine) { e.advanceATC = advance }
}

// WithCryptogramEngine replaces the default cryptogram engine.
func WithCryptogramEngine(c *cryptogram.Engine) Option {
	return func(e *Engine) { e.crypto = c }
}

// New returns an idle engine backed by the given stores.
func New(cards store.CardStore, txns store.TransactionStore, settings store.SettingsStore, opts ...Option) *Engine {
	e := &Engine{
		cards:      cards,
		txns:       txns,
		settings:   settings,
		clock:      clock.System{},
		label:      DefaultLabel,
		advanceATC: true,
		state:      idleState{},
	}
	for _, o := range opts {
		o(e)
	}
	if e.crypto == nil {
		e.crypto = cryptogram.NewEngine(cards)
	}

	return e
}

// Process answers one command frame. It always returns a well formed
// response APDU.
func (e *Engine) Process(frame []byte) (resp []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("event", "command_panic").
				Str("panic", fmt.Sprint(r)).
				Msg("recovered while processing command")
			resp = errorcodes.Sw6F00.Bytes()
		}
	}()

	cmd, err := apdu.ParseCommand(frame)
	if err != nil {
		log.Warn().Err(err).Str("event", "malformed_command").Msg("rejecting frame")

		return errorcodes.Sw6700.Bytes()
	}

	h, ok := lookup(cmd)
	if !ok {
		sw := errorcodes.Sw6E00
		if cmd.CLA == claISO || cmd.CLA == claProprietary {
			sw = errorcodes.Sw6D00
		}
		log.Warn().
			Str("event", "unknown_command").
			Str("command", cmd.String()).
			Msg("command not supported")

		return sw.Bytes()
	}

	from := e.state.phase()
	next, data, err := h.fn(e, e.state, cmd)
	if err != nil {
		sw := statusFor(err)
		log.Info().
			Err(err).
			Str("event", "command_rejected").
			Str("command", h.name).
			Str("phase", from.String()).
			Str("status", fmt.Sprintf("%04X", sw.Uint16())).
			Msg("command answered with error status")

		return sw.Bytes()
	}

	e.state = next
	log.Debug().
		Str("event", "command_processed").
		Str("command", h.name).
		Str("from", from.String()).
		Str("to", next.phase().String()).
		Msg("session advanced")

	return apdu.NewResponse(data, errorcodes.Sw9000).Bytes()
}

// Deactivate discards the session. In-flight authorizations are unaffected.
func (e *Engine) Deactivate() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, idle := e.state.(idleState); !idle {
		log.Info().
			Str("event", "deactivated").
			Str("phase", e.state.phase().String()).
			Msg("session cleared")
	}
	e.state = idleState{}
}

// Phase reports the current session phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state.phase()
}

// statusFor maps a handler error to the status word returned to the terminal.
func statusFor(err error) errorcodes.StatusWord {
	var sw errorcodes.StatusWord
	if errors.As(err, &sw) {
		return sw
	}

	log.Error().Err(err).Str("event", "internal_error").Msg("unexpected command failure")

	return errorcodes.Sw6F00
}
