// Package app wires configuration into the stores, clock and card engine
// shared by the CLI commands.
package app

import (
	"fmt"
	"io"

	"github.com/andrei-cloud/go_hce/internal/authorization"
	"github.com/andrei-cloud/go_hce/internal/clock"
	"github.com/andrei-cloud/go_hce/internal/config"
	"github.com/andrei-cloud/go_hce/internal/hce"
	"github.com/andrei-cloud/go_hce/internal/store"
)

// OpenStore opens the configured data directory, sealing card secrets when
// store.key is set.
func OpenStore(cfg *config.Config) (*store.Store, error) {
	var opts []store.Option
	if cfg.Store.Key != "" {
		sealer, err := store.NewSealer(cfg.Store.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sealer: %w", err)
		}
		opts = append(opts, store.WithSealer(sealer))
	}

	s, err := store.Open(cfg.Store.Path, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	return s, nil
}

// Card bundles the emulated card with its authorization dispatcher.
type Card struct {
	Store      *store.Store
	Engine     *hce.Engine
	Dispatcher *authorization.Dispatcher
}

// Results prints every completed authorization to out.
func (c *Card) Results(out io.Writer) {
	c.Dispatcher.Subscribe(func(ev authorization.Event) {
		t := ev.Transaction
		fmt.Fprintf(out, "transaction %s %s: %s %s", t.ID, t.Status, t.ResponseCode, t.ResponseMessage)
		if t.AuthorizationCode != "" {
			fmt.Fprintf(out, " (auth code %s)", t.AuthorizationCode)
		}
		fmt.Fprintln(out)
	})
}

// Close waits for in-flight authorizations.
func (c *Card) Close() {
	c.Dispatcher.Wait()
}

// NewCard builds the card engine from cfg.
func NewCard(cfg *config.Config) (*Card, error) {
	s, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	network := authorization.NewNetwork(authorization.WithLatency(authorization.Latency{
		Min: cfg.Authorization.MinDelay,
		Max: cfg.Authorization.MaxDelay,
	}))
	dispatcher := authorization.NewDispatcher(network, s, cfg.Authorization.Timeout)
	engine := hce.New(s, s, s,
		hce.WithAuthorizer(dispatcher),
		hce.WithClock(clock.New(cfg.Clock.NTPServer)),
		hce.WithLabel(cfg.Card.Label),
		hce.WithATCAdvance(cfg.Card.AdvanceATC),
	)

	return &Card{Store: s, Engine: engine, Dispatcher: dispatcher}, nil
}
