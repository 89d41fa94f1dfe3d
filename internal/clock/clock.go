// Package clock supplies transaction timestamps, optionally corrected by NTP.
package clock

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/beevik/ntp"
	"github.com/rs/zerolog/log"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// System is the local wall clock.
type System struct{}

// Now implements Clock.
func (System) Now() time.Time { return time.Now() }

// Fixed always returns the same instant. Used in tests.
type Fixed time.Time

// Now implements Clock.
func (f Fixed) Now() time.Time { return time.Time(f) }

// Func adapts a function to Clock.
type Func func() time.Time

// Now implements Clock.
func (f Func) Now() time.Time { return f() }

// queryFunc matches ntp.Query.
type queryFunc func(host string) (*ntp.Response, error)

// NTP is the local clock shifted by the offset measured against an NTP server.
type NTP struct {
	server string
	offset atomic.Int64 // nanoseconds
	query  queryFunc
}

// NewNTP returns an NTP clock for server. Call Sync to measure the offset;
// until then it behaves like System.
func NewNTP(server string) *NTP {
	return &NTP{server: server, query: ntp.Query}
}

// Sync queries the server and stores the clock offset.
func (n *NTP) Sync() error {
	resp, err := n.query(n.server)
	if err != nil {
		return fmt.Errorf("failed to query NTP server %s: %w", n.server, err)
	}
	if err := resp.Validate(); err != nil {
		return fmt.Errorf("invalid NTP response from %s: %w", n.server, err)
	}

	n.offset.Store(int64(resp.ClockOffset))
	log.Info().
		Str("event", "ntp_synced").
		Str("server", n.server).
		Dur("offset", resp.ClockOffset).
		Msg("clock offset measured")

	return nil
}

// Offset returns the last measured offset.
func (n *NTP) Offset() time.Duration {
	return time.Duration(n.offset.Load())
}

// Now implements Clock.
func (n *NTP) Now() time.Time {
	return time.Now().Add(n.Offset())
}

// New returns an NTP clock when server is set, falling back to System with a
// warning when the server cannot be reached.
func New(server string) Clock {
	if server == "" {
		return System{}
	}

	c := NewNTP(server)
	if err := c.Sync(); err != nil {
		log.Warn().Err(err).Str("event", "ntp_fallback").Msg("using system clock")

		return System{}
	}

	return c
}
