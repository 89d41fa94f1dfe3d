package authorization

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/andrei-cloud/go_hce/internal/emv"
	"github.com/andrei-cloud/go_hce/pkg/cryptoutils"
	"github.com/rs/zerolog/log"
)

const authCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// declineWeights are cumulative percentages over all declines.
var declineWeights = []struct {
	below int
	code  string
}{
	{50, CodeInsufficientFunds},
	{70, CodeSuspectedFraud},
	{80, CodeExpiredCard},
	{85, CodeRestrictedCard},
	{90, CodeLostCard},
	{95, CodeStolenCard},
	{100, CodeProcessingError},
}

// Latency bounds a simulated network round trip.
type Latency struct {
	Min time.Duration
	Max time.Duration
}

// Network is a simulated payment network.
type Network struct {
	latency      Latency
	forceLatency Latency

	mu  sync.Mutex
	rnd *rand.Rand
}

// NetworkOption configures a Network.
type NetworkOption func(*Network)

// WithLatency sets the delay range for regular authorizations.
func WithLatency(l Latency) NetworkOption {
	return func(n *Network) { n.latency = l }
}

// WithForceLatency sets the delay range for forced approvals.
func WithForceLatency(l Latency) NetworkOption {
	return func(n *Network) { n.forceLatency = l }
}

// WithSource seeds the decision source.
func WithSource(src rand.Source) NetworkOption {
	return func(n *Network) { n.rnd = rand.New(src) }
}

// NewNetwork returns a simulated network with the default latencies.
func NewNetwork(opts ...NetworkOption) *Network {
	n := &Network{
		latency:      Latency{Min: 300 * time.Millisecond, Max: 1500 * time.Millisecond},
		forceLatency: Latency{Min: 200 * time.Millisecond, Max: 500 * time.Millisecond},
		rnd:          rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, o := range opts {
		o(n)
	}

	return n
}

// Authorize implements Client.
func (n *Network) Authorize(ctx context.Context, s Snapshot) (Result, error) {
	network := networkOf(s.AID)
	log.Debug().
		Str("event", "authorization_requested").
		Str("transaction_id", s.TransactionID).
		Uint64("amount", s.Amount).
		Str("network", network).
		Msg("authorizing transaction")

	if err := n.sleep(ctx, n.latency); err != nil {
		return Result{}, err
	}

	n.mu.Lock()
	approved := n.rnd.IntN(100) < approvalRate(s.Amount)
	res := Result{Approved: approved, Network: network, ResponseCode: CodeApproved}
	if approved {
		res.AuthorizationCode = n.authCode()
	} else {
		res.ResponseCode = n.declineCode()
	}
	n.mu.Unlock()

	res.ResponseMessage = Message(res.ResponseCode)

	return res, nil
}

// ForceApprove implements Client.
func (n *Network) ForceApprove(ctx context.Context, s Snapshot) (Result, error) {
	if err := n.sleep(ctx, n.forceLatency); err != nil {
		return Result{}, err
	}

	n.mu.Lock()
	code := n.authCode()
	n.mu.Unlock()

	return Result{
		Approved:          true,
		ResponseCode:      CodeApproved,
		ResponseMessage:   "Approved (Forced)",
		AuthorizationCode: code,
		Network:           networkOf(s.AID),
	}, nil
}

func (n *Network) sleep(ctx context.Context, l Latency) error {
	d := l.Min
	if l.Max > l.Min {
		n.mu.Lock()
		d += time.Duration(n.rnd.Int64N(int64(l.Max - l.Min)))
		n.mu.Unlock()
	}
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// authCode and declineCode must be called with n.mu held.
func (n *Network) authCode() string {
	var sb strings.Builder
	for range 6 {
		sb.WriteByte(authCodeAlphabet[n.rnd.IntN(len(authCodeAlphabet))])
	}

	return sb.String()
}

func (n *Network) declineCode() string {
	r := n.rnd.IntN(100)
	for _, w := range declineWeights {
		if r < w.below {
			return w.code
		}
	}

	return CodeProcessingError
}

// approvalRate is the percentage of approvals for an amount in minor units.
func approvalRate(amount uint64) int {
	switch {
	case amount < 1000:
		return 95
	case amount < 5000:
		return 85
	case amount < 10000:
		return 70
	default:
		return 50
	}
}

func networkOf(aidHex string) string {
	aid, err := cryptoutils.Str2Raw(aidHex)
	if err != nil {
		return emv.NetworkUnknown
	}

	return emv.NetworkForAID(aid)
}
