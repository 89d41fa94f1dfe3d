package nfc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/andrei-cloud/go_hce/pkg/cryptoutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type exchange struct {
	resp []byte
	err  error
}

// scriptedTransport replays canned replies and records what was sent.
type scriptedTransport struct {
	mu      sync.Mutex
	replies []exchange
	sent    [][]byte
	done    func()
}

func (s *scriptedTransport) Exchange(cmd []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent = append(s.sent, append([]byte(nil), cmd...))
	if len(s.replies) == 0 {
		if s.done != nil {
			s.done()
		}
		return nil, errors.New("no more replies")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]

	return r.resp, r.err
}

func hexBytes(t *testing.T, s string) []byte {
	t.Helper()

	b, err := cryptoutils.Str2Raw(s)
	require.NoError(t, err)

	return b
}

func TestPN532InitAsTargetFrame(t *testing.T) {
	t.Parallel()

	tr := &scriptedTransport{replies: []exchange{{resp: hexBytes(t, "D58D08E080")}}}
	first, err := NewPN532(tr).InitAsTarget()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xE0, 0x80}, first)

	require.Len(t, tr.sent, 1)
	sent := tr.sent[0]
	assert.Equal(t, []byte{0xFF, 0x00, 0x00, 0x00, 0x27, 0xD4, 0x8C, 0x05}, sent[:8])
	assert.Equal(t, []byte{0x04, 0x00, 0x08, 0x12, 0x34, 0x20}, sent[8:14])
	assert.Len(t, sent, 5+0x27)
}

func TestPN532Status(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		reply   string
		want    []byte
		wantErr error
	}{
		{"data", "D587000102", []byte{0x01, 0x02}, nil},
		{"released", "D58729", nil, ErrReleased},
		{"released with flags", "D58769", nil, ErrReleased},
		{"wrong code", "D58B00", nil, ErrFrame},
		{"short", "D5", nil, ErrFrame},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr := &scriptedTransport{replies: []exchange{{resp: hexBytes(t, tt.reply)}}}
			got, err := NewPN532(tr).GetData()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPN532SetDataError(t *testing.T) {
	t.Parallel()

	tr := &scriptedTransport{replies: []exchange{{resp: hexBytes(t, "D58F01")}}}
	err := NewPN532(tr).SetData([]byte{0x90, 0x00})
	assert.EqualError(t, err, "pn532 status 01")
	assert.Equal(t, hexBytes(t, "FF00000004D48E9000"), tr.sent[0])
}

func TestTrimStatus(t *testing.T) {
	t.Parallel()

	got, err := trimStatus([]byte{0xD5, 0x87, 0x00, 0x90, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xD5, 0x87, 0x00}, got)

	_, err = trimStatus([]byte{0x63, 0x00})
	assert.Error(t, err)
}

func TestPickReader(t *testing.T) {
	t.Parallel()

	readers := []string{"Generic Smart Card Reader", "ACS ACR122U PICC Interface 00 00"}

	got, err := pickReader(readers, "acr122")
	require.NoError(t, err)
	assert.Equal(t, readers[1], got)

	got, err = pickReader(readers, "")
	require.NoError(t, err)
	assert.Equal(t, readers[0], got)

	_, err = pickReader(nil, "")
	assert.ErrorIs(t, err, ErrNoReader)
	_, err = pickReader(readers, "omnikey")
	assert.ErrorIs(t, err, ErrNoReader)
}

type echoCard struct {
	mu          sync.Mutex
	commands    [][]byte
	deactivated int
}

func (c *echoCard) Process(frame []byte) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, frame)

	return []byte{0x90, 0x00}
}

func (c *echoCard) Deactivate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deactivated++
}

func TestEmulatorSession(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := &scriptedTransport{
		replies: []exchange{
			{resp: hexBytes(t, "D58D08E080")},       // activation, RATS handled by chip
			{resp: hexBytes(t, "D58700" + "00A4040000")}, // SELECT
			{resp: hexBytes(t, "D58F00")},
			{resp: hexBytes(t, "D58700" + "80A8000000")}, // GPO
			{resp: hexBytes(t, "D58F00")},
			{resp: hexBytes(t, "D58729")}, // released
		},
		done: cancel,
	}
	card := &echoCard{}
	var observed int
	e := NewEmulator(NewPN532(tr), card, func(_, _ []byte) { observed++ })
	e.backoff = time.Millisecond

	err := e.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	card.mu.Lock()
	defer card.mu.Unlock()
	require.Len(t, card.commands, 2)
	assert.Equal(t, hexBytes(t, "00A4040000"), card.commands[0])
	assert.Equal(t, hexBytes(t, "80A8000000"), card.commands[1])
	assert.Equal(t, 1, card.deactivated)
	assert.Equal(t, 2, observed)
}

func TestEmulatorFirstCommandFromActivation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := &scriptedTransport{
		replies: []exchange{
			{resp: hexBytes(t, "D58D08" + "00A4040000")},
			{resp: hexBytes(t, "D58F29")},
		},
		done: cancel,
	}
	card := &echoCard{}
	e := NewEmulator(NewPN532(tr), card, nil)
	e.backoff = time.Millisecond

	assert.ErrorIs(t, e.Run(ctx), context.Canceled)

	card.mu.Lock()
	defer card.mu.Unlock()
	require.Len(t, card.commands, 1)
	assert.Equal(t, 1, card.deactivated)
}
