package apdu

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/andrei-cloud/go_hce/internal/errorcodes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()

	b, err := hex.DecodeString(s)
	require.NoError(t, err)

	return b
}

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		frame   string
		want    Command
		wantErr bool
	}{
		{
			name:  "case 1 header only",
			frame: "00B20114",
			want:  Command{CLA: 0x00, INS: 0xB2, P1: 0x01, P2: 0x14},
		},
		{
			name:  "case 2 header and le",
			frame: "00B201140A",
			want:  Command{CLA: 0x00, INS: 0xB2, P1: 0x01, P2: 0x14, Le: 0x0A, HasLe: true},
		},
		{
			name:  "case 2 le zero kept raw",
			frame: "00B2010C00",
			want:  Command{CLA: 0x00, INS: 0xB2, P1: 0x01, P2: 0x0C, Le: 0x00, HasLe: true},
		},
		{
			name:  "case 3 data without le",
			frame: "00A4040007A0000000031010",
			want: Command{
				CLA: 0x00, INS: 0xA4, P1: 0x04, P2: 0x00,
				Data: []byte{0xA0, 0x00, 0x00, 0x00, 0x03, 0x10, 0x10},
			},
		},
		{
			name:  "case 4 data and le",
			frame: "00A4040007A000000003101000",
			want: Command{
				CLA: 0x00, INS: 0xA4, P1: 0x04, P2: 0x00,
				Data:  []byte{0xA0, 0x00, 0x00, 0x00, 0x03, 0x10, 0x10},
				Le:    0x00,
				HasLe: true,
			},
		},
		{
			name:  "trailing bytes beyond one are not le",
			frame: "80A800000283000000",
			want: Command{
				CLA: 0x80, INS: 0xA8, P1: 0x00, P2: 0x00,
				Data: []byte{0x83, 0x00},
			},
		},
		{
			name:  "lc zero",
			frame: "80CA9F3600",
			want:  Command{CLA: 0x80, INS: 0xCA, P1: 0x9F, P2: 0x36, Le: 0x00, HasLe: true},
		},
		{
			name:  "lc zero with le",
			frame: "80CA9F360000",
			want:  Command{CLA: 0x80, INS: 0xCA, P1: 0x9F, P2: 0x36, Le: 0x00, HasLe: true},
		},
		{name: "empty", frame: "", wantErr: true},
		{name: "three bytes", frame: "00A404", wantErr: true},
		{name: "lc exceeds buffer", frame: "00A4040007A000000003", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseCommand(mustHex(t, tt.frame))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformed)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommandRoundTrip(t *testing.T) {
	t.Parallel()

	for _, frame := range []string{"00B20114", "00B2011400", "80AE80000800000000DEADBEEF00"} {
		cmd, err := ParseCommand(mustHex(t, frame))
		require.NoError(t, err)

		raw, err := cmd.Bytes()
		require.NoError(t, err)
		assert.Equal(t, frame, strings.ToUpper(hex.EncodeToString(raw)))
	}
}

func TestCommandNe(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, NewCommand(0x00, 0xA4, 0x04, 0x00, nil, 0).Ne())
	assert.Equal(t, 256, NewCommand(0x00, 0xA4, 0x04, 0x00, nil, 256).Ne())
	assert.Equal(t, 16, NewCommand(0x00, 0xA4, 0x04, 0x00, nil, 16).Ne())
}

func TestCommandBytesRejectsExtended(t *testing.T) {
	t.Parallel()

	_, err := NewCommand(0x80, 0xA8, 0x00, 0x00, make([]byte, 256), 0).Bytes()
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestResponse(t *testing.T) {
	t.Parallel()

	resp := NewResponse([]byte{0x6F, 0x00}, errorcodes.Sw9000)
	assert.Equal(t, []byte{0x6F, 0x00, 0x90, 0x00}, resp.Bytes())
	assert.Equal(t, []byte{0x69, 0x85}, StatusOnly(errorcodes.Sw6985).Bytes())

	parsed, err := ParseResponse([]byte{0x01, 0x02, 0x6A, 0x82})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, parsed.Data)
	assert.Equal(t, errorcodes.Sw6A82, parsed.Status)

	_, err = ParseResponse([]byte{0x90})
	assert.ErrorIs(t, err, ErrMalformed)
}
