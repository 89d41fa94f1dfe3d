package errorcodes

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusWord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		sw      StatusWord
		want    uint16
		text    string
		success bool
	}{
		{"success", Sw9000, 0x9000, "9000: Normal processing", true},
		{"wrong length", Sw6700, 0x6700, "6700: Wrong length", false},
		{"not found", Sw6A82, 0x6A82, "6A82: File or application not found", false},
		{"conditions", Sw6985, 0x6985, "6985: Conditions of use not satisfied", false},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.sw.Uint16())
			assert.Equal(t, tt.text, tt.sw.Error())
			assert.Equal(t, tt.success, tt.sw.IsSuccess())
			assert.Equal(t, []byte{byte(tt.want >> 8), byte(tt.want)}, tt.sw.Bytes())
		})
	}
}

func TestStatusWordAsError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("read record: %w", Sw6A83)

	var sw StatusWord
	assert.True(t, errors.As(err, &sw))
	assert.Equal(t, Sw6A83, sw)
	assert.ErrorIs(t, err, Sw6A83)
}

func TestLookup(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Sw6A86, Lookup(0x6A, 0x86))

	unknown := Lookup(0x63, 0xC1)
	assert.Equal(t, uint16(0x63C1), unknown.Uint16())
	assert.Equal(t, "Unknown status", unknown.Description)
}
