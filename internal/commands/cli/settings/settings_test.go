package settings

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrei-cloud/go_hce/internal/store"
)

func TestApplyOnlyChangesGivenFields(t *testing.T) {
	t.Parallel()

	s := store.NewMemory()
	require.NoError(t, s.SaveSettings(store.Settings{ForceApproval: true}))

	on := true
	require.NoError(t, apply(s, change{biometric: &on}))

	st, err := s.Settings()
	require.NoError(t, err)
	assert.True(t, st.ForceApproval)
	assert.True(t, st.BiometricRequired)

	off := false
	require.NoError(t, apply(s, change{forceApproval: &off}))
	st, err = s.Settings()
	require.NoError(t, err)
	assert.False(t, st.ForceApproval)
	assert.True(t, st.BiometricRequired)
}

func TestShow(t *testing.T) {
	t.Parallel()

	s := store.NewMemory()
	var out bytes.Buffer
	require.NoError(t, show(&out, s, s))
	assert.Contains(t, out.String(), "Active card:        none")

	card := store.Card{PAN: "4111111111111111", Expiry: "12/29", CVV: "123", Enabled: true}
	require.NoError(t, s.SaveCard(&card))
	require.NoError(t, s.SaveSettings(store.Settings{ActiveCardID: card.ID, ForceApproval: true}))

	out.Reset()
	require.NoError(t, show(&out, s, s))
	assert.Contains(t, out.String(), "1 (VISA 411111******1111)")
	assert.Contains(t, out.String(), "Force approval:     true")
}
