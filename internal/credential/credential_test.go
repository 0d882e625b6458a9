package credential

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueRoundTrip(t *testing.T) {
	issuer := NewIssuer(DefaultQRSize)

	cred, err := issuer.Issue("ticket-1", "user-1", "event-1")
	require.NoError(t, err)

	claims, err := Decode(cred.Payload)
	require.NoError(t, err)
	assert.Equal(t, "ticket-1", claims.TicketID)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "event-1", claims.EventID)
	assert.NotEmpty(t, claims.Nonce)

	assert.True(t, strings.HasPrefix(cred.QRCode, "data:image/png;base64,"))
}

func TestIssueCredentialsAreUnique(t *testing.T) {
	issuer := NewIssuer(0) // zero falls back to the default size

	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		// Same ticket identity on purpose; the nonce alone must keep
		// credentials distinct.
		cred, err := issuer.Issue("ticket-1", "user-1", "event-1")
		require.NoError(t, err)

		_, dup := seen[cred.Payload]
		assert.False(t, dup, "duplicate credential issued")
		seen[cred.Payload] = struct{}{}
	}
}

func TestDecodeRejectsMalformedPayloads(t *testing.T) {
	_, err := Decode("not-json")
	assert.Error(t, err)

	_, err = Decode(`{"user_id":"u1"}`)
	assert.Error(t, err, "missing ticket and event identity")
}
