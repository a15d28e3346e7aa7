package oauth

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testClaimOrder = []string{"email", "preferred_username", "upn"}

// fakeIDToken assembles header.payload.signature with the given claims.
func fakeIDToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	return "eyJhbGciOiJub25lIn0." +
		base64.RawURLEncoding.EncodeToString(payload) +
		".sig"
}

func TestDecodeIdentityEmail(t *testing.T) {
	tests := []struct {
		name   string
		claims map[string]any
		want   string
	}{
		{"email claim wins", map[string]any{
			"email": "a@b.c", "preferred_username": "x@y.z", "upn": "u@p.n",
		}, "a@b.c"},
		{"falls back to preferred_username", map[string]any{
			"preferred_username": "x@y.z", "upn": "u@p.n",
		}, "x@y.z"},
		{"falls back to upn", map[string]any{"upn": "u@p.n"}, "u@p.n"},
		{"empty string claim skipped", map[string]any{
			"email": "", "upn": "u@p.n",
		}, "u@p.n"},
		{"non-string claim skipped", map[string]any{
			"email": 42, "upn": "u@p.n",
		}, "u@p.n"},
		{"no usable claim", map[string]any{"sub": "12345"}, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tok := fakeIDToken(t, tc.claims)
			assert.Equal(t, tc.want, decodeIdentityEmail(tok, testClaimOrder))
		})
	}
}

func TestDecodeIdentityEmailMalformed(t *testing.T) {
	assert.Empty(t, decodeIdentityEmail("", testClaimOrder))
	assert.Empty(t, decodeIdentityEmail("single-segment", testClaimOrder))
	assert.Empty(t, decodeIdentityEmail("a.!!!notbase64!!!.b", testClaimOrder))

	notJSON := "h." + base64.RawURLEncoding.EncodeToString([]byte("plain text")) + ".s"
	assert.Empty(t, decodeIdentityEmail(notJSON, testClaimOrder))
}

func TestDecodeClaimsHandlesURLSafeAlphabet(t *testing.T) {
	// Force bytes whose base64 uses '-' and '_' and needs re-padding.
	claims := map[string]any{"email": "a+b/c@example.com", "pad": "??>"}
	got := decodeClaims(fakeIDToken(t, claims))
	require.NotNil(t, got)
	assert.Equal(t, "a+b/c@example.com", got["email"])
}
