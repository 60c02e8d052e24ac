package token

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte("dev-secret-do-not-use-in-prod"))
	require.NoError(t, err)
	return signed
}

func TestDecodePayloadMalformed(t *testing.T) {
	tests := []struct {
		name string
		tok  string
	}{
		{"empty string", ""},
		{"no dots", "notatoken"},
		{"one dot", "header.payload"},
		{"three dots", "a.b.c.d"},
		{"payload not base64", "a.!!!!.c"},
		{"payload not json object", "a." + base64.RawURLEncoding.EncodeToString([]byte("[1,2,3]")) + ".c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodePayload(tt.tok); got != nil {
				t.Errorf("DecodePayload(%q) = %v, want nil", tt.tok, got)
			}
		})
	}
}

func TestDecodePayloadRoundTrip(t *testing.T) {
	claims := jwt.MapClaims{
		"sub":    "wudao",
		"scopes": []string{"inbox:read", "admin:full"},
		"exp":    float64(1893456000),
	}

	decoded := DecodePayload(mintToken(t, claims))
	require.NotNil(t, decoded)

	assert.Equal(t, "wudao", decoded["sub"])
	assert.Equal(t, float64(1893456000), decoded["exp"])
	assert.Equal(t, []any{"inbox:read", "admin:full"}, decoded["scopes"])
}

// Payload lengths that need 0-3 padding characters all decode back to the
// original claims.
func TestDecodePayloadPaddingWidths(t *testing.T) {
	for _, sub := range []string{"a", "ab", "abc", "abcd", "abcde"} {
		payload, err := json.Marshal(map[string]any{"sub": sub})
		require.NoError(t, err)

		tok := "h." + base64.RawURLEncoding.EncodeToString(payload) + ".s"
		decoded := DecodePayload(tok)
		require.NotNil(t, decoded, "sub=%q", sub)
		assert.Equal(t, sub, decoded["sub"])
	}
}

func TestPadIdempotent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"a", "a==="},
		{"ab", "ab=="},
		{"abc", "abc="},
		{"abcd", "abcd"},
		{"abc=", "abc="},
		{"ab==", "ab=="},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Pad(tt.in), "Pad(%q)", tt.in)
		assert.Equal(t, tt.want, Pad(Pad(tt.in)), "Pad(Pad(%q))", tt.in)
	}
}

// Tokens with an already-padded payload segment still decode.
func TestDecodePayloadAcceptsPaddedSegment(t *testing.T) {
	payload := base64.URLEncoding.EncodeToString([]byte(`{"sub":"x"}`))
	decoded := DecodePayload("h." + payload + ".s")
	require.NotNil(t, decoded)
	assert.Equal(t, "x", decoded["sub"])
}

func TestScopes(t *testing.T) {
	decoded := DecodePayload(mintToken(t, jwt.MapClaims{
		"scopes": []string{"inbox:read", "admin:full"},
	}))
	require.NotNil(t, decoded)

	assert.Equal(t, []string{"inbox:read", "admin:full"}, Scopes(decoded))
	assert.True(t, HasScope(decoded, "admin:full"))
	assert.False(t, HasScope(decoded, "admin:none"))
}

func TestScopesAbsentOrWrongShape(t *testing.T) {
	assert.Nil(t, Scopes(nil))
	assert.Nil(t, Scopes(map[string]any{"sub": "wudao"}))
	assert.Nil(t, Scopes(map[string]any{"scopes": "admin:full"}))
	assert.False(t, HasScope(map[string]any{"sub": "wudao"}, "admin:full"))
}
