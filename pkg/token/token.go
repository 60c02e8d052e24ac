// Package token inspects JWT payloads without verifying signatures. The probe
// only needs to see what the frontend stored, never to trust it.
package token

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// DecodePayload splits a compact JWT on '.' and decodes the middle segment as
// a JSON object. Anything that is not exactly three segments, or whose payload
// does not decode to a JSON object, returns nil.
func DecodePayload(tok string) map[string]any {
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return nil
	}

	raw, err := decodeSegment(parts[1])
	if err != nil {
		return nil
	}

	var claims map[string]any
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil
	}
	return claims
}

// decodeSegment decodes one base64url segment, padding it to a multiple of 4
// first. Some issuers emit the standard alphabet, so fall back to that.
func decodeSegment(seg string) ([]byte, error) {
	seg = Pad(seg)
	raw, err := base64.URLEncoding.DecodeString(seg)
	if err == nil {
		return raw, nil
	}
	return base64.StdEncoding.DecodeString(seg)
}

// Pad appends '=' until the string length is a multiple of 4. Already-padded
// input is returned unchanged.
func Pad(s string) string {
	if m := len(s) % 4; m != 0 {
		return s + strings.Repeat("=", 4-m)
	}
	return s
}

// Scopes extracts the "scopes" collection from a decoded payload. Returns nil
// when the field is absent or not a list of strings.
func Scopes(claims map[string]any) []string {
	if claims == nil {
		return nil
	}
	list, ok := claims["scopes"].([]any)
	if !ok {
		return nil
	}
	scopes := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			scopes = append(scopes, s)
		}
	}
	return scopes
}

// HasScope reports whether the decoded payload grants the given scope.
func HasScope(claims map[string]any, scope string) bool {
	for _, s := range Scopes(claims) {
		if s == scope {
			return true
		}
	}
	return false
}
