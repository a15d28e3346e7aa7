package oauth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// decodeIdentityEmail extracts the account email from the payload
// segment of an ID token, trying the claims in order. Decoding is best
// effort: any malformed token yields "" rather than an error.
func decodeIdentityEmail(idToken string, claimOrder []string) string {
	claims := decodeClaims(idToken)
	if claims == nil {
		return ""
	}
	for _, name := range claimOrder {
		if v, ok := claims[name].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// decodeClaims decodes the second JWT segment. ID tokens use URL-safe
// base64 without padding; translate to the standard alphabet and re-pad
// before decoding.
func decodeClaims(idToken string) map[string]any {
	parts := strings.Split(idToken, ".")
	if len(parts) < 2 {
		return nil
	}

	seg := parts[1]
	seg = strings.ReplaceAll(seg, "-", "+")
	seg = strings.ReplaceAll(seg, "_", "/")
	if rem := len(seg) % 4; rem != 0 {
		seg += strings.Repeat("=", 4-rem)
	}

	raw, err := base64.StdEncoding.DecodeString(seg)
	if err != nil {
		return nil
	}

	var claims map[string]any
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil
	}
	return claims
}
