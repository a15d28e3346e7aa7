package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// verifierBytes is the amount of raw randomness behind a PKCE verifier.
// RFC 7636 allows up to 128 characters; 64 bytes encode to 86.
const verifierBytes = 64

// newVerifier generates a PKCE code verifier from 64 random bytes,
// encoded with unpadded URL-safe base64.
func newVerifier() (string, error) {
	buf := make([]byte, verifierBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating PKCE verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// challengeS256 derives the S256 code challenge for a verifier:
// unpadded URL-safe base64 of its SHA-256 digest.
func challengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// newState generates the opaque state token bound to one authorization
// round trip.
func newState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating state token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
