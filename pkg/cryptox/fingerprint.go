package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// KeySize is the byte length of generated master keys (256 bits).
const KeySize = 32

// Fingerprint returns a deterministic SHA-256 digest of s, base64url encoded
// (43 chars). Used wherever an identifier such as an e-mail address must be
// keyed in shared infrastructure without storing it in the clear.
func Fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// GenerateKey returns size random bytes encoded as base64url.
func GenerateKey(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("key size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
