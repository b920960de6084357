package oauth

import (
	"crypto/rand"
	"encoding/hex"
	"io"
)

// GenerateState creates a cryptographically secure random state string
// for CSRF protection in the authorization request.
// Returns a 32-byte hex-encoded string (64 characters).
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
