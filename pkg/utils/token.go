package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// RandomToken returns a URL-safe high-entropy token of n random bytes.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
