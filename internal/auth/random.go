package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// RandomID returns an unguessable URL-safe string of exactly length characters.
func RandomID(length int) (string, error) {
	buf := make([]byte, (length*6+7)/8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)[:length], nil
}
