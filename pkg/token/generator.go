package token

import (
	"crypto/rand"
	"encoding/base64"
)

// DefaultLength is the entropy, in bytes, behind a token from Generate.
const DefaultLength = 32

// Generate returns a random token with DefaultLength bytes of entropy.
func Generate() (string, error) {
	return GenerateWithLength(DefaultLength)
}

// GenerateWithLength returns a random token backed by length bytes of
// entropy.
func GenerateWithLength(length int) (string, error) {
	raw, err := GenerateBytes(length)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// GenerateBytes returns length bytes from the system CSPRNG.
func GenerateBytes(length int) ([]byte, error) {
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	return raw, nil
}
