package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Hash returns the hex-encoded SHA-256 digest of token.
func Hash(token string) string {
	return HashBytes([]byte(token))
}

// HashBytes returns the hex-encoded SHA-256 digest of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verify reports whether token hashes to expectedHash. The comparison
// is constant-time.
func Verify(token, expectedHash string) bool {
	return VerifyBytes([]byte(token), expectedHash)
}

// VerifyBytes reports whether data hashes to expectedHash. The
// comparison is constant-time.
func VerifyBytes(data []byte, expectedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashBytes(data)), []byte(expectedHash)) == 1
}
