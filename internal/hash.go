package internal

import (
	"crypto/sha256"
	"encoding/base64"
)

// HashToken digests a refresh token for storage. Only this digest is
// persisted; a store dump cannot be replayed as tokens.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
