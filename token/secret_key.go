package token

import (
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
)

// SecretKey is the HMAC signing secret scoped to exactly one session id.
// Compromise of one key cannot forge tokens for any other session, and
// deleting it revokes the session regardless of token expiry.
type SecretKey string

// NewSecretKey generates a fresh key from 256 bits of system entropy,
// hashed with SHA-512 and base64-encoded. Entropy exhaustion is not a
// recoverable condition, so failure panics.
func NewSecretKey() SecretKey {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		panic(fmt.Sprintf("token: read entropy for secret key: %v", err))
	}

	sum := sha512.Sum512(seed[:])

	return SecretKey(base64.RawURLEncoding.EncodeToString(sum[:]))
}
