package signing

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// Digest returns base64url(SHA-256(payload)) without padding.
func Digest(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// DigestMatches recomputes the digest of payload and compares it to the
// client-supplied value.
func DigestMatches(payload, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(Digest(payload)), []byte(digest)) == 1
}
