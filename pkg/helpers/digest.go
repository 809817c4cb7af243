package helpers

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Digest returns the lowercase hex SHA-256 digest of a plaintext password.
// The digest is deterministic so stored values can be compared directly,
// which the change-password flow relies on.
func Digest(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// DigestEqual compares a stored digest with the digest of a plaintext
// candidate in constant time.
func DigestEqual(stored, plain string) bool {
	d := Digest(plain)
	return subtle.ConstantTimeCompare([]byte(stored), []byte(d)) == 1
}
