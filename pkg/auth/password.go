package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// PBKDF2 iteration count. Raising this invalidates no stored hashes
	// only because the salt is stored separately and hashes are recomputed
	// on the next password change.
	HashIterations = 210000
	HashKeyLength  = 32
	SaltLength     = 16 // bytes of randomness per salt
)

// HashPassword derives a deterministic salted digest from a plaintext
// password. Same (password, salt) pair always yields the same digest.
func HashPassword(password, salt string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	if salt == "" {
		return "", fmt.Errorf("salt cannot be empty")
	}
	key := pbkdf2.Key([]byte(password), []byte(salt), HashIterations, HashKeyLength, sha256.New)
	return hex.EncodeToString(key), nil
}

// VerifyPassword recomputes the digest and compares it in constant time.
func VerifyPassword(password, salt, storedHash string) bool {
	if password == "" || salt == "" || storedHash == "" {
		return false
	}
	computed, err := HashPassword(password, salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}

// GenerateSalt returns a fresh hex-encoded salt from crypto/rand.
func GenerateSalt() (string, error) {
	bytes := make([]byte, SaltLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
