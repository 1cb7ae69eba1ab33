package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// TokenSecretPrefix marks secrets issued by this service: rst_<64 hex chars>
	TokenSecretPrefix = "rst_"
	tokenSecretBytes  = 32 // 256 bits of entropy
)

// GenerateTokenSecret returns a new opaque API token secret. Secrets are
// always generated server-side; client-supplied values are never accepted.
func GenerateTokenSecret() (string, error) {
	randomBytes := make([]byte, tokenSecretBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate token secret: %w", err)
	}
	return TokenSecretPrefix + hex.EncodeToString(randomBytes), nil
}

// ValidTokenSecretFormat reports whether s looks like a secret this
// service issued.
func ValidTokenSecretFormat(s string) bool {
	return strings.HasPrefix(s, TokenSecretPrefix) &&
		len(s) == len(TokenSecretPrefix)+tokenSecretBytes*2
}
