package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
)

// Token format: ms_{prefix}_{secret}
// Example: ms_7a9c3f01_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b9c7a5f3d
const (
	TokenPrefixLen = 8  // hex encoded 4 bytes
	TokenSecretLen = 40 // hex encoded 20 bytes
)

var (
	// ErrInvalidTokenFormat indicates the bearer token is malformed.
	ErrInvalidTokenFormat = errors.New("invalid session token format")

	tokenFormatRegex = regexp.MustCompile(`^ms_([a-f0-9]{8})_([a-f0-9]{40})$`)
)

// GeneratedToken contains the parts of a newly issued session token.
type GeneratedToken struct {
	Plaintext string // returned to the client once
	Hash      string // Argon2id hash for storage
	Prefix    string // lookup prefix
	CacheKey  string // QuickHash of the plaintext
}

// GenerateSessionToken issues a new opaque bearer token.
func GenerateSessionToken() (*GeneratedToken, error) {
	return generateSessionToken(HashPassword)
}

func generateSessionToken(hash func(string) (string, error)) (*GeneratedToken, error) {
	prefixBytes := make([]byte, TokenPrefixLen/2)
	if _, err := rand.Read(prefixBytes); err != nil {
		return nil, fmt.Errorf("generate prefix: %w", err)
	}
	secretBytes := make([]byte, TokenSecretLen/2)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	prefix := hex.EncodeToString(prefixBytes)
	plaintext := fmt.Sprintf("ms_%s_%s", prefix, hex.EncodeToString(secretBytes))

	hashed, err := hash(plaintext)
	if err != nil {
		return nil, fmt.Errorf("hash token: %w", err)
	}

	return &GeneratedToken{
		Plaintext: plaintext,
		Hash:      hashed,
		Prefix:    prefix,
		CacheKey:  QuickHash(plaintext),
	}, nil
}

// ParseSessionToken returns the lookup prefix of a bearer token.
func ParseSessionToken(token string) (string, error) {
	m := tokenFormatRegex.FindStringSubmatch(token)
	if m == nil {
		return "", ErrInvalidTokenFormat
	}
	return m[1], nil
}

// GenerateSessionTokenWithParams issues a token hashed with explicit cost
// parameters.
func GenerateSessionTokenWithParams(p Params) (*GeneratedToken, error) {
	return generateSessionToken(func(s string) (string, error) {
		return HashWithParams(s, p)
	})
}
