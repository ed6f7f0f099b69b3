package auth

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidPINFormat is returned for anything but exactly four digits.
var ErrInvalidPINFormat = errors.New("security PIN must be exactly 4 digits")

var pinRegex = regexp.MustCompile(`^[0-9]{4}$`)

// NormalizePIN trims surrounding whitespace and validates the PIN.
func NormalizePIN(pin string) (string, error) {
	pin = strings.TrimSpace(pin)
	if !pinRegex.MatchString(pin) {
		return "", ErrInvalidPINFormat
	}
	return pin, nil
}

// HashPIN validates and hashes a security PIN.
func HashPIN(pin string) (string, error) {
	normalized, err := NormalizePIN(pin)
	if err != nil {
		return "", err
	}
	return HashPassword(normalized)
}

// VerifyPIN compares a candidate PIN against the stored hash.
// A malformed candidate never matches.
func VerifyPIN(pin, encodedHash string) (bool, error) {
	normalized, err := NormalizePIN(pin)
	if err != nil {
		return false, nil
	}
	return VerifyPassword(normalized, encodedHash)
}
