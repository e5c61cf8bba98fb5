package id

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	// Base62 alphabet: 0-9, A-Z, a-z
	alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	DefaultLength = 12
)

// Prefixes for externally visible identifiers (Stripe-style).
const (
	PrefixDevice = "dev"
)

// Generate creates a cryptographically random Base62 string.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}

	result := make([]byte, length)
	alphabetLen := big.NewInt(int64(len(alphabet)))
	for i := range result {
		num, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		result[i] = alphabet[num.Int64()]
	}

	return string(result), nil
}

// NewDeviceID returns an identifier like "dev_xK9mP2vL3nQa".
func NewDeviceID() (string, error) {
	s, err := Generate(DefaultLength)
	if err != nil {
		return "", err
	}
	return PrefixDevice + "_" + s, nil
}

// ValidatePrefixed reports whether sid has the given prefix and a Base62 body.
func ValidatePrefixed(prefix, sid string) bool {
	body, ok := strings.CutPrefix(sid, prefix+"_")
	if !ok || body == "" {
		return false
	}
	for _, c := range body {
		if !strings.ContainsRune(alphabet, c) {
			return false
		}
	}
	return true
}
