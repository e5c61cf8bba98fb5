// Package security seals device credentials at rest.
package security

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// sealedPrefix marks values produced by CredentialCipher.Seal.
const sealedPrefix = "enc:v1:"

var ErrInvalidCiphertext = errors.New("invalid sealed credential")

// CredentialCipher encrypts device passwords with XChaCha20-Poly1305. A
// cipher without a key passes values through unchanged.
type CredentialCipher struct {
	aead cipher.AEAD
}

// NewCredentialCipher builds a cipher from a hex encoded 32 byte key. An
// empty key yields a pass-through cipher.
func NewCredentialCipher(hexKey string) (*CredentialCipher, error) {
	if hexKey == "" {
		return &CredentialCipher{}, nil
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode credential key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init credential cipher: %w", err)
	}
	return &CredentialCipher{aead: aead}, nil
}

// Enabled reports whether values are actually encrypted.
func (c *CredentialCipher) Enabled() bool {
	return c.aead != nil
}

// Seal encrypts plaintext. The additional data binds the value to its owner
// so a sealed password cannot be moved to another device row.
func (c *CredentialCipher) Seal(plaintext, owner string) (string, error) {
	if c.aead == nil || plaintext == "" {
		return plaintext, nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out := c.aead.Seal(nonce, nonce, []byte(plaintext), []byte(owner))
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal. Unsealed values are returned as is,
// which keeps rows written before a key was configured readable.
func (c *CredentialCipher) Open(value, owner string) (string, error) {
	body, sealed := strings.CutPrefix(value, sealedPrefix)
	if !sealed {
		return value, nil
	}
	if c.aead == nil {
		return "", fmt.Errorf("%w: no credential key configured", ErrInvalidCiphertext)
	}
	raw, err := base64.RawStdEncoding.DecodeString(body)
	if err != nil || len(raw) < c.aead.NonceSize() {
		return "", ErrInvalidCiphertext
	}
	nonce, ct := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	pt, err := c.aead.Open(nil, nonce, ct, []byte(owner))
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(pt), nil
}
