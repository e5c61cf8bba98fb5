package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestCredentialCipher_RoundTrip(t *testing.T) {
	c, err := NewCredentialCipher(testKey)
	require.NoError(t, err)
	require.True(t, c.Enabled())

	sealed, err := c.Seal("s3cret", "dev_abc")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, sealedPrefix))
	assert.NotContains(t, sealed, "s3cret")

	plain, err := c.Open(sealed, "dev_abc")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", plain)
}

func TestCredentialCipher_BoundToOwner(t *testing.T) {
	c, err := NewCredentialCipher(testKey)
	require.NoError(t, err)

	sealed, err := c.Seal("s3cret", "dev_abc")
	require.NoError(t, err)

	_, err = c.Open(sealed, "dev_other")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestCredentialCipher_PassThrough(t *testing.T) {
	c, err := NewCredentialCipher("")
	require.NoError(t, err)
	assert.False(t, c.Enabled())

	sealed, err := c.Seal("plain", "x")
	require.NoError(t, err)
	assert.Equal(t, "plain", sealed)

	keyed, err := NewCredentialCipher(testKey)
	require.NoError(t, err)
	enc, err := keyed.Seal("plain", "x")
	require.NoError(t, err)

	_, err = c.Open(enc, "x")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestCredentialCipher_LegacyPlaintext(t *testing.T) {
	c, err := NewCredentialCipher(testKey)
	require.NoError(t, err)

	plain, err := c.Open("legacy-password", "dev_abc")
	require.NoError(t, err)
	assert.Equal(t, "legacy-password", plain)
}

func TestNewCredentialCipher_BadKey(t *testing.T) {
	_, err := NewCredentialCipher("zz")
	assert.Error(t, err)
	_, err = NewCredentialCipher("abcd")
	assert.Error(t, err)
}
