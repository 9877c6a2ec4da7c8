package security

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phantomlaunch/identity-server/internal/model"
)

func testKey() string {
	return strings.Repeat("ab", 32)
}

func TestNewKeyCipher_InvalidKey(t *testing.T) {
	_, err := NewKeyCipher("not-hex")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrMisconfigured))

	_, err = NewKeyCipher("abcd")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrMisconfigured))
}

func TestKeyCipher_RoundTrip(t *testing.T) {
	c, err := NewKeyCipher(testKey())
	require.NoError(t, err)

	plaintext := []byte("super-secret-private-key-bytes--")
	ciphertext, nonce, tag, err := c.Encrypt(plaintext)
	require.NoError(t, err)
	assert.Len(t, nonce, 12)
	assert.Len(t, tag, 16)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, err := c.Decrypt(ciphertext, nonce, tag)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestKeyCipher_UniqueNonces(t *testing.T) {
	c, err := NewKeyCipher(testKey())
	require.NoError(t, err)

	_, n1, _, err := c.Encrypt([]byte("key"))
	require.NoError(t, err)
	_, n2, _, err := c.Encrypt([]byte("key"))
	require.NoError(t, err)

	assert.NotEqual(t, hex.EncodeToString(n1), hex.EncodeToString(n2))
}

func TestKeyCipher_TamperFailsClosed(t *testing.T) {
	c, err := NewKeyCipher(testKey())
	require.NoError(t, err)

	ciphertext, nonce, tag, err := c.Encrypt([]byte("private key"))
	require.NoError(t, err)

	tamperedCT := append([]byte{}, ciphertext...)
	tamperedCT[0] ^= 0xff
	_, err = c.Decrypt(tamperedCT, nonce, tag)
	assert.Error(t, err)

	tamperedTag := append([]byte{}, tag...)
	tamperedTag[0] ^= 0xff
	_, err = c.Decrypt(ciphertext, nonce, tamperedTag)
	assert.Error(t, err)

	tamperedNonce := append([]byte{}, nonce...)
	tamperedNonce[0] ^= 0xff
	_, err = c.Decrypt(ciphertext, tamperedNonce, tag)
	assert.Error(t, err)
}
