package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/phantomlaunch/identity-server/internal/model"
)

const (
	keySize   = 32
	nonceSize = 12
	tagSize   = 16
)

// KeyCipher seals wallet private keys with AES-256-GCM. The GCM tag is
// split out of the sealed output so ciphertext, nonce and tag can be
// persisted as separate fields.
type KeyCipher struct {
	aead cipher.AEAD
}

// NewKeyCipher builds a cipher from a 64-char hex key.
func NewKeyCipher(hexKey string) (*KeyCipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key is not valid hex: %w", model.ErrMisconfigured)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d: %w", keySize, len(key), model.ErrMisconfigured)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to init aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to init gcm: %w", err)
	}

	return &KeyCipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce and returns
// ciphertext, nonce and authentication tag separately.
func (c *KeyCipher) Encrypt(plaintext []byte) (ciphertext, nonce, tag []byte, err error) {
	nonce = make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	ciphertext = sealed[:len(sealed)-tagSize]
	tag = sealed[len(sealed)-tagSize:]

	return ciphertext, nonce, tag, nil
}

// Decrypt reverses Encrypt. Any tampering with ciphertext, nonce or tag
// fails closed.
func (c *KeyCipher) Decrypt(ciphertext, nonce, tag []byte) ([]byte, error) {
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt key material: %w", err)
	}

	return plaintext, nil
}
