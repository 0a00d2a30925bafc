package utils

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const parameterKeySalt = "graphmail/parameters/v1"

// ParameterCipher seals SecureString parameter values at rest.
type ParameterCipher struct {
	key []byte
}

// NewParameterCipher accepts a raw 32-byte key as-is; anything else is stretched with argon2id.
func NewParameterCipher(secret string) (*ParameterCipher, error) {
	if secret == "" {
		return nil, errors.New("encryption key is required")
	}
	key := []byte(secret)
	if len(key) != chacha20poly1305.KeySize {
		key = argon2.IDKey([]byte(secret), []byte(parameterKeySalt), 1, 64*1024, 4, chacha20poly1305.KeySize)
	}
	return &ParameterCipher{key: key}, nil
}

func (c *ParameterCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

func (c *ParameterCipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}

	decoded, err := base64.URLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	if len(decoded) < aead.NonceSize() {
		return "", errors.New("ciphertext too short")
	}

	nonce, sealed := decoded[:aead.NonceSize()], decoded[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("open parameter: %w", err)
	}
	return string(plain), nil
}
