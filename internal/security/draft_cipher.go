package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// EncryptionPrefix marks values sealed by a Cipher.
const EncryptionPrefix = "enc:"

var ErrMissingKey = errors.New("security: encryption key not set")

// Cipher seals short text values with AES-GCM.
type Cipher struct {
	gcm cipher.AEAD
}

// NewCipher derives the AES key from raw. Base64 input of 16, 24 or 32
// bytes is used as is; anything else is hashed with SHA-256.
func NewCipher(raw string) (*Cipher, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMissingKey
	}

	block, err := aes.NewCipher(deriveKey(raw))
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}

	return &Cipher{gcm: gcm}, nil
}

func deriveKey(raw string) []byte {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err == nil {
		return normalizeKey(decoded)
	}

	sum := sha256.Sum256([]byte(raw))
	return sum[:]
}

func normalizeKey(key []byte) []byte {
	switch len(key) {
	case 16, 24, 32:
		return key
	default:
		sum := sha256.Sum256(key)
		return sum[:]
	}
}

func (c *Cipher) Encrypt(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}

	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("security: generate nonce: %w", err)
	}

	sealed := c.gcm.Seal(nil, nonce, []byte(plain), nil)
	payload := append(nonce, sealed...)

	return EncryptionPrefix + base64.StdEncoding.EncodeToString(payload), nil
}

// Decrypt opens a sealed value. Values without the prefix were stored
// before encryption was enabled and come back unchanged with plain=true.
func (c *Cipher) Decrypt(value string) (text string, plain bool, err error) {
	if value == "" {
		return "", false, nil
	}
	if !IsEncrypted(value) {
		return value, true, nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, EncryptionPrefix))
	if err != nil {
		return "", false, fmt.Errorf("security: decode ciphertext: %w", err)
	}

	nonceSize := c.gcm.NonceSize()
	if len(data) <= nonceSize {
		return "", false, errors.New("security: ciphertext too short")
	}

	opened, err := c.gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", false, fmt.Errorf("security: decrypt ciphertext: %w", err)
	}
	return string(opened), false, nil
}

func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptionPrefix)
}
