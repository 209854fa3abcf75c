package repository

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// NumberCipher protects card numbers at rest. Numbers are stored as AES-GCM
// ciphertext and found again through a keyed HMAC digest, since a random
// nonce makes the ciphertext useless for equality lookups.
type NumberCipher struct {
	aead     cipher.AEAD
	indexKey []byte
}

// NewNumberCipher builds a cipher from an AES key (16, 24 or 32 bytes, given
// hex, base64 or raw) and an HMAC index key.
func NewNumberCipher(encryptionKey, indexKey string) (*NumberCipher, error) {
	key, err := decodeKey(encryptionKey)
	if err != nil {
		return nil, err
	}
	if indexKey == "" {
		return nil, errors.New("card index key is empty")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &NumberCipher{aead: aead, indexKey: []byte(indexKey)}, nil
}

func decodeKey(s string) ([]byte, error) {
	validLen := func(b []byte) bool { return len(b) == 16 || len(b) == 24 || len(b) == 32 }
	if b, err := hex.DecodeString(s); err == nil && validLen(b) {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && validLen(b) {
		return b, nil
	}
	if b := []byte(s); validLen(b) {
		return b, nil
	}
	return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes")
}

// Encrypt returns the hex encoded nonce and ciphertext of number.
func (c *NumberCipher) Encrypt(number string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(number), nil)
	return hex.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (c *NumberCipher) Decrypt(encrypted string) (string, error) {
	data, err := hex.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decode hex: %w", err)
	}
	n := c.aead.NonceSize()
	if len(data) < n {
		return "", errors.New("ciphertext too short")
	}
	plain, err := c.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt card number: %w", err)
	}
	return string(plain), nil
}

// Index returns the lookup digest of number.
func (c *NumberCipher) Index(number string) string {
	h := hmac.New(sha256.New, c.indexKey)
	h.Write([]byte(number))
	return hex.EncodeToString(h.Sum(nil))
}
