// SPDX-License-Identifier: AGPL-3.0-only
package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const (
	KeySize   = 32
	NonceSize = 16
	TagSize   = 16
)

var (
	ErrKeySize = errors.New("encryption key must be 32 bytes")
	ErrDecrypt = errors.New("token decryption failed")
)

// TokenCipher encrypts provider tokens at rest. The stored form is
// base64(nonce || tag || ciphertext).
type TokenCipher struct {
	gcm cipher.AEAD
}

func NewTokenCipher(key []byte) (*TokenCipher, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, err
	}

	return &TokenCipher{gcm: gcm}, nil
}

// ParseKey decodes a base64 encoded 32 byte key.
func ParseKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	return key, nil
}

func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := c.gcm.Seal(nil, nonce, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]

	out := make([]byte, 0, NonceSize+TagSize+len(ct))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ct...)

	return base64.StdEncoding.EncodeToString(out), nil
}

func (c *TokenCipher) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(raw) < NonceSize+TagSize {
		return "", fmt.Errorf("%w: blob too short", ErrDecrypt)
	}

	nonce := raw[:NonceSize]
	tag := raw[NonceSize : NonceSize+TagSize]
	ct := raw[NonceSize+TagSize:]

	sealed := make([]byte, 0, len(ct)+TagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := c.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	return string(plaintext), nil
}

// EncryptOptional leaves empty values unencrypted and reports whether
// anything was stored.
func (c *TokenCipher) EncryptOptional(plaintext string) (string, bool, error) {
	if plaintext == "" {
		return "", false, nil
	}
	blob, err := c.Encrypt(plaintext)
	if err != nil {
		return "", false, err
	}
	return blob, true, nil
}

// ReEncrypt moves a blob from one key to another.
func ReEncrypt(blob string, from, to *TokenCipher) (string, error) {
	plaintext, err := from.Decrypt(blob)
	if err != nil {
		return "", err
	}
	return to.Encrypt(plaintext)
}
