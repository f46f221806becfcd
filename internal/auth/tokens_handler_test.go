// SPDX-License-Identifier: AGPL-3.0-only
package auth

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testKey(t testing.TB, fill byte) []byte {
	t.Helper()
	return bytes.Repeat([]byte{fill}, KeySize)
}

func TestNewTokenCipher_RejectsShortKey(t *testing.T) {
	_, err := NewTokenCipher([]byte("short"))
	assert.ErrorIs(t, err, ErrKeySize)
}

func TestTokenCipher_Layout(t *testing.T) {
	c, err := NewTokenCipher(testKey(t, 7))
	require.NoError(t, err)

	blob, err := c.Encrypt("hello")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)
	assert.Len(t, raw, NonceSize+TagSize+len("hello"))

	again, err := c.Encrypt("hello")
	require.NoError(t, err)
	assert.NotEqual(t, blob, again, "each encryption uses a fresh nonce")
}

func TestTokenCipher_RoundTrip(t *testing.T) {
	c, err := NewTokenCipher(testKey(t, 1))
	require.NoError(t, err)

	rapid.Check(t, func(rt *rapid.T) {
		plaintext := rapid.String().Draw(rt, "plaintext")

		blob, err := c.Encrypt(plaintext)
		if err != nil {
			rt.Fatalf("encrypt: %v", err)
		}
		got, err := c.Decrypt(blob)
		if err != nil {
			rt.Fatalf("decrypt: %v", err)
		}
		if got != plaintext {
			rt.Fatalf("round trip mismatch: %q != %q", got, plaintext)
		}
	})
}

func TestTokenCipher_BitFlipFails(t *testing.T) {
	c, err := NewTokenCipher(testKey(t, 2))
	require.NoError(t, err)

	rapid.Check(t, func(rt *rapid.T) {
		plaintext := rapid.StringN(1, 64, -1).Draw(rt, "plaintext")
		blob, err := c.Encrypt(plaintext)
		if err != nil {
			rt.Fatalf("encrypt: %v", err)
		}
		raw, _ := base64.StdEncoding.DecodeString(blob)

		pos := rapid.IntRange(0, len(raw)-1).Draw(rt, "pos")
		bit := rapid.IntRange(0, 7).Draw(rt, "bit")
		raw[pos] ^= 1 << bit

		if _, err := c.Decrypt(base64.StdEncoding.EncodeToString(raw)); err == nil {
			rt.Fatalf("tampered blob decrypted (pos=%d bit=%d)", pos, bit)
		}
	})
}

func TestTokenCipher_WrongKeyFails(t *testing.T) {
	a, err := NewTokenCipher(testKey(t, 3))
	require.NoError(t, err)
	b, err := NewTokenCipher(testKey(t, 4))
	require.NoError(t, err)

	blob, err := a.Encrypt("secret-token")
	require.NoError(t, err)

	_, err = b.Decrypt(blob)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestTokenCipher_MalformedInput(t *testing.T) {
	c, err := NewTokenCipher(testKey(t, 5))
	require.NoError(t, err)

	_, err = c.Decrypt("not base64!")
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = c.Decrypt(base64.StdEncoding.EncodeToString([]byte("tiny")))
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestReEncrypt(t *testing.T) {
	oldKey := make([]byte, KeySize)
	newKey := make([]byte, KeySize)
	_, _ = rand.Read(oldKey)
	_, _ = rand.Read(newKey)

	from, err := NewTokenCipher(oldKey)
	require.NoError(t, err)
	to, err := NewTokenCipher(newKey)
	require.NoError(t, err)

	blob, err := from.Encrypt("refresh-me")
	require.NoError(t, err)

	moved, err := ReEncrypt(blob, from, to)
	require.NoError(t, err)

	got, err := to.Decrypt(moved)
	require.NoError(t, err)
	assert.Equal(t, "refresh-me", got)

	_, err = from.Decrypt(moved)
	assert.Error(t, err)
}

func TestParseKey(t *testing.T) {
	key, err := ParseKey(base64.StdEncoding.EncodeToString(testKey(t, 9)))
	require.NoError(t, err)
	assert.Len(t, key, KeySize)

	_, err = ParseKey(base64.StdEncoding.EncodeToString([]byte("abc")))
	assert.ErrorIs(t, err, ErrKeySize)

	_, err = ParseKey("%%%")
	assert.Error(t, err)
}

func TestEncryptOptional(t *testing.T) {
	c, err := NewTokenCipher(testKey(t, 6))
	require.NoError(t, err)

	blob, ok, err := c.EncryptOptional("")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, blob)

	blob, ok, err = c.EncryptOptional("x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, blob)
}
