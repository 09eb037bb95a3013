package aead

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"
)

func TestChaCha20Poly1305SealOpenRoundTrip(t *testing.T) {
	a := ChaCha20Poly1305{}
	key := make([]byte, chacha20poly1305.KeySize)
	nonce := make([]byte, chacha20poly1305.NonceSize)
	for i := range key {
		key[i] = byte(i)
	}
	for i := range nonce {
		nonce[i] = byte(i * 7)
	}
	aad := []byte("packet header")
	plaintext := []byte("stream data payload")

	sealed, err := a.Encrypt(nil, plaintext, key, nonce, aad)
	require.NoError(t, err)
	require.Greater(t, len(sealed), len(plaintext))

	opened, err := a.Decrypt(nil, sealed, key, nonce, aad)
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)
}

func TestChaCha20Poly1305OpenRejectsTamperedAAD(t *testing.T) {
	a := ChaCha20Poly1305{}
	key := make([]byte, chacha20poly1305.KeySize)
	nonce := make([]byte, chacha20poly1305.NonceSize)

	sealed, err := a.Encrypt(nil, []byte("hello"), key, nonce, []byte("aad-1"))
	require.NoError(t, err)

	_, err = a.Decrypt(nil, sealed, key, nonce, []byte("aad-2"))
	require.Error(t, err)
}

func TestDeriveKeysDeterministicAndDirectional(t *testing.T) {
	secret := []byte("shared-connection-secret")

	c2sKey1, c2sIV1 := DeriveKeys(secret, "c2s")
	c2sKey2, c2sIV2 := DeriveKeys(secret, "c2s")
	require.Equal(t, c2sKey1, c2sKey2, "DeriveKeys must be deterministic for the same label")
	require.Equal(t, c2sIV1, c2sIV2)

	s2cKey, s2cIV := DeriveKeys(secret, "s2c")
	require.NotEqual(t, c2sKey1, s2cKey, "distinct labels must derive distinct keys")
	require.NotEqual(t, c2sIV1, s2cIV)

	require.Len(t, c2sKey1, chacha20poly1305.KeySize)
	require.Len(t, c2sIV1, chacha20poly1305.NonceSize)
}
