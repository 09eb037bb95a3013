// Package aead supplies the default AEAD implementation for qcore's
// transport.AEAD callback boundary (spec.md 6): the core never derives or
// holds key material itself, it only calls Encrypt/Decrypt.
package aead

import (
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/eeverettrbx/qcore/transport"
)

// ChaCha20Poly1305 adapts golang.org/x/crypto/chacha20poly1305 to
// transport.AEAD. Keys are 32 bytes; nonces are the 12-byte construction
// transport.AEAD's caller (ckm.seal/ckm.open) already derives.
type ChaCha20Poly1305 struct{}

var _ transport.AEAD = ChaCha20Poly1305{}

// Overhead returns the fixed Poly1305 tag length appended to every sealed
// packet.
func (ChaCha20Poly1305) Overhead() int {
	return chacha20poly1305.Overhead
}

// Encrypt seals plaintext with key/nonce/aad, appending the result to out.
func (ChaCha20Poly1305) Encrypt(out, plaintext, key, nonce, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(out, nonce, plaintext, aad), nil
}

// Decrypt opens ciphertext with key/nonce/aad, appending the plaintext to
// out.
func (ChaCha20Poly1305) Decrypt(out, ciphertext, key, nonce, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return aead.Open(out, nonce, ciphertext, aad)
}

// DeriveKeys produces one key and IV from a shared secret, using the label
// as a trivial context separator (one call per direction). This core has no HKDF/TLS
// key-schedule of its own (spec.md 1: key derivation is out of scope for
// the Connection Core), so this is the embedder-level convenience
// cmd/quince uses to turn a handshake-agreed secret into the raw material
// transport.Conn.UpdateTxKeys/UpdateRxKeys expect; a production embedder
// would replace this with a real TLS exporter.
func DeriveKeys(secret []byte, label string) (key, iv []byte) {
	key = expand(secret, label+":key", chacha20poly1305.KeySize)
	iv = expand(secret, label+":iv", chacha20poly1305.NonceSize)
	return key, iv
}

// expand is a minimal, non-cryptographic-strength stand-in for a real KDF:
// it repeats a simple FNV-like mix of secret+label+counter until it has
// produced n bytes. Adequate for feeding the toy handshake in cmd/quince;
// not a substitute for HKDF in a real deployment.
func expand(secret []byte, label string, n int) []byte {
	out := make([]byte, 0, n)
	var counter byte
	for len(out) < n {
		h := fnv1aSeed
		for _, b := range secret {
			h ^= uint64(b)
			h *= fnv1aPrime
		}
		for _, b := range []byte(label) {
			h ^= uint64(b)
			h *= fnv1aPrime
		}
		h ^= uint64(counter)
		h *= fnv1aPrime
		for i := 0; i < 8 && len(out) < n; i++ {
			out = append(out, byte(h>>(8*i)))
		}
		counter++
	}
	return out
}

const (
	fnv1aSeed  = 14695981039346656037
	fnv1aPrime = 1099511628211
)
