package transport

// AEAD is the callback boundary spec.md 6 describes: the embedder supplies
// an implementation (internal/aead's ChaCha20-Poly1305 adapter by default)
// and the core never touches raw key material directly.
type AEAD interface {
	Overhead() int
	Encrypt(out, plaintext, key, nonce, aad []byte) ([]byte, error)
	Decrypt(out, ciphertext, key, nonce, aad []byte) ([]byte, error)
}

// ckm (connection key material) holds the directional key/iv pairs used to
// protect short-header packets once the handshake has produced them
// (spec.md 4.10). There is no header-protection key; packet headers are
// sent unprotected.
type ckm struct {
	txKey, txIV []byte
	rxKey, rxIV []byte
}

// nonceFor derives the per-packet nonce by XORing the packet number into the
// low bytes of the IV, the construction TLS 1.3 record protection and every
// QUIC draft since -07 use.
func nonceFor(iv []byte, pktNum uint64) []byte {
	n := make([]byte, len(iv))
	copy(n, iv)
	for i := 0; i < 8 && i < len(n); i++ {
		n[len(n)-1-i] ^= byte(pktNum >> (8 * i))
	}
	return n
}

// seal protects payload in place against pktNum/aad using the tx direction
// of k, returning the ciphertext (including the AEAD's authentication tag).
func (k *ckm) seal(a AEAD, out, payload, aad []byte, pktNum uint64) ([]byte, error) {
	nonce := nonceFor(k.txIV, pktNum)
	ct, err := a.Encrypt(out, payload, k.txKey, nonce, aad)
	if err != nil {
		return nil, newError(CallbackFailure, "aead seal failed")
	}
	return ct, nil
}

// open removes protection from ciphertext using the rx direction of k.
func (k *ckm) open(a AEAD, out, ciphertext, aad []byte, pktNum uint64) ([]byte, error) {
	nonce := nonceFor(k.rxIV, pktNum)
	pt, err := a.Decrypt(out, ciphertext, k.rxKey, nonce, aad)
	if err != nil {
		return nil, newError(BadPacketHash, "aead open failed")
	}
	return pt, nil
}
