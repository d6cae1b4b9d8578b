package encryption

import (
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ChaCha20Poly1305 implements Codec using XChaCha20-Poly1305 (24-byte
// nonce), with the same deterministic per-chunk nonce derivation as
// AESGCM.
type ChaCha20Poly1305 struct{}

// NewChaCha20Poly1305 returns a ChaCha20-Poly1305 codec.
func NewChaCha20Poly1305() *ChaCha20Poly1305 { return &ChaCha20Poly1305{} }

func (c *ChaCha20Poly1305) Algorithm() string { return "chacha20-poly1305" }
func (c *ChaCha20Poly1305) KeySize() int      { return chacha20poly1305.KeySize }
func (c *ChaCha20Poly1305) TagSize() int      { return chacha20poly1305.Overhead }

func (c *ChaCha20Poly1305) aead(key []byte) (cipher.AEAD, error) {
	if len(key) != c.KeySize() {
		return nil, fmt.Errorf("encryption: chacha20-poly1305 key must be %d bytes, got %d", c.KeySize(), len(key))
	}
	return chacha20poly1305.NewX(key)
}

func (c *ChaCha20Poly1305) Seal(key, runSalt []byte, sequenceNumber uint64, plaintext []byte) ([]byte, error) {
	aead, err := c.aead(key)
	if err != nil {
		return nil, err
	}
	nonce, err := deriveNonce(runSalt, sequenceNumber, aead.NonceSize())
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, associatedData(sequenceNumber)), nil
}

func (c *ChaCha20Poly1305) Open(key, runSalt []byte, sequenceNumber uint64, ciphertext []byte) ([]byte, error) {
	aead, err := c.aead(key)
	if err != nil {
		return nil, err
	}
	nonce, err := deriveNonce(runSalt, sequenceNumber, aead.NonceSize())
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, associatedData(sequenceNumber))
	if err != nil {
		return nil, fmt.Errorf("encryption: chacha20-poly1305 tag verification failed: %w", err)
	}
	return plaintext, nil
}
