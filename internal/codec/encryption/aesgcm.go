package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// AESGCM implements Codec using AES-256-GCM with a deterministic
// per-chunk nonce derivation, so decryption needs no side-channel for the
// nonce.
type AESGCM struct{}

// NewAESGCM returns an AES-256-GCM codec.
func NewAESGCM() *AESGCM { return &AESGCM{} }

func (c *AESGCM) Algorithm() string { return "aes-256-gcm" }
func (c *AESGCM) KeySize() int      { return 32 }
func (c *AESGCM) TagSize() int      { return 16 }

func (c *AESGCM) gcm(key []byte) (cipher.AEAD, error) {
	if len(key) != c.KeySize() {
		return nil, fmt.Errorf("encryption: aes-256-gcm key must be %d bytes, got %d", c.KeySize(), len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("encryption: aes cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

func (c *AESGCM) Seal(key, runSalt []byte, sequenceNumber uint64, plaintext []byte) ([]byte, error) {
	gcm, err := c.gcm(key)
	if err != nil {
		return nil, err
	}
	nonce, err := deriveNonce(runSalt, sequenceNumber, gcm.NonceSize())
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nil, nonce, plaintext, associatedData(sequenceNumber)), nil
}

func (c *AESGCM) Open(key, runSalt []byte, sequenceNumber uint64, ciphertext []byte) ([]byte, error) {
	gcm, err := c.gcm(key)
	if err != nil {
		return nil, err
	}
	nonce, err := deriveNonce(runSalt, sequenceNumber, gcm.NonceSize())
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, associatedData(sequenceNumber))
	if err != nil {
		return nil, fmt.Errorf("encryption: aes-256-gcm tag verification failed: %w", err)
	}
	return plaintext, nil
}
