// Package encryption provides AEAD chunk codecs with deterministic,
// coordination-free nonce derivation: nonce = HKDF(run_salt, sequence_number).
// Associated data is the 8-byte big-endian sequence number, binding each
// ciphertext to its position so chunks cannot be silently reordered or
// spliced from a different run.
package encryption

import "fmt"

// Codec seals and opens single chunks under a per-run key and a nonce
// derived from the chunk's sequence number.
type Codec interface {
	// Seal encrypts plaintext for the given sequence number, returning the
	// ciphertext with its TagSize()-byte authentication tag appended (16
	// bytes for the AEAD codecs, none for the no-op codec).
	Seal(key, runSalt []byte, sequenceNumber uint64, plaintext []byte) ([]byte, error)
	// Open verifies and decrypts ciphertext (with its appended tag) for the
	// given sequence number. Returns an error if the tag does not verify.
	Open(key, runSalt []byte, sequenceNumber uint64, ciphertext []byte) ([]byte, error)
	Algorithm() string
	KeySize() int
	TagSize() int
}

// New builds a Codec for the named algorithm.
func New(algorithm string) (Codec, error) {
	switch algorithm {
	case "", "none":
		return NewNoop(), nil
	case "aes-256-gcm":
		return NewAESGCM(), nil
	case "chacha20-poly1305":
		return NewChaCha20Poly1305(), nil
	default:
		return nil, fmt.Errorf("encryption: unsupported algorithm %q", algorithm)
	}
}
