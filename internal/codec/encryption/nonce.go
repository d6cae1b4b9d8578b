package encryption

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/hkdf"
)

// deriveNonce derives a nonceSize-byte nonce from (runSalt, sequenceNumber)
// via HKDF-SHA256. info binds the sequence number so two chunks in the
// same run never share a nonce.
func deriveNonce(runSalt []byte, sequenceNumber uint64, nonceSize int) ([]byte, error) {
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], sequenceNumber)

	info := append([]byte("adapipe-chunk-nonce:"), seqBytes[:]...)
	reader := hkdf.New(sha256.New, runSalt, nil, info)

	nonce := make([]byte, nonceSize)
	if _, err := reader.Read(nonce); err != nil {
		return nil, fmt.Errorf("encryption: nonce derivation: %w", err)
	}
	return nonce, nil
}

// associatedData returns the 8-byte big-endian sequence number used as
// AEAD associated data.
func associatedData(sequenceNumber uint64) []byte {
	var aad [8]byte
	binary.BigEndian.PutUint64(aad[:], sequenceNumber)
	return aad[:]
}
