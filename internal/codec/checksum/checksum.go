// Package checksum provides the running-digest codecs used by checksum
// stages: SHA-256 (default) and BLAKE3. A Digest accumulates chunk payloads
// in strict sequence order: Write is reached only through
// stage.ChecksumStage.Fold, which internal/executor calls from its reader
// goroutine (input checksums) or its writer goroutine (output checksums),
// preserving hash-stream semantics without per-chunk mutex contention.
package checksum

import (
	"crypto/sha256"
	"fmt"
	"hash"

	"lukechampine.com/blake3"
)

// Digest wraps a hash.Hash for one run's running checksum.
type Digest struct {
	h    hash.Hash
	algo string
}

// New builds a Digest for the named algorithm.
func New(algorithm string) (*Digest, error) {
	switch algorithm {
	case "", "none":
		return nil, nil
	case "sha-256":
		return &Digest{h: sha256.New(), algo: "sha-256"}, nil
	case "blake3":
		return &Digest{h: blake3.New(32, nil), algo: "blake3"}, nil
	default:
		return nil, fmt.Errorf("checksum: unsupported algorithm %q", algorithm)
	}
}

// Write folds payload into the running digest. Must only be called by the
// one goroutine that folds this digest, in sequence-number order.
func (d *Digest) Write(payload []byte) {
	d.h.Write(payload) //nolint:errcheck // hash.Hash.Write never returns an error
}

// Sum returns the current digest value. Safe to call after the folder has
// observed every chunk in the run.
func (d *Digest) Sum() []byte {
	return d.h.Sum(nil)
}

// Algorithm reports the digest's algorithm name.
func (d *Digest) Algorithm() string { return d.algo }
