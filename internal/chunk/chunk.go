// Package chunk defines the core value types that flow through the
// pipeline: FileChunk, ChunkSize, WorkerCount, and Algorithm.
package chunk

import (
	"fmt"
	"runtime"
)

const (
	minChunkSize = 1 << 10        // 1 KiB
	maxChunkSize = 512 << 20      // 512 MiB
)

// Size is a validated chunk size in bytes, bounded to [1 KiB, 512 MiB].
type Size int

// NewSize validates n and returns a Size.
func NewSize(n int) (Size, error) {
	if n < minChunkSize || n > maxChunkSize {
		return 0, fmt.Errorf("chunk size %d out of range [%d, %d]", n, minChunkSize, maxChunkSize)
	}
	return Size(n), nil
}

// AdaptiveSize picks a chunk size tier from the source file size, per the
// fixed size-tier table: larger sources get larger chunks, trading per-chunk
// framing overhead against reorder-window memory.
func AdaptiveSize(sourceSize int64) Size {
	switch {
	case sourceSize <= 1<<20: // <= 1 MiB
		return 64 << 10
	case sourceSize <= 100<<20: // <= 100 MiB
		return 256 << 10
	case sourceSize <= 1<<30: // <= 1 GiB
		return 1 << 20
	case sourceSize <= 10<<30: // <= 10 GiB
		return 4 << 20
	default:
		return 16 << 20
	}
}

// WorkerCount is a validated worker pool size in [1, 2*cpu_count].
type WorkerCount int

// NewWorkerCount validates n against the current CPU count.
func NewWorkerCount(n int) (WorkerCount, error) {
	maxWorkers := 2 * runtime.NumCPU()
	if n < 1 || n > maxWorkers {
		return 0, fmt.Errorf("worker count %d out of range [1, %d]", n, maxWorkers)
	}
	return WorkerCount(n), nil
}

// ChainCharacter describes whether a stage chain is CPU-heavy (compression
// and/or encryption present) or mixed/IO-bound, which drives the adaptive
// worker-count factor.
type ChainCharacter int

const (
	ChainMixed ChainCharacter = iota
	ChainCPUHeavy
)

// AdaptiveWorkerCount computes workers = clamp(round(cpu_count * f), 1, 2*cpu_count)
// where f = 1.0 for CPU-heavy chains and f = 0.5 otherwise.
func AdaptiveWorkerCount(character ChainCharacter) WorkerCount {
	cpu := runtime.NumCPU()
	f := 0.5
	if character == ChainCPUHeavy {
		f = 1.0
	}
	n := int(float64(cpu)*f + 0.5)
	if n < 1 {
		n = 1
	}
	maxWorkers := 2 * cpu
	if n > maxWorkers {
		n = maxWorkers
	}
	return WorkerCount(n)
}

// CompressionAlgo names a compression codec.
type CompressionAlgo string

const (
	CompressionNone   CompressionAlgo = "none"
	CompressionZstd   CompressionAlgo = "zstd"
	CompressionLZ4    CompressionAlgo = "lz4"
	CompressionBrotli CompressionAlgo = "brotli"
	CompressionGzip   CompressionAlgo = "gzip"
)

// EncryptionAlgo names an AEAD encryption codec.
type EncryptionAlgo string

const (
	EncryptionNone      EncryptionAlgo = "none"
	EncryptionAES256GCM EncryptionAlgo = "aes-256-gcm"
	EncryptionChaCha20  EncryptionAlgo = "chacha20-poly1305"
)

// HashAlgo names a checksum algorithm.
type HashAlgo string

const (
	HashNone   HashAlgo = "none"
	HashSHA256 HashAlgo = "sha-256"
	HashBLAKE3 HashAlgo = "blake3"
)

// FileChunk is an ordered, immutable piece of data in transit between the
// reader, the stage chain, and the writer. At any time a FileChunk has
// exactly one owner (reader -> worker -> writer); callers must not retain
// a reference after handing it to the next stage.
type FileChunk struct {
	// SequenceNumber is monotonically increasing, zero-based, and
	// gap-free within a run.
	SequenceNumber uint64
	// Offset is the original byte offset in the source; set only on the
	// initial read and preserved through transforms as metadata.
	Offset int64
	// Payload is the chunk's byte buffer. Length must be > 0 except the
	// final chunk of an empty source, which may be empty.
	Payload []byte
	// IsFinal is true for exactly one chunk per run: the last one.
	IsFinal bool
	// ChecksumRunning is an optional running-digest slot that Clone carries
	// over unchanged. The checksum stages in internal/stage record their
	// running digests in procctx.Context and do not set it, so chunks
	// produced by chunkio.Reader leave it nil.
	ChecksumRunning []byte
}

// Clone returns a new chunk with the given payload and every other field
// copied from c, so a stage can emit its output while preserving the
// sequence number, offset and final flag. The payload is used as given,
// not copied.
func (c FileChunk) Clone(payload []byte) FileChunk {
	return FileChunk{
		SequenceNumber:  c.SequenceNumber,
		Offset:          c.Offset,
		Payload:         payload,
		IsFinal:         c.IsFinal,
		ChecksumRunning: c.ChecksumRunning,
	}
}
