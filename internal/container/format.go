// Package container implements the self-describing ".adapipe" binary
// format: a magic-prefixed header, a stream of CRC-protected chunk frames,
// and a trailing footer that duplicates the header for recovery. Header and
// footer are encoded with github.com/vmihailenco/msgpack/v5, a schema-free
// binary codec already present in the dependency graph; frame integrity is
// a stdlib hash/crc32 checksum, since CRC32 is a checked-in protocol detail
// rather than a pluggable codec concern.
package container

import "time"

// Magic and trailer byte sequences, fixed-width and version-independent.
var (
	Magic        = [8]byte{'A', 'D', 'A', 'P', 'I', 'P', 'E', 0}
	TrailerMagic = [10]byte{'A', 'D', 'A', 'P', 'I', 'P', 'E', 'E', 'N', 'D'}
)

// FormatVersion is the current container format version. Readers refuse to
// open a container whose major version differs from this one.
const (
	FormatVersionMajor uint16 = 1
	FormatVersionMinor uint16 = 0
)

// frameFlag bits within a chunk frame's flags byte.
const flagIsFinal = 1 << 0

// StageDescriptor is the on-disk shape of one stage in the chain, matching
// internal/pipelinedef.StageDef but kept as an independent type so the wire
// schema doesn't silently change when the domain model evolves.
type StageDescriptor struct {
	Ordinal   int    `msgpack:"ordinal"`
	Kind      string `msgpack:"kind"`
	Algorithm string `msgpack:"algorithm"`
	Level     int    `msgpack:"level,omitempty"`
	KeyID     string `msgpack:"key_id,omitempty"`
}

// Header is the MsgPack-encoded schema shared verbatim by the header and
// footer sections of a container (the footer exists so recovery tooling can
// read it from the tail without re-parsing the whole stream).
type Header struct {
	FormatVersion        uint32            `msgpack:"format_version"`
	OriginalSize         uint64            `msgpack:"original_size"`
	OriginalChecksumAlgo string            `msgpack:"original_checksum_algo"`
	OriginalChecksum     string            `msgpack:"original_checksum"` // hex
	ChunkSize            uint32            `msgpack:"chunk_size"`
	TotalChunks          uint64            `msgpack:"total_chunks"`
	RunSalt              []byte            `msgpack:"run_salt,omitempty"` // 16 bytes, present iff any encryption stage
	Stages               []StageDescriptor `msgpack:"stages"`
	CreatedAt            time.Time         `msgpack:"created_at"`
	PipelineID           string            `msgpack:"pipeline_id"`
}

// FrameHeader is the fixed-size portion preceding every chunk's payload.
type FrameHeader struct {
	SequenceNumber uint64
	PayloadLen     uint32
	Flags          uint8
}

func (f FrameHeader) isFinal() bool { return f.Flags&flagIsFinal != 0 }

func frameHeaderWithFinal(seq uint64, payloadLen uint32, isFinal bool) FrameHeader {
	var flags uint8
	if isFinal {
		flags = flagIsFinal
	}
	return FrameHeader{SequenceNumber: seq, PayloadLen: payloadLen, Flags: flags}
}
