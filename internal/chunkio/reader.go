// Package chunkio provides the source-side reader and target-side
// transactional writer that bound a run's I/O. Both are grounded on the
// explicit, fail-fast connection-lifecycle idiom in database/postgres.go
// (Open/Close, no implicit retries) generalized from a SQL connection pool
// to a file handle.
package chunkio

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/adapipe/adapipe/internal/chunk"
	"github.com/adapipe/adapipe/internal/errs"
)

// minBufferSize is the floor for the reader's internal buffer, independent
// of the chunk size in use.
const minBufferSize = 64 << 10 // 64 KiB

// Reader reads a source file as a sequence of fixed-size FileChunks,
// assigning sequence numbers and offsets in order. It is not safe for
// concurrent use; it is meant to be driven by a single executor goroutine
// that fans chunks out to workers.
type Reader struct {
	f         *os.File
	br        *bufio.Reader
	chunkSize int
	offset    int64
	seq       uint64
	done      bool
}

// Open opens path and wraps it in a Reader that yields chunkSize-sized
// FileChunks. The buffer is sized to at least minBufferSize regardless of
// chunkSize, so small-chunk runs still get amortized syscalls.
func Open(path string, chunkSize chunk.Size) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.IoError, "chunkio.Open", "open source file", err)
	}
	bufSize := int(chunkSize)
	if bufSize < minBufferSize {
		bufSize = minBufferSize
	}
	return &Reader{
		f:         f,
		br:        bufio.NewReaderSize(f, bufSize),
		chunkSize: int(chunkSize),
	}, nil
}

// Next reads the next chunk, or returns done=true once the source is
// exhausted. The final chunk returned has IsFinal set; for an empty source,
// that final chunk has a zero-length, non-nil payload and sequence 0.
func (r *Reader) Next(ctx context.Context) (c chunk.FileChunk, done bool, err error) {
	if r.done {
		return chunk.FileChunk{}, true, nil
	}
	if err := ctx.Err(); err != nil {
		return chunk.FileChunk{}, false, errs.Wrap(errs.Cancelled, "chunkio.Reader.Next", "read cancelled", err)
	}

	buf := make([]byte, r.chunkSize)
	n, readErr := io.ReadFull(r.br, buf)
	switch {
	case readErr == nil:
		// Buffer filled exactly; peek one byte to see if more remains.
		_, peekErr := r.br.Peek(1)
		isFinal := peekErr != nil
		out := chunk.FileChunk{SequenceNumber: r.seq, Offset: r.offset, Payload: buf, IsFinal: isFinal}
		r.seq++
		r.offset += int64(n)
		if isFinal {
			r.done = true
		}
		return out, false, nil
	case readErr == io.ErrUnexpectedEOF || readErr == io.EOF:
		out := chunk.FileChunk{SequenceNumber: r.seq, Offset: r.offset, Payload: buf[:n], IsFinal: true}
		r.seq++
		r.offset += int64(n)
		r.done = true
		return out, false, nil
	default:
		return chunk.FileChunk{}, false, errs.Wrap(errs.IoError, "chunkio.Reader.Next", "read source chunk", readErr)
	}
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}
