package container

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/adapipe/adapipe/internal/chunkio"
	"github.com/adapipe/adapipe/internal/errs"
)

// Writer serializes a run into the ".adapipe" binary layout on top of a
// chunkio.Writer, so container output gets the same staging-file-then-
// atomic-rename transaction as any other target write.
type Writer struct {
	tw     *chunkio.Writer
	frames uint64
	final  bool
}

// NewWriter prepares a container Writer for targetPath. Call Begin before
// WriteFrame, and Commit or Rollback exactly once to end the transaction.
func NewWriter(targetPath string) *Writer {
	return &Writer{tw: chunkio.NewWriter(targetPath)}
}

// Begin opens the staging file and writes the magic, version, and
// provisional header. header's OriginalChecksum may be empty at this point
// (it is not known until the run completes); Commit's footer carries the
// authoritative value.
func (w *Writer) Begin(header Header) error {
	if err := w.tw.Begin(); err != nil {
		return err
	}
	buf := make([]byte, 0, 8+4+4)
	buf = append(buf, Magic[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, FormatVersionMajor)
	buf = binary.LittleEndian.AppendUint16(buf, FormatVersionMinor)

	encoded, err := msgpack.Marshal(&header)
	if err != nil {
		_ = w.tw.Rollback()
		return errs.Wrap(errs.CodecError, "container.Writer.Begin", "encode header", err)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(encoded)))
	if err := w.tw.WriteChunk(buf); err != nil {
		_ = w.tw.Rollback()
		return err
	}
	if err := w.tw.WriteChunk(encoded); err != nil {
		_ = w.tw.Rollback()
		return err
	}
	return nil
}

// WriteFrame appends one chunk frame: seq, payload_len, flags, payload,
// frame_crc32. Frames must be written in strict sequence-number order;
// the executor's writer goroutine (fed by the reorder window) guarantees
// this, and a sequence number other than the next expected one is rejected
// with errs.InternalError.
func (w *Writer) WriteFrame(sequenceNumber uint64, payload []byte, isFinal bool) error {
	if sequenceNumber != w.frames {
		return errs.New(errs.InternalError, "container.Writer.WriteFrame", fmt.Errorf("frame sequence %d, expected %d", sequenceNumber, w.frames))
	}
	fh := frameHeaderWithFinal(sequenceNumber, uint32(len(payload)), isFinal)
	buf := make([]byte, 0, 8+4+1+len(payload)+4)
	buf = binary.LittleEndian.AppendUint64(buf, fh.SequenceNumber)
	buf = binary.LittleEndian.AppendUint32(buf, fh.PayloadLen)
	buf = append(buf, fh.Flags)
	buf = append(buf, payload...)

	crc := crc32.ChecksumIEEE(payload)
	buf = binary.LittleEndian.AppendUint32(buf, crc)

	if err := w.tw.WriteChunk(buf); err != nil {
		return err
	}
	w.frames++
	w.final = isFinal
	return nil
}

// Commit writes the authoritative footer, the raw original SHA-256, the
// trailer magic, and finalizes the underlying transactional write. It fails
// with errs.InternalError if the final frame has not been written.
func (w *Writer) Commit(footer Header) error {
	if !w.final {
		return errs.New(errs.InternalError, "container.Writer.Commit", fmt.Errorf("final frame not written"))
	}
	encoded, err := msgpack.Marshal(&footer)
	if err != nil {
		return errs.Wrap(errs.CodecError, "container.Writer.Commit", "encode footer", err)
	}
	lenBuf := binary.LittleEndian.AppendUint32(nil, uint32(len(encoded)))
	if err := w.tw.WriteChunk(lenBuf); err != nil {
		return err
	}
	if err := w.tw.WriteChunk(encoded); err != nil {
		return err
	}

	original, err := decodeHexChecksum(footer.OriginalChecksum)
	if err != nil {
		return errs.Wrap(errs.InternalError, "container.Writer.Commit", "decode original checksum", err)
	}
	if err := w.tw.WriteChunk(original); err != nil {
		return err
	}
	if err := w.tw.WriteChunk(TrailerMagic[:]); err != nil {
		return err
	}
	return w.tw.Commit()
}

// Rollback discards the staging file. Idempotent.
func (w *Writer) Rollback() error {
	return w.tw.Rollback()
}
