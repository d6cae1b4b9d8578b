package container

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/adapipe/adapipe/internal/errs"
)

// Reader parses a ".adapipe" container sequentially: magic and version,
// then the header, then chunk frames one at a time via NextFrame, then the
// footer, original checksum, and trailer magic via ReadFooter. It is not
// safe for concurrent use.
type Reader struct {
	f  *os.File
	br *bufio.Reader
}

// Open opens path, validates the magic and major version, and decodes the
// header.
func Open(path string) (*Reader, Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Header{}, errs.Wrap(errs.IoError, "container.Open", "open container", err)
	}
	r := &Reader{f: f, br: bufio.NewReaderSize(f, 64<<10)}

	var magic [8]byte
	if _, err := io.ReadFull(r.br, magic[:]); err != nil {
		_ = f.Close()
		return nil, Header{}, errs.Wrap(errs.IoError, "container.Open", "read magic", err)
	}
	if magic != Magic {
		_ = f.Close()
		return nil, Header{}, errs.New(errs.IntegrityFailure, "container.Open", nil)
	}

	var verBuf [4]byte
	if _, err := io.ReadFull(r.br, verBuf[:]); err != nil {
		_ = f.Close()
		return nil, Header{}, errs.Wrap(errs.IoError, "container.Open", "read version", err)
	}
	major := binary.LittleEndian.Uint16(verBuf[0:2])
	if major != FormatVersionMajor {
		_ = f.Close()
		return nil, Header{}, errs.New(errs.IntegrityFailure, "container.Open", nil)
	}

	header, err := r.readMsgpackSection()
	if err != nil {
		_ = f.Close()
		return nil, Header{}, err
	}
	return r, header, nil
}

func (r *Reader) readMsgpackSection() (Header, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r.br, lenBuf[:]); err != nil {
		return Header{}, errs.Wrap(errs.IoError, "container.readMsgpackSection", "read section length", err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.br, buf); err != nil {
		return Header{}, errs.Wrap(errs.IoError, "container.readMsgpackSection", "read section body", err)
	}
	var h Header
	if err := msgpack.Unmarshal(buf, &h); err != nil {
		return Header{}, errs.Wrap(errs.CodecError, "container.readMsgpackSection", "decode section", err)
	}
	return h, nil
}

// Frame is one decoded chunk frame.
type Frame struct {
	SequenceNumber uint64
	Payload        []byte
	IsFinal        bool
}

// NextFrame reads exactly one frame and validates its CRC32. It does not
// compare the frames against the header's TotalChunks, so callers must stop
// calling NextFrame once they have seen a frame with IsFinal true, and call
// ReadFooter next.
func (r *Reader) NextFrame() (Frame, error) {
	var fixed [8 + 4 + 1]byte
	if _, err := io.ReadFull(r.br, fixed[:]); err != nil {
		return Frame{}, errs.Wrap(errs.IoError, "container.Reader.NextFrame", "read frame header", err)
	}
	seq := binary.LittleEndian.Uint64(fixed[0:8])
	payloadLen := binary.LittleEndian.Uint32(fixed[8:12])
	flags := fixed[12]

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r.br, payload); err != nil {
		return Frame{}, errs.Wrap(errs.IoError, "container.Reader.NextFrame", "read frame payload", err)
	}

	var crcBuf [4]byte
	if _, err := io.ReadFull(r.br, crcBuf[:]); err != nil {
		return Frame{}, errs.Wrap(errs.IoError, "container.Reader.NextFrame", "read frame crc", err)
	}
	want := binary.LittleEndian.Uint32(crcBuf[:])
	got := crc32.ChecksumIEEE(payload)
	if want != got {
		return Frame{}, errs.New(errs.IntegrityFailure, "container.Reader.NextFrame", nil)
	}

	fh := FrameHeader{SequenceNumber: seq, PayloadLen: payloadLen, Flags: flags}
	return Frame{SequenceNumber: seq, Payload: payload, IsFinal: fh.isFinal()}, nil
}

// Footer is the trailing section: the duplicated header, the original
// file's raw checksum bytes, validated against the trailer magic.
type Footer struct {
	Header           Header
	OriginalChecksum []byte
}

// ReadFooter reads the footer, the original checksum, and the trailer
// magic, in that order, failing with IntegrityFailure on any mismatch.
func (r *Reader) ReadFooter() (Footer, error) {
	footer, err := r.readMsgpackSection()
	if err != nil {
		return Footer{}, err
	}

	sum, err := decodeHexChecksum(footer.OriginalChecksum)
	if err != nil {
		return Footer{}, err
	}

	raw := make([]byte, len(sum))
	if _, err := io.ReadFull(r.br, raw); err != nil {
		return Footer{}, errs.Wrap(errs.IoError, "container.Reader.ReadFooter", "read original checksum", err)
	}
	if !bytes.Equal(raw, sum) {
		return Footer{}, errs.New(errs.IntegrityFailure, "container.Reader.ReadFooter", nil)
	}

	var trailer [10]byte
	if _, err := io.ReadFull(r.br, trailer[:]); err != nil {
		return Footer{}, errs.Wrap(errs.IoError, "container.Reader.ReadFooter", "read trailer magic", err)
	}
	if trailer != TrailerMagic {
		return Footer{}, errs.New(errs.IntegrityFailure, "container.Reader.ReadFooter", nil)
	}

	return Footer{Header: footer, OriginalChecksum: raw}, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}
