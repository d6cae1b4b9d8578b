package compression

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// Gzip implements Codec with the standard library's compress/gzip, levels
// 0-9. No third-party gzip codec appears anywhere in the example pack;
// gzip's wire format is itself a stdlib-defined concern across the Go
// ecosystem, so this is the one codec in this package built on stdlib.
type Gzip struct {
	level int
}

// NewGzip validates level and returns a Gzip codec.
func NewGzip(level int) (*Gzip, error) {
	if level < gzip.NoCompression || level > gzip.BestCompression {
		return nil, fmt.Errorf("compression: gzip level must be 0-9, got %d", level)
	}
	return &Gzip{level: level}, nil
}

func (c *Gzip) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("compression: gzip writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compression: gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compression: gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Gzip) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("compression: gzip reader: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("compression: gzip read: %w", err)
	}
	return out, nil
}

func (c *Gzip) Algorithm() string { return "gzip" }
func (c *Gzip) Level() int        { return c.level }
