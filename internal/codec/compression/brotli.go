package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// Brotli implements Codec with github.com/andybalholm/brotli, quality 0-11.
type Brotli struct {
	quality int
}

// NewBrotli validates quality and returns a Brotli codec.
func NewBrotli(quality int) (*Brotli, error) {
	if quality < 0 || quality > 11 {
		return nil, fmt.Errorf("compression: brotli quality must be 0-11, got %d", quality)
	}
	return &Brotli{quality: quality}, nil
}

func (c *Brotli) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, c.quality)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compression: brotli write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compression: brotli close: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Brotli) Decompress(data []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("compression: brotli read: %w", err)
	}
	return out, nil
}

func (c *Brotli) Algorithm() string { return "brotli" }
func (c *Brotli) Level() int        { return c.quality }
