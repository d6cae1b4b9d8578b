package compression

import (
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// LZ4 implements Codec with github.com/pierrec/lz4/v4. LZ4 has no
// configurable level in this codec set (the base spec lists it as
// "no level"); Level always reports 0.
type LZ4 struct{}

// NewLZ4 returns an LZ4 codec.
func NewLZ4() *LZ4 { return &LZ4{} }

func (c *LZ4) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{0}, nil
	}
	buf := make([]byte, lz4.CompressBlockBound(len(data)))
	var compressor lz4.Compressor
	n, err := compressor.CompressBlock(data, buf)
	if err != nil {
		return nil, fmt.Errorf("compression: lz4 compress: %w", err)
	}
	if n == 0 && len(data) > 0 {
		// Incompressible block: lz4 signals this by returning n == 0.
		// Store raw with a one-byte sentinel prefix so Decompress can tell
		// stored blocks from compressed ones.
		return append([]byte{0}, data...), nil
	}
	return append([]byte{1}, buf[:n]...), nil
}

func (c *LZ4) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	tag, body := data[0], data[1:]
	if tag == 0 {
		out := make([]byte, len(body))
		copy(out, body)
		return out, nil
	}
	// Decompressed size is unknown a priori; grow the buffer until it fits.
	out := make([]byte, len(body)*4+64)
	for {
		n, err := lz4.UncompressBlock(body, out)
		if err == nil {
			return out[:n], nil
		}
		out = make([]byte, len(out)*2)
		if len(out) > 1<<30 {
			return nil, fmt.Errorf("compression: lz4 decompress: output too large")
		}
	}
}

func (c *LZ4) Algorithm() string { return "lz4" }
func (c *LZ4) Level() int        { return 0 }
