package compression

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Zstd implements Codec with github.com/klauspost/compress/zstd, levels
// 1-22. Encoder/decoder are built lazily on first use (sync.Once).
type Zstd struct {
	level       int
	encoder     *zstd.Encoder
	decoder     *zstd.Decoder
	encoderOnce sync.Once
	decoderOnce sync.Once
	encoderErr  error
	decoderErr  error
}

// NewZstd validates level and returns a Zstd codec.
func NewZstd(level int) (*Zstd, error) {
	if level < 1 || level > 22 {
		return nil, fmt.Errorf("compression: zstd level must be 1-22, got %d", level)
	}
	return &Zstd{level: level}, nil
}

func (c *Zstd) getEncoder() (*zstd.Encoder, error) {
	c.encoderOnce.Do(func() {
		c.encoder, c.encoderErr = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(c.level)),
			zstd.WithEncoderConcurrency(1),
		)
	})
	return c.encoder, c.encoderErr
}

func (c *Zstd) getDecoder() (*zstd.Decoder, error) {
	c.decoderOnce.Do(func() {
		c.decoder, c.decoderErr = zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(256*1024*1024),
		)
	})
	return c.decoder, c.decoderErr
}

func (c *Zstd) Compress(data []byte) ([]byte, error) {
	enc, err := c.getEncoder()
	if err != nil {
		return nil, fmt.Errorf("compression: zstd encoder: %w", err)
	}
	return enc.EncodeAll(data, make([]byte, 0, len(data))), nil
}

func (c *Zstd) Decompress(data []byte) ([]byte, error) {
	dec, err := c.getDecoder()
	if err != nil {
		return nil, fmt.Errorf("compression: zstd decoder: %w", err)
	}
	return dec.DecodeAll(data, nil)
}

func (c *Zstd) Algorithm() string { return "zstd" }
func (c *Zstd) Level() int        { return c.level }
