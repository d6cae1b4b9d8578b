// Package compression provides chunk-local compression codecs: each output
// chunk is independently decompressible, with no cross-chunk dictionary, so
// restoration of any single chunk never depends on its neighbors.
package compression

import "fmt"

// Codec compresses and decompresses single chunks.
type Codec interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Algorithm() string
	Level() int
}

// New builds a Codec for the named algorithm at the given level. A level of
// 0 selects the algorithm's documented default.
func New(algorithm string, level int) (Codec, error) {
	switch algorithm {
	case "", "none":
		return NewNoop(), nil
	case "zstd":
		if level == 0 {
			level = 3
		}
		return NewZstd(level)
	case "lz4":
		return NewLZ4(), nil
	case "brotli":
		if level == 0 {
			level = 6
		}
		return NewBrotli(level)
	case "gzip":
		if level == 0 {
			level = 6
		}
		return NewGzip(level)
	default:
		return nil, fmt.Errorf("compression: unsupported algorithm %q", algorithm)
	}
}
