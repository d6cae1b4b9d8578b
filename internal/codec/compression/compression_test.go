package compression

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecs_RoundTrip(t *testing.T) {
	data := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog ", 100))

	cases := []struct {
		algorithm string
		level     int
	}{
		{"none", 0},
		{"zstd", 0},
		{"zstd", 19},
		{"lz4", 0},
		{"brotli", 0},
		{"gzip", 0},
	}

	for _, tc := range cases {
		t.Run(tc.algorithm, func(t *testing.T) {
			codec, err := New(tc.algorithm, tc.level)
			require.NoError(t, err)

			compressed, err := codec.Compress(data)
			require.NoError(t, err)

			restored, err := codec.Decompress(compressed)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(data, restored))
		})
	}
}

func TestCodecs_RoundTripEmptyPayload(t *testing.T) {
	for _, algorithm := range []string{"none", "zstd", "lz4", "brotli", "gzip"} {
		t.Run(algorithm, func(t *testing.T) {
			codec, err := New(algorithm, 0)
			require.NoError(t, err)

			compressed, err := codec.Compress(nil)
			require.NoError(t, err)

			restored, err := codec.Decompress(compressed)
			require.NoError(t, err)
			assert.Empty(t, restored)
		})
	}
}

func TestNew_RejectsUnknownAlgorithm(t *testing.T) {
	_, err := New("lzma", 0)
	assert.Error(t, err)
}

func TestNewZstd_RejectsOutOfRangeLevel(t *testing.T) {
	_, err := NewZstd(0)
	assert.Error(t, err)
	_, err = NewZstd(23)
	assert.Error(t, err)
}

func TestNewBrotli_RejectsOutOfRangeQuality(t *testing.T) {
	_, err := NewBrotli(12)
	assert.Error(t, err)
}

func TestNewGzip_RejectsOutOfRangeLevel(t *testing.T) {
	_, err := NewGzip(10)
	assert.Error(t, err)
}
