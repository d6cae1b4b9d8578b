package stage

import (
	"context"

	"github.com/adapipe/adapipe/internal/chunk"
	"github.com/adapipe/adapipe/internal/codec/compression"
	"github.com/adapipe/adapipe/internal/errs"
	"github.com/adapipe/adapipe/internal/procctx"
)

// CompressionStage compresses forward and decompresses inverse. Position
// requirement is Any, but ValidateOrder forbids placing it after an
// encryption stage in the forward chain (compressibility is destroyed by
// encryption).
type CompressionStage struct {
	name  string
	codec compression.Codec
}

// NewCompressionStage wraps a compression codec as a Stage.
func NewCompressionStage(name string, codec compression.Codec) *CompressionStage {
	return &CompressionStage{name: name, codec: codec}
}

func (s *CompressionStage) Name() string                       { return s.name }
func (s *CompressionStage) Kind() Kind                          { return KindCompression }
func (s *CompressionStage) PositionRequirement() PositionRequirement { return PositionAny }

func (s *CompressionStage) ProcessForward(_ context.Context, c chunk.FileChunk, _ *procctx.Context) (chunk.FileChunk, error) {
	out, err := s.codec.Compress(c.Payload)
	if err != nil {
		return chunk.FileChunk{}, errs.Wrap(errs.CodecError, "stage.CompressionStage.ProcessForward", s.name+": compress", err)
	}
	return c.Clone(out), nil
}

func (s *CompressionStage) ProcessInverse(_ context.Context, c chunk.FileChunk, _ *procctx.Context) (chunk.FileChunk, error) {
	out, err := s.codec.Decompress(c.Payload)
	if err != nil {
		return chunk.FileChunk{}, errs.Wrap(errs.CodecError, "stage.CompressionStage.ProcessInverse", s.name+": decompress", err)
	}
	return c.Clone(out), nil
}
