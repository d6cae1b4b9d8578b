package stage

import (
	"context"

	"github.com/adapipe/adapipe/internal/chunk"
	"github.com/adapipe/adapipe/internal/procctx"
)

// PassThroughStage is the identity stage: it fills an explicit slot in a
// StageDef chain — e.g. a named no-op compression or encryption algorithm
// — rather than that slot being skipped.
type PassThroughStage struct {
	name string
	kind Kind
}

// NewPassThroughStage builds an identity Stage reporting the given kind,
// so a "none" algorithm selection still produces a well-typed chain member.
func NewPassThroughStage(name string, kind Kind) *PassThroughStage {
	return &PassThroughStage{name: name, kind: kind}
}

func (s *PassThroughStage) Name() string { return s.name }
func (s *PassThroughStage) Kind() Kind   { return s.kind }
func (s *PassThroughStage) PositionRequirement() PositionRequirement {
	return PositionAny
}

func (s *PassThroughStage) ProcessForward(_ context.Context, c chunk.FileChunk, _ *procctx.Context) (chunk.FileChunk, error) {
	return c, nil
}

func (s *PassThroughStage) ProcessInverse(_ context.Context, c chunk.FileChunk, _ *procctx.Context) (chunk.FileChunk, error) {
	return c, nil
}
