package stage

import (
	"context"
	"sync"

	"github.com/adapipe/adapipe/internal/chunk"
	"github.com/adapipe/adapipe/internal/codec/checksum"
	"github.com/adapipe/adapipe/internal/procctx"
)

// ChecksumStage updates a running digest over the chunk stream and passes
// the payload through unchanged in both directions. Per chunk it is a pure
// identity transform — ProcessForward/ProcessInverse never block and never
// touch the digest directly, so they are trivially safe to call
// concurrently across workers on distinct chunks.
//
// The digest itself is order-sensitive (a running hash cannot be updated
// out of order), so folding happens exclusively through Fold, which the
// executor calls once per chunk in strict sequence-number order from a
// single goroutine: its reader goroutine for input checksums, its writer
// goroutine for output checksums — see internal/executor's digest
// discipline. The mutex here guards Sum reads racing the last Fold, not
// concurrent Fold calls (there are never any).
type ChecksumStage struct {
	name   string
	mu     sync.Mutex
	digest *checksum.Digest
}

// NewChecksumStage wraps a running Digest as a Stage. digest may be nil,
// denoting a disabled checksum slot (algorithm "none").
func NewChecksumStage(name string, digest *checksum.Digest) *ChecksumStage {
	return &ChecksumStage{name: name, digest: digest}
}

func (s *ChecksumStage) Name() string { return s.name }
func (s *ChecksumStage) Kind() Kind   { return KindChecksum }
func (s *ChecksumStage) PositionRequirement() PositionRequirement {
	return PositionFirst // also legal as PositionLast; ValidateOrder checks both
}

func (s *ChecksumStage) ProcessForward(_ context.Context, c chunk.FileChunk, _ *procctx.Context) (chunk.FileChunk, error) {
	return c, nil
}

func (s *ChecksumStage) ProcessInverse(_ context.Context, c chunk.FileChunk, _ *procctx.Context) (chunk.FileChunk, error) {
	return c, nil
}

// Fold folds payload into the running digest and records the new value
// into pc's checksum map under this stage's name. Must be called in strict
// sequence-number order by exactly one goroutine per run.
func (s *ChecksumStage) Fold(payload []byte, pc *procctx.Context) {
	if s.digest == nil {
		return
	}
	s.mu.Lock()
	s.digest.Write(payload)
	sum := s.digest.Sum()
	s.mu.Unlock()
	pc.SetChecksum(s.name, sum)
}

// Sum returns the digest's current value.
func (s *ChecksumStage) Sum() []byte {
	if s.digest == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.digest.Sum()
}

// Enabled reports whether this stage has a live digest (algorithm != none).
func (s *ChecksumStage) Enabled() bool { return s.digest != nil }
