// Package stage defines the polymorphic Stage contract and its concrete
// variants (compression, encryption, checksum, pass-through). Stages
// operate per-FileChunk rather than on a whole io.Reader, so independent
// chunks can run concurrently across workers.
package stage

import (
	"context"
	"fmt"

	"github.com/adapipe/adapipe/internal/chunk"
	"github.com/adapipe/adapipe/internal/procctx"
)

// Kind identifies which family a Stage belongs to.
type Kind string

const (
	KindCompression Kind = "compression"
	KindEncryption  Kind = "encryption"
	KindChecksum    Kind = "checksum"
	KindPassThrough Kind = "passthrough"
)

// PositionRequirement constrains where a stage may appear in a chain.
type PositionRequirement int

const (
	PositionAny PositionRequirement = iota
	PositionFirst
	PositionLast
)

// Stage is sync and pure with respect to its chunk input; its only
// permitted side effect is updating ProcessingContext's checksum map under
// a key equal to its own Name(). Implementations must be safe for
// concurrent invocation on distinct chunks.
type Stage interface {
	Name() string
	Kind() Kind
	PositionRequirement() PositionRequirement
	ProcessForward(ctx context.Context, c chunk.FileChunk, pc *procctx.Context) (chunk.FileChunk, error)
	ProcessInverse(ctx context.Context, c chunk.FileChunk, pc *procctx.Context) (chunk.FileChunk, error)
}

// ValidateOrder enforces the forward-chain ordering rule: an optional input
// checksum, then compression, then encryption, then an optional output
// checksum. Encryption, when present, must be the last content transform —
// nothing but a trailing checksum may follow it. Returns a plain error
// describing the first violation; the orchestrator checks the chain before
// any I/O and wraps that error as errs.InvalidStageOrder.
func ValidateOrder(stages []Stage) error {
	seenEncryption := false
	for i, s := range stages {
		switch s.Kind() {
		case KindChecksum:
			isFirst := i == 0
			isLast := i == len(stages)-1
			if !isFirst && !isLast {
				return fmt.Errorf("stage %q: checksum stage must be first or last in the chain", s.Name())
			}
		case KindCompression:
			if seenEncryption {
				return fmt.Errorf("stage %q: compression cannot follow encryption", s.Name())
			}
		case KindEncryption:
			if seenEncryption {
				return fmt.Errorf("stage %q: only one encryption stage is permitted", s.Name())
			}
			seenEncryption = true
		case KindPassThrough:
			if seenEncryption {
				return fmt.Errorf("stage %q: content stage cannot follow encryption", s.Name())
			}
		}
	}
	return nil
}
