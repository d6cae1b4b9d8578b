package pipelinedef

import (
	"context"
	"errors"
)

// ErrNotFound is wrapped by Repository implementations when no pipeline
// exists for the requested id, so callers can distinguish a missing
// definition from a malformed request.
var ErrNotFound = errors.New("pipeline not found")

// Repository is the persistence collaborator the core depends on: load a
// definition by id, save a new one, delete one, and list summaries. The
// core never talks to a database directly — only this interface.
type Repository interface {
	Load(ctx context.Context, id string) (*PipelineDef, error)
	Save(ctx context.Context, def *PipelineDef) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]PipelineSummary, error)
}
