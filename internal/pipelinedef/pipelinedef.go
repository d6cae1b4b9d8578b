// Package pipelinedef holds the persisted, immutable pipeline definition
// aggregate: StageDef, PipelineDef, and the builder that validates them
// before they ever reach the repository or the orchestrator.
package pipelinedef

import (
	"fmt"
	"time"

	"github.com/adapipe/adapipe/internal/chunk"
)

// StageKind identifies which stage family a StageDef configures.
type StageKind string

const (
	KindCompression StageKind = "compression"
	KindEncryption  StageKind = "encryption"
	KindChecksum    StageKind = "checksum"
	KindPassThrough StageKind = "passthrough"
)

// StageDef is one entry in a PipelineDef's ordered stage list: an ordinal,
// a kind, an algorithm name, and free-form parameters (compression level,
// key id, and so on).
type StageDef struct {
	Ordinal    int
	Kind       StageKind
	Algorithm  string
	Level      int    // compression level; ignored for non-compression kinds
	KeyID      string // encryption key id; ignored for non-encryption kinds
}

// Status is the lifecycle state of a PipelineDef.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// PipelineDef is the aggregate root: an id, a name, an ordered stage list,
// and lifecycle timestamps. The PostgreSQL repository's Save upserts by id:
// saving a definition whose id is already stored replaces its name, status,
// stages and updated_at in place, and no earlier version is kept.
type PipelineDef struct {
	ID        string
	Name      string
	Stages    []StageDef
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PipelineSummary is the lightweight projection returned by List.
type PipelineSummary struct {
	ID     string
	Name   string
	Status Status
}

// Validate checks the aggregate invariants: at least one stage, contiguous
// ordinals starting at 1, and algorithms consistent with their kind.
func (p *PipelineDef) Validate() error {
	if len(p.Stages) == 0 {
		return fmt.Errorf("pipelinedef: at least one stage required")
	}
	for i, s := range p.Stages {
		if s.Ordinal != i+1 {
			return fmt.Errorf("pipelinedef: ordinals must be contiguous from 1, got %d at position %d", s.Ordinal, i)
		}
		if err := validateAlgorithm(s); err != nil {
			return err
		}
	}
	return ValidateForwardOrder(p.Stages)
}

func validateAlgorithm(s StageDef) error {
	switch s.Kind {
	case KindCompression:
		switch chunk.CompressionAlgo(s.Algorithm) {
		case chunk.CompressionNone, chunk.CompressionZstd, chunk.CompressionLZ4, chunk.CompressionBrotli, chunk.CompressionGzip:
		default:
			return fmt.Errorf("pipelinedef: unknown compression algorithm %q", s.Algorithm)
		}
	case KindEncryption:
		switch chunk.EncryptionAlgo(s.Algorithm) {
		case chunk.EncryptionNone, chunk.EncryptionAES256GCM, chunk.EncryptionChaCha20:
		default:
			return fmt.Errorf("pipelinedef: unknown encryption algorithm %q", s.Algorithm)
		}
		if s.KeyID == "" && chunk.EncryptionAlgo(s.Algorithm) != chunk.EncryptionNone {
			return fmt.Errorf("pipelinedef: encryption stage requires a key id")
		}
	case KindChecksum:
		switch chunk.HashAlgo(s.Algorithm) {
		case chunk.HashNone, chunk.HashSHA256, chunk.HashBLAKE3:
		default:
			return fmt.Errorf("pipelinedef: unknown hash algorithm %q", s.Algorithm)
		}
	case KindPassThrough:
		// no algorithm to validate
	default:
		return fmt.Errorf("pipelinedef: unknown stage kind %q", s.Kind)
	}
	return nil
}

// ValidateForwardOrder enforces the forward-chain ordering rule: an optional
// input checksum, then compression, then encryption, then an optional
// output checksum. Compression is never allowed after encryption.
func ValidateForwardOrder(stages []StageDef) error {
	seenCompression := false
	seenEncryption := false
	for i, s := range stages {
		switch s.Kind {
		case KindChecksum:
			isFirst := i == 0
			isLast := i == len(stages)-1
			if !isFirst && !isLast {
				return fmt.Errorf("pipelinedef: checksum stage at ordinal %d must be first or last", s.Ordinal)
			}
			if seenCompression || seenEncryption {
				if isFirst {
					return fmt.Errorf("pipelinedef: input checksum at ordinal %d must precede compression/encryption", s.Ordinal)
				}
			}
		case KindCompression:
			if seenEncryption {
				return fmt.Errorf("pipelinedef: compression at ordinal %d cannot follow encryption", s.Ordinal)
			}
			seenCompression = true
		case KindEncryption:
			seenEncryption = true
		case KindPassThrough:
			// no ordering constraint
		}
	}
	return nil
}

// Builder assembles a PipelineDef with validation deferred to Build.
type Builder struct {
	name   string
	stages []StageDef
}

// NewBuilder starts a PipelineDef builder for the given name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// AddStage appends a stage; ordinal is assigned automatically from
// insertion order.
func (b *Builder) AddStage(kind StageKind, algorithm string, level int, keyID string) *Builder {
	b.stages = append(b.stages, StageDef{
		Ordinal:   len(b.stages) + 1,
		Kind:      kind,
		Algorithm: algorithm,
		Level:     level,
		KeyID:     keyID,
	})
	return b
}

// Build validates and returns the PipelineDef, or an error describing the
// first invariant violated.
func (b *Builder) Build(id string, now time.Time) (*PipelineDef, error) {
	def := &PipelineDef{
		ID:        id,
		Name:      b.name,
		Stages:    b.stages,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}
