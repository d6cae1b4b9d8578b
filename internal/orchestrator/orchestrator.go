// Package orchestrator wires the stage chain, chunk I/O, container format,
// and executor together for one run: Process drives a file through a
// PipelineDef's forward chain into a ".adapipe" container; Restore reverses
// a container back into a plain file. Dependencies are constructed once and
// threaded into a long-lived Orchestrator; each run logs at every decision
// point it makes.
package orchestrator

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/adapipe/adapipe/internal/chunk"
	"github.com/adapipe/adapipe/internal/codec/checksum"
	"github.com/adapipe/adapipe/internal/codec/compression"
	"github.com/adapipe/adapipe/internal/codec/encryption"
	"github.com/adapipe/adapipe/internal/config"
	"github.com/adapipe/adapipe/internal/container"
	"github.com/adapipe/adapipe/internal/errs"
	"github.com/adapipe/adapipe/internal/governor"
	"github.com/adapipe/adapipe/internal/keyprovider"
	"github.com/adapipe/adapipe/internal/logging"
	"github.com/adapipe/adapipe/internal/metrics"
	"github.com/adapipe/adapipe/internal/pipelinedef"
	"github.com/adapipe/adapipe/internal/stage"
)

// ProgressReporter is called once per chunk committed to the sink, in
// sequence order. The CLI's default implementation renders a progress
// line; tests pass nil (Orchestrator treats a nil reporter as a no-op).
type ProgressReporter interface {
	OnChunkWritten(sequenceNumber, totalChunks uint64)
}

// RunRequest is the single input the orchestrator needs for either
// direction of a run. Restoration requires KeyProvider to resolve the same
// key ids the original run used.
type RunRequest struct {
	InputPath   string
	OutputPath  string
	PipelineID  string
	Overwrite   bool
	KeyProvider keyprovider.Provider
	Progress    ProgressReporter
}

// RunReport summarizes a completed run.
type RunReport struct {
	BytesProcessed int64
	Duration       time.Duration
	StageTimings   map[string]time.Duration
	OutputPath     string
}

// Orchestrator drives processing and restoration runs. A single instance is
// constructed once per process and is safe for concurrent use across runs:
// each call to Process/Restore builds its own executor, stage chain, and
// ProcessingContext.
type Orchestrator struct {
	repo      pipelinedef.Repository
	gov       *governor.Governor
	collector *metrics.Collector
	logger    *logging.Logger
	sizing    config.SizingConfig
}

// New builds an Orchestrator. collector and logger may be nil.
func New(repo pipelinedef.Repository, gov *governor.Governor, collector *metrics.Collector, logger *logging.Logger, sizing config.SizingConfig) *Orchestrator {
	if logger == nil {
		logger = logging.NewLogger(nil)
	}
	return &Orchestrator{repo: repo, gov: gov, collector: collector, logger: logger.Named("orchestrator"), sizing: sizing}
}

func (o *Orchestrator) chunkSize(sourceSize int64) chunk.Size {
	if o.sizing.ChunkSizeOverride > 0 {
		if sz, err := chunk.NewSize(o.sizing.ChunkSizeOverride); err == nil {
			return sz
		}
	}
	return chunk.AdaptiveSize(sourceSize)
}

func (o *Orchestrator) workerCount(character chunk.ChainCharacter) int {
	if o.sizing.WorkerCountOverride > 0 {
		if wc, err := chunk.NewWorkerCount(o.sizing.WorkerCountOverride); err == nil {
			return int(wc)
		}
	}
	f := o.sizing.MixedFactor
	if character == chunk.ChainCPUHeavy {
		f = o.sizing.CPUHeavyFactor
	}
	if f > 0 {
		if wc, err := chunk.NewWorkerCount(int(float64(runtime.NumCPU())*f + 0.5)); err == nil {
			return int(wc)
		}
	}
	return int(chunk.AdaptiveWorkerCount(character))
}

func chainCharacter(stages []pipelinedef.StageDef) chunk.ChainCharacter {
	for _, s := range stages {
		if s.Kind == pipelinedef.KindCompression || s.Kind == pipelinedef.KindEncryption {
			return chunk.ChainCPUHeavy
		}
	}
	return chunk.ChainMixed
}

func stageName(ordinal int, kind pipelinedef.StageKind) string {
	return fmt.Sprintf("%s-%d", kind, ordinal)
}

// stageChain is a built, validated chain plus the checksum stages split by
// which end of the stream they observe: inputChecksums sit at chain
// position zero and hash the bytes entering the chain; outputChecksums sit
// at the chain's tail and hash the bytes leaving it. The executor folds
// each set on the matching side of the run.
type stageChain struct {
	stages          []stage.Stage
	inputChecksums  []*stage.ChecksumStage
	outputChecksums []*stage.ChecksumStage
}

// buildChain constructs one Stage per StageDef, in ordinal order, and
// validates the forward ordering rule before any I/O happens.
func buildChain(defs []pipelinedef.StageDef, provider keyprovider.Provider, runSalt []byte, collector *metrics.Collector) (*stageChain, error) {
	chain := &stageChain{stages: make([]stage.Stage, 0, len(defs))}

	for i, d := range defs {
		name := stageName(d.Ordinal, d.Kind)
		switch d.Kind {
		case pipelinedef.KindCompression:
			codec, err := compression.New(d.Algorithm, d.Level)
			if err != nil {
				return nil, errs.Wrap(errs.InvalidInput, "orchestrator.buildChain", "build compression codec", err)
			}
			chain.stages = append(chain.stages, withTiming(stage.NewCompressionStage(name, codec), collector))
		case pipelinedef.KindEncryption:
			codec, err := encryption.New(d.Algorithm)
			if err != nil {
				return nil, errs.Wrap(errs.InvalidInput, "orchestrator.buildChain", "build encryption codec", err)
			}
			s, err := stage.NewEncryptionStage(name, codec, provider, d.KeyID, runSalt)
			if err != nil {
				return nil, err
			}
			chain.stages = append(chain.stages, withTiming(s, collector))
		case pipelinedef.KindChecksum:
			digest, err := checksum.New(d.Algorithm)
			if err != nil {
				return nil, errs.Wrap(errs.InvalidInput, "orchestrator.buildChain", "build checksum digest", err)
			}
			cs := stage.NewChecksumStage(name, digest)
			if i == 0 {
				chain.inputChecksums = append(chain.inputChecksums, cs)
			} else {
				chain.outputChecksums = append(chain.outputChecksums, cs)
			}
			chain.stages = append(chain.stages, withTiming(cs, collector))
		case pipelinedef.KindPassThrough:
			chain.stages = append(chain.stages, stage.NewPassThroughStage(name, stage.KindPassThrough))
		default:
			return nil, errs.New(errs.InvalidInput, "orchestrator.buildChain", nil)
		}
	}
	if err := stage.ValidateOrder(chain.stages); err != nil {
		return nil, errs.Wrap(errs.InvalidStageOrder, "orchestrator.buildChain", "validate stage order", err)
	}
	return chain, nil
}

func runSaltFor(defs []pipelinedef.StageDef) ([]byte, error) {
	for _, d := range defs {
		if d.Kind == pipelinedef.KindEncryption {
			salt := make([]byte, 16)
			if _, err := rand.Read(salt); err != nil {
				return nil, errs.Wrap(errs.InternalError, "orchestrator.runSaltFor", "generate run salt", err)
			}
			return salt, nil
		}
	}
	return nil, nil
}

func stageDescriptors(defs []pipelinedef.StageDef) []container.StageDescriptor {
	out := make([]container.StageDescriptor, len(defs))
	for i, d := range defs {
		out[i] = container.StageDescriptor{
			Ordinal:   d.Ordinal,
			Kind:      string(d.Kind),
			Algorithm: d.Algorithm,
			Level:     d.Level,
			KeyID:     d.KeyID,
		}
	}
	return out
}

func descriptorsToDefs(descs []container.StageDescriptor) []pipelinedef.StageDef {
	out := make([]pipelinedef.StageDef, len(descs))
	for i, d := range descs {
		out[i] = pipelinedef.StageDef{
			Ordinal:   d.Ordinal,
			Kind:      pipelinedef.StageKind(d.Kind),
			Algorithm: d.Algorithm,
			Level:     d.Level,
			KeyID:     d.KeyID,
		}
	}
	return out
}

func totalChunksFor(sourceSize int64, chunkSize chunk.Size) uint64 {
	if sourceSize == 0 {
		return 1
	}
	n := sourceSize / int64(chunkSize)
	if sourceSize%int64(chunkSize) != 0 {
		n++
	}
	return uint64(n)
}

func collectTimings(stages []stage.Stage) map[string]time.Duration {
	out := make(map[string]time.Duration, len(stages))
	for _, s := range stages {
		if ts, ok := s.(*timedStage); ok {
			out[ts.Name()] = ts.Duration()
		}
	}
	return out
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// newRunID mints a time-ordered run identifier. UUIDv7 is sortable like a
// ULID without pulling in a dependency the rest of the module doesn't
// otherwise use.
func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return container.EncodeHexChecksum(h.Sum(nil)), nil
}
