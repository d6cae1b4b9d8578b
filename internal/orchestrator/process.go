package orchestrator

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/adapipe/adapipe/internal/chunkio"
	"github.com/adapipe/adapipe/internal/container"
	"github.com/adapipe/adapipe/internal/errs"
	"github.com/adapipe/adapipe/internal/executor"
	"github.com/adapipe/adapipe/internal/logging"
	"github.com/adapipe/adapipe/internal/pipelinedef"
	"github.com/adapipe/adapipe/internal/procctx"
)

// Process runs req.PipelineID's forward chain over req.InputPath, writing a
// ".adapipe" container to req.OutputPath. On any fatal error the staged
// container is rolled back and no partial output is left at OutputPath.
func (o *Orchestrator) Process(ctx context.Context, req RunRequest) (*RunReport, error) {
	start := time.Now()
	runID := newRunID()
	ctx = context.WithValue(ctx, logging.ContextKeyRunID, runID)
	ctx = context.WithValue(ctx, logging.ContextKeyPipelineID, req.PipelineID)
	log := o.logger.WithContext(ctx)
	log.Info("processing run starting")

	def, err := o.repo.Load(ctx, req.PipelineID)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidInput, "orchestrator.Process", "load pipeline definition", err)
	}
	if err := pipelinedef.ValidateForwardOrder(def.Stages); err != nil {
		return nil, errs.Wrap(errs.InvalidStageOrder, "orchestrator.Process", "validate stage order", err)
	}

	if !req.Overwrite {
		if _, statErr := os.Stat(req.OutputPath); statErr == nil {
			return nil, errs.New(errs.InvalidInput, "orchestrator.Process", fmt.Errorf("output path %q already exists", req.OutputPath))
		}
	}

	info, err := os.Stat(req.InputPath)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidInput, "orchestrator.Process", "stat input file", err)
	}
	sourceSize := info.Size()

	runSalt, err := runSaltFor(def.Stages)
	if err != nil {
		return nil, err
	}
	chain, err := buildChain(def.Stages, req.KeyProvider, runSalt, o.collector)
	if err != nil {
		return nil, err
	}

	chunkSize := o.chunkSize(sourceSize)
	workers := o.workerCount(chainCharacter(def.Stages))
	totalChunks := totalChunksFor(sourceSize, chunkSize)

	reader, err := chunkio.Open(req.InputPath, chunkSize)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	src := newHashingSource(reader)

	cw := container.NewWriter(req.OutputPath)
	header := container.Header{
		FormatVersion: uint32(container.FormatVersionMajor),
		OriginalSize:  uint64(sourceSize),
		ChunkSize:     uint32(chunkSize),
		TotalChunks:   totalChunks,
		RunSalt:       runSalt,
		Stages:        stageDescriptors(def.Stages),
		CreatedAt:     time.Now().UTC(),
		PipelineID:    def.ID,
	}
	if err := cw.Begin(header); err != nil {
		return nil, err
	}
	sink := &containerSink{w: cw, total: totalChunks, progress: req.Progress, collector: o.collector}

	pc := procctx.New(runID, req.InputPath, req.OutputPath, procctx.SecurityContext{KeyID: firstKeyID(def.Stages)})

	exec := executor.New(chain.stages, workers, o.gov)
	if o.collector != nil {
		exec.SetDepthObserver(o.collector.SetReorderWindowDepth)
	}
	if err := exec.RunForward(ctx, src, sink, pc, chain.inputChecksums, chain.outputChecksums); err != nil {
		_ = cw.Rollback()
		o.recordOutcome(err)
		log.WithError(err).Error("processing run failed")
		return nil, err
	}

	header.OriginalChecksumAlgo = "sha-256"
	header.OriginalChecksum = container.EncodeHexChecksum(src.Sum())
	if err := cw.Commit(header); err != nil {
		_ = cw.Rollback()
		o.recordOutcome(err)
		return nil, err
	}

	o.recordOutcome(nil)
	report := &RunReport{
		BytesProcessed: pc.BytesProcessed(),
		Duration:       time.Since(start),
		StageTimings:   collectTimings(chain.stages),
		OutputPath:     req.OutputPath,
	}
	log.With("bytes", fmt.Sprint(report.BytesProcessed)).Info("processing run complete")
	return report, nil
}

// recordOutcome increments the run-outcome counter for err's kind, or
// "success" when err is nil.
func (o *Orchestrator) recordOutcome(err error) {
	if o.collector == nil {
		return
	}
	if err == nil {
		o.collector.RecordRunOutcome("success")
		return
	}
	kind, ok := errs.KindOf(err)
	if !ok {
		kind = errs.InternalError
	}
	o.collector.RecordRunOutcome(kind.String())
}

// firstKeyID returns the key id of the first encryption stage, or "" if the
// chain has none. Recorded into the run's SecurityContext for audit.
func firstKeyID(defs []pipelinedef.StageDef) string {
	for _, d := range defs {
		if d.Kind == pipelinedef.KindEncryption {
			return d.KeyID
		}
	}
	return ""
}
