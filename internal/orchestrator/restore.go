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
	"github.com/adapipe/adapipe/internal/procctx"
)

// Restore reverses a ".adapipe" container at req.InputPath back into a
// plain file at req.OutputPath, rebuilding the stage chain from the
// container's own header rather than consulting req.PipelineID — a
// container must be self-describing enough to restore without the
// repository that created it.
func (o *Orchestrator) Restore(ctx context.Context, req RunRequest) (*RunReport, error) {
	start := time.Now()
	runID := newRunID()
	ctx = context.WithValue(ctx, logging.ContextKeyRunID, runID)
	log := o.logger.WithContext(ctx).With("input", req.InputPath)
	log.Info("restore run starting")

	if !req.Overwrite {
		if _, statErr := os.Stat(req.OutputPath); statErr == nil {
			return nil, errs.New(errs.InvalidInput, "orchestrator.Restore", fmt.Errorf("output path %q already exists", req.OutputPath))
		}
	}

	cr, header, err := container.Open(req.InputPath)
	if err != nil {
		return nil, err
	}
	defer cr.Close()

	// The container's own pipeline id, now known, joins the run id already
	// on ctx — every subsequent log line for this run carries both.
	ctx = context.WithValue(ctx, logging.ContextKeyPipelineID, header.PipelineID)
	log = o.logger.WithContext(ctx).With("input", req.InputPath)

	defs := descriptorsToDefs(header.Stages)
	chain, err := buildChain(defs, req.KeyProvider, header.RunSalt, o.collector)
	if err != nil {
		return nil, err
	}

	workers := o.workerCount(chainCharacter(defs))
	src := &containerFrameSource{r: cr}

	tw := chunkio.NewWriter(req.OutputPath)
	if err := tw.Begin(); err != nil {
		return nil, err
	}
	sink := &plainSink{w: tw, total: header.TotalChunks, progress: req.Progress, collector: o.collector}

	pc := procctx.New(runID, req.InputPath, req.OutputPath, procctx.SecurityContext{KeyID: firstKeyID(defs)})

	// Checksum sides swap on restore: the output checksum observed container
	// payloads going forward, which are now the source frames; the input
	// checksum observed original bytes, which now emerge at the sink.
	exec := executor.New(chain.stages, workers, o.gov)
	if o.collector != nil {
		exec.SetDepthObserver(o.collector.SetReorderWindowDepth)
	}
	if err := exec.RunInverse(ctx, src, sink, pc, chain.outputChecksums, chain.inputChecksums); err != nil {
		_ = tw.Rollback()
		o.recordOutcome(err)
		log.WithError(err).Error("restore run failed")
		return nil, err
	}

	footer, err := cr.ReadFooter()
	if err != nil {
		_ = tw.Rollback()
		o.recordOutcome(err)
		return nil, err
	}

	if err := tw.Commit(); err != nil {
		_ = tw.Rollback()
		o.recordOutcome(err)
		return nil, err
	}

	restoredChecksum, err := sha256File(req.OutputPath)
	if err != nil {
		o.recordOutcome(err)
		return nil, err
	}
	wantChecksum := container.EncodeHexChecksum(footer.OriginalChecksum)
	if restoredChecksum != wantChecksum {
		_ = removeIfExists(req.OutputPath)
		err := errs.New(errs.IntegrityFailure, "orchestrator.Restore", fmt.Errorf("restored file checksum %s does not match original %s", restoredChecksum, wantChecksum))
		o.recordOutcome(err)
		log.WithError(err).Error("restore integrity check failed")
		return nil, err
	}

	o.recordOutcome(nil)
	report := &RunReport{
		BytesProcessed: pc.BytesProcessed(),
		Duration:       time.Since(start),
		StageTimings:   collectTimings(chain.stages),
		OutputPath:     req.OutputPath,
	}
	log.With("bytes", fmt.Sprint(report.BytesProcessed)).Info("restore run complete")
	return report, nil
}
