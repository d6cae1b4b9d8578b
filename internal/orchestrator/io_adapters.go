package orchestrator

import (
	"context"
	"crypto/sha256"
	"hash"

	"github.com/adapipe/adapipe/internal/chunk"
	"github.com/adapipe/adapipe/internal/chunkio"
	"github.com/adapipe/adapipe/internal/container"
	"github.com/adapipe/adapipe/internal/metrics"
)

// hashingSource wraps a chunkio.Reader and folds every chunk's pre-transform
// payload into a SHA-256 digest as it is read, in sequence order (the
// reader is single-threaded and strictly ordered, so no synchronization is
// needed here). This is the run's authoritative original-file checksum,
// independent of any optional checksum stage in the chain: restoration
// compares a single end-to-end digest of the original bytes, not a
// re-derived per-chunk chain.
type hashingSource struct {
	r *chunkio.Reader
	h hash.Hash
}

func newHashingSource(r *chunkio.Reader) *hashingSource {
	return &hashingSource{r: r, h: sha256.New()}
}

func (s *hashingSource) Next(ctx context.Context) (chunk.FileChunk, bool, error) {
	c, done, err := s.r.Next(ctx)
	if err != nil || done {
		return c, done, err
	}
	s.h.Write(c.Payload)
	return c, false, nil
}

func (s *hashingSource) Sum() []byte { return s.h.Sum(nil) }

// containerFrameSource adapts a container.Reader to executor.Source for
// restoration: it reads one frame per Next call and never reports done;
// the executor's reader stops calling it after the frame with IsFinal set.
type containerFrameSource struct {
	r *container.Reader
}

func (s *containerFrameSource) Next(_ context.Context) (chunk.FileChunk, bool, error) {
	f, err := s.r.NextFrame()
	if err != nil {
		return chunk.FileChunk{}, false, err
	}
	return chunk.FileChunk{SequenceNumber: f.SequenceNumber, Payload: f.Payload, IsFinal: f.IsFinal}, false, nil
}

// containerSink adapts a container.Writer to executor.Sink for processing
// runs: every committed chunk becomes one on-disk frame.
type containerSink struct {
	w         *container.Writer
	total     uint64
	progress  ProgressReporter
	collector *metrics.Collector
}

func (s *containerSink) WriteChunk(c chunk.FileChunk) error {
	if err := s.w.WriteFrame(c.SequenceNumber, c.Payload, c.IsFinal); err != nil {
		return err
	}
	if s.collector != nil {
		s.collector.RecordChunk("forward", 0, len(c.Payload))
	}
	if s.progress != nil {
		s.progress.OnChunkWritten(c.SequenceNumber, s.total)
	}
	return nil
}

// plainSink adapts a chunkio.Writer to executor.Sink for restoration: every
// committed chunk is appended to the staging file as plain bytes, in
// sequence order (guaranteed by the executor's reorder window).
type plainSink struct {
	w         *chunkio.Writer
	total     uint64
	progress  ProgressReporter
	collector *metrics.Collector
}

func (s *plainSink) WriteChunk(c chunk.FileChunk) error {
	if err := s.w.WriteChunk(c.Payload); err != nil {
		return err
	}
	if s.collector != nil {
		s.collector.RecordChunk("inverse", 0, len(c.Payload))
	}
	if s.progress != nil {
		s.progress.OnChunkWritten(c.SequenceNumber, s.total)
	}
	return nil
}
