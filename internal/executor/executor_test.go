package executor

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adapipe/adapipe/internal/chunk"
	"github.com/adapipe/adapipe/internal/codec/checksum"
	"github.com/adapipe/adapipe/internal/errs"
	"github.com/adapipe/adapipe/internal/procctx"
	"github.com/adapipe/adapipe/internal/stage"
)

type sliceSource struct {
	chunks []chunk.FileChunk
	idx    int
}

func (s *sliceSource) Next(ctx context.Context) (chunk.FileChunk, bool, error) {
	if err := ctx.Err(); err != nil {
		return chunk.FileChunk{}, false, err
	}
	if s.idx >= len(s.chunks) {
		return chunk.FileChunk{}, true, nil
	}
	c := s.chunks[s.idx]
	s.idx++
	return c, false, nil
}

func makeChunks(payloads []string) []chunk.FileChunk {
	out := make([]chunk.FileChunk, len(payloads))
	for i, p := range payloads {
		out[i] = chunk.FileChunk{
			SequenceNumber: uint64(i),
			Payload:        []byte(p),
			IsFinal:        i == len(payloads)-1,
		}
	}
	return out
}

type recordingSink struct {
	mu       sync.Mutex
	received []chunk.FileChunk
}

func (s *recordingSink) WriteChunk(c chunk.FileChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Payload must be copied: stages may reuse scratch buffers across calls.
	payload := append([]byte(nil), c.Payload...)
	s.received = append(s.received, chunk.FileChunk{SequenceNumber: c.SequenceNumber, Payload: payload, IsFinal: c.IsFinal})
	return nil
}

// delayedInvert passes payloads through unchanged in both directions, after
// an artificially variable per-sequence delay so workers finish out of
// submission order — exercising the writer's reorder window.
type delayedInvert struct {
	delays map[uint64]time.Duration
}

func (s *delayedInvert) Name() string                                      { return "delayed" }
func (s *delayedInvert) Kind() stage.Kind                                  { return stage.KindCompression }
func (s *delayedInvert) PositionRequirement() stage.PositionRequirement    { return stage.PositionAny }

func (s *delayedInvert) ProcessForward(ctx context.Context, c chunk.FileChunk, _ *procctx.Context) (chunk.FileChunk, error) {
	if d, ok := s.delays[c.SequenceNumber]; ok {
		time.Sleep(d)
	}
	return c, nil
}

func (s *delayedInvert) ProcessInverse(ctx context.Context, c chunk.FileChunk, pc *procctx.Context) (chunk.FileChunk, error) {
	return s.ProcessForward(ctx, c, pc)
}

func TestExecutor_RunForward_CommitsInSequenceOrderDespiteWorkerSkew(t *testing.T) {
	payloads := []string{"a", "b", "c", "d", "e", "f"}
	src := &sliceSource{chunks: makeChunks(payloads)}
	sink := &recordingSink{}
	pc := procctx.New("run-1", "in", "out", procctx.SecurityContext{})

	delayed := &delayedInvert{delays: map[uint64]time.Duration{
		0: 30 * time.Millisecond,
		2: 20 * time.Millisecond,
		4: 10 * time.Millisecond,
	}}

	exec := New([]stage.Stage{delayed}, 4, nil)
	err := exec.RunForward(context.Background(), src, sink, pc, nil, nil)
	require.NoError(t, err)

	require.Len(t, sink.received, len(payloads))
	for i, c := range sink.received {
		assert.EqualValues(t, i, c.SequenceNumber)
		assert.Equal(t, payloads[i], string(c.Payload))
	}
	assert.True(t, sink.received[len(sink.received)-1].IsFinal)
}

type erroringStage struct {
	failOn uint64
}

func (s *erroringStage) Name() string                                   { return "erroring" }
func (s *erroringStage) Kind() stage.Kind                               { return stage.KindCompression }
func (s *erroringStage) PositionRequirement() stage.PositionRequirement { return stage.PositionAny }

func (s *erroringStage) ProcessForward(_ context.Context, c chunk.FileChunk, _ *procctx.Context) (chunk.FileChunk, error) {
	if c.SequenceNumber == s.failOn {
		return chunk.FileChunk{}, errs.New(errs.CodecError, "erroringStage",
			fmt.Errorf("synthetic failure at chunk %d", c.SequenceNumber))
	}
	return c, nil
}

func (s *erroringStage) ProcessInverse(ctx context.Context, c chunk.FileChunk, pc *procctx.Context) (chunk.FileChunk, error) {
	return s.ProcessForward(ctx, c, pc)
}

func TestExecutor_RunForward_PropagatesStageError(t *testing.T) {
	payloads := make([]string, 40)
	for i := range payloads {
		payloads[i] = "x"
	}
	src := &sliceSource{chunks: makeChunks(payloads)}
	sink := &recordingSink{}
	pc := procctx.New("run-1", "in", "out", procctx.SecurityContext{})

	// A 40-chunk source with a small worker pool means readLoop is still
	// well short of EOF, likely blocked trying to push further chunks into
	// readQueue, when the failing worker cancels the run. That races
	// readLoop's own ctx.Done() branch (which reports a generic Cancelled)
	// against the worker's real CodecError — asserting the Kind here is
	// what catches the error-kind-masking bug, not just assert.Error.
	exec := New([]stage.Stage{&erroringStage{failOn: 2}}, 4, nil)
	err := exec.RunForward(context.Background(), src, sink, pc, nil, nil)
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok, "expected an *errs.Error, got %T: %v", err, err)
	assert.Equal(t, errs.CodecError, kind)
}

// xorStage flips every payload byte, so source-side and sink-side views of
// the stream differ and the digest-side split is observable.
type xorStage struct{}

func (s *xorStage) Name() string                                   { return "xor" }
func (s *xorStage) Kind() stage.Kind                               { return stage.KindCompression }
func (s *xorStage) PositionRequirement() stage.PositionRequirement { return stage.PositionAny }

func (s *xorStage) transform(c chunk.FileChunk) chunk.FileChunk {
	out := make([]byte, len(c.Payload))
	for i, b := range c.Payload {
		out[i] = b ^ 0xFF
	}
	return c.Clone(out)
}

func (s *xorStage) ProcessForward(_ context.Context, c chunk.FileChunk, _ *procctx.Context) (chunk.FileChunk, error) {
	return s.transform(c), nil
}

func (s *xorStage) ProcessInverse(_ context.Context, c chunk.FileChunk, _ *procctx.Context) (chunk.FileChunk, error) {
	return s.transform(c), nil
}

func TestExecutor_RunForward_FoldsChecksumsOnTheCorrectSide(t *testing.T) {
	payloads := []string{"alpha", "beta", "gamma"}
	src := &sliceSource{chunks: makeChunks(payloads)}
	sink := &recordingSink{}
	pc := procctx.New("run-1", "in", "out", procctx.SecurityContext{})

	srcDigest, err := checksum.New("sha-256")
	require.NoError(t, err)
	sinkDigest, err := checksum.New("sha-256")
	require.NoError(t, err)
	srcCS := stage.NewChecksumStage("checksum-in", srcDigest)
	sinkCS := stage.NewChecksumStage("checksum-out", sinkDigest)

	exec := New([]stage.Stage{&xorStage{}}, 2, nil)
	require.NoError(t, exec.RunForward(context.Background(), src, sink, pc,
		[]*stage.ChecksumStage{srcCS}, []*stage.ChecksumStage{sinkCS}))

	wantSrc := sha256.New()
	wantSink := sha256.New()
	for _, p := range payloads {
		wantSrc.Write([]byte(p))
		for _, b := range []byte(p) {
			wantSink.Write([]byte{b ^ 0xFF})
		}
	}
	assert.Equal(t, wantSrc.Sum(nil), srcCS.Sum())
	assert.Equal(t, wantSink.Sum(nil), sinkCS.Sum())
}

func TestExecutor_RunForward_RespectsCancellation(t *testing.T) {
	payloads := make([]string, 50)
	for i := range payloads {
		payloads[i] = "x"
	}
	src := &sliceSource{chunks: makeChunks(payloads)}
	sink := &recordingSink{}
	pc := procctx.New("run-1", "in", "out", procctx.SecurityContext{})

	delayed := &delayedInvert{delays: map[uint64]time.Duration{0: 50 * time.Millisecond}}
	exec := New([]stage.Stage{delayed}, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := exec.RunForward(ctx, src, sink, pc, nil, nil)
	assert.Error(t, err)
}
