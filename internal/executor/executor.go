// Package executor drives one run's chunked, concurrent stage processing:
// a reader goroutine, a bounded worker pool, and a reorder-window writer
// goroutine that commits chunks in strict sequence order regardless of
// worker completion order.
package executor

import (
	"context"
	"errors"

	"github.com/adapipe/adapipe/internal/chunk"
	"github.com/adapipe/adapipe/internal/errs"
	"github.com/adapipe/adapipe/internal/governor"
	"github.com/adapipe/adapipe/internal/procctx"
	"github.com/adapipe/adapipe/internal/stage"
)

// Source yields chunks in order, terminating the sequence with one whose
// IsFinal is true. Implemented by *chunkio.Reader.
type Source interface {
	Next(ctx context.Context) (chunk.FileChunk, bool, error)
}

// Sink receives transformed chunks strictly in sequence order. Finalizing or
// discarding the run is left to the caller that owns the underlying
// *chunkio.Writer or *container.Writer the Sink wraps.
type Sink interface {
	WriteChunk(c chunk.FileChunk) error
}

// Executor runs one source through a stage chain to a sink, fanned out
// across a worker pool and reassembled in order.
type Executor struct {
	stages  []stage.Stage
	workers int
	gov     *governor.Governor
	onDepth func(int)
}

// SetDepthObserver registers fn to be called with the reorder window's
// depth after every insertion and drain. Used to feed the window-depth
// gauge; fn runs on the writer goroutine and must be cheap.
func (e *Executor) SetDepthObserver(fn func(int)) { e.onDepth = fn }

// New builds an Executor for the given forward or inverse stage chain.
// gov may be nil, in which case codec calls run without CPU-permit gating
// (useful for tests with a small, trusted workload).
func New(stages []stage.Stage, workers int, gov *governor.Governor) *Executor {
	if workers < 1 {
		workers = 1
	}
	return &Executor{stages: stages, workers: workers, gov: gov}
}

type workItem struct {
	chunk chunk.FileChunk
	err   error
}

// RunForward reads from src, runs every chunk through the stage chain's
// ProcessForward in order, and commits results to sink in sequence order.
//
// srcChecksums and sinkChecksums (either may be nil) receive payloads via
// Fold, in strict sequence order: srcChecksums observe each chunk as it is
// read — the chain-position-zero view of the stream — from the reader
// goroutine, which is single-threaded and ordered by construction;
// sinkChecksums observe each committed chunk from the same goroutine that
// calls sink.WriteChunk. Both satisfy the digest-folder discipline without
// any per-chunk lock contention.
func (e *Executor) RunForward(ctx context.Context, src Source, sink Sink, pc *procctx.Context, srcChecksums, sinkChecksums []*stage.ChecksumStage) error {
	return e.run(ctx, src, sink, pc, srcChecksums, sinkChecksums, true)
}

// RunInverse mirrors RunForward but calls ProcessInverse. On restore the
// caller swaps the two checksum sets: the stage that observed original
// bytes going forward sees them again on the sink side coming back.
func (e *Executor) RunInverse(ctx context.Context, src Source, sink Sink, pc *procctx.Context, srcChecksums, sinkChecksums []*stage.ChecksumStage) error {
	return e.run(ctx, src, sink, pc, srcChecksums, sinkChecksums, false)
}

func (e *Executor) run(ctx context.Context, src Source, sink Sink, pc *procctx.Context, srcChecksums, sinkChecksums []*stage.ChecksumStage, forward bool) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	readQueue := make(chan chunk.FileChunk, e.workers)
	writeQueue := make(chan workItem, e.workers)
	readErrCh := make(chan error, 1)
	writeErrCh := make(chan error, 1)

	go e.readLoop(ctx, src, readQueue, pc, srcChecksums, readErrCh, cancel)

	done := make(chan struct{})
	for i := 0; i < e.workers; i++ {
		go e.workerLoop(ctx, readQueue, writeQueue, pc, forward, cancel, done)
	}
	go func() {
		for i := 0; i < e.workers; i++ {
			<-done
		}
		close(writeQueue)
	}()

	e.writeLoop(ctx, writeQueue, sink, pc, sinkChecksums, writeErrCh, cancel)

	readErr := <-readErrCh
	writeErr := <-writeErrCh

	// context.Cause reports whichever goroutine first called cancel with a
	// real error, independent of which of readErrCh/writeErrCh drains first
	// above. readLoop's ctx.Done() branch never calls cancel itself, so a
	// generic Cancelled from the reader cannot mask a worker's or writer's
	// CodecError/IntegrityFailure/IoError.
	if cause := context.Cause(ctx); cause != nil {
		var fatal *errs.Error
		if errors.As(cause, &fatal) {
			return fatal
		}
		return errs.Wrap(errs.Cancelled, "executor.run", "run cancelled", cause)
	}
	if writeErr != nil {
		return writeErr
	}
	if readErr != nil {
		return readErr
	}
	return nil
}

func (e *Executor) readLoop(ctx context.Context, src Source, out chan<- chunk.FileChunk, pc *procctx.Context, srcChecksums []*stage.ChecksumStage, errCh chan<- error, cancel context.CancelCauseFunc) {
	defer close(out)
	for {
		c, _, err := src.Next(ctx)
		if err != nil {
			cancel(err)
			errCh <- err
			return
		}
		for _, cs := range srcChecksums {
			cs.Fold(c.Payload, pc)
		}
		select {
		case out <- c:
		case <-ctx.Done():
			errCh <- errs.Wrap(errs.Cancelled, "executor.readLoop", "read cancelled", context.Cause(ctx))
			return
		}
		if c.IsFinal {
			errCh <- nil
			return
		}
	}
}

func (e *Executor) workerLoop(ctx context.Context, in <-chan chunk.FileChunk, out chan<- workItem, pc *procctx.Context, forward bool, cancel context.CancelCauseFunc, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()
	workerPC := pc.Clone()
	for {
		select {
		case c, ok := <-in:
			if !ok {
				return
			}
			transformed, err := e.processChunk(ctx, c, workerPC, forward)
			if err != nil {
				cancel(err)
				select {
				case out <- workItem{err: err}:
				case <-ctx.Done():
				}
				return
			}
			select {
			case out <- workItem{chunk: transformed}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (e *Executor) processChunk(ctx context.Context, c chunk.FileChunk, pc *procctx.Context, forward bool) (chunk.FileChunk, error) {
	if e.gov != nil {
		if err := e.gov.AcquireCPU(ctx); err != nil {
			return chunk.FileChunk{}, err
		}
		defer e.gov.ReleaseCPU()
	}
	cur := c
	var err error
	if forward {
		for _, s := range e.stages {
			cur, err = s.ProcessForward(ctx, cur, pc)
			if err != nil {
				return chunk.FileChunk{}, err
			}
		}
	} else {
		for i := len(e.stages) - 1; i >= 0; i-- {
			cur, err = e.stages[i].ProcessInverse(ctx, cur, pc)
			if err != nil {
				return chunk.FileChunk{}, err
			}
		}
	}
	return cur, nil
}

// maxReorderFactor bounds the reorder window depth at 2*workers, per the
// ordering-guarantee invariant: exceeding it indicates a logic error
// upstream (a worker skipped or duplicated a sequence number).
const maxReorderFactor = 2

func (e *Executor) writeLoop(ctx context.Context, in <-chan workItem, sink Sink, pc *procctx.Context, sinkChecksums []*stage.ChecksumStage, errCh chan<- error, cancel context.CancelCauseFunc) {
	window := make(map[uint64]chunk.FileChunk)
	var nextExpected uint64
	maxDepth := maxReorderFactor * e.workers

	fold := func(c chunk.FileChunk) {
		for _, cs := range sinkChecksums {
			cs.Fold(c.Payload, pc)
		}
	}

	commit := func(c chunk.FileChunk) error {
		if err := sink.WriteChunk(c); err != nil {
			return err
		}
		fold(c)
		pc.AddBytesProcessed(int64(len(c.Payload)))
		return nil
	}

	fail := func(err error) {
		cancel(err)
		errCh <- err
	}

	for item := range in {
		if item.err != nil {
			errCh <- item.err
			return
		}
		c := item.chunk
		if c.SequenceNumber == nextExpected {
			if err := commit(c); err != nil {
				fail(err)
				return
			}
			nextExpected++
			for {
				buffered, ok := window[nextExpected]
				if !ok {
					break
				}
				delete(window, nextExpected)
				if err := commit(buffered); err != nil {
					fail(err)
					return
				}
				nextExpected++
			}
			if e.onDepth != nil {
				e.onDepth(len(window))
			}
			continue
		}
		window[c.SequenceNumber] = c
		if e.onDepth != nil {
			e.onDepth(len(window))
		}
		if len(window) > maxDepth {
			fail(errs.New(errs.InternalError, "executor.writeLoop", nil))
			return
		}
	}
	if len(window) != 0 {
		errCh <- errs.New(errs.InternalError, "executor.writeLoop", nil)
		return
	}
	errCh <- nil
}
