package orchestrator

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/adapipe/adapipe/internal/chunk"
	"github.com/adapipe/adapipe/internal/metrics"
	"github.com/adapipe/adapipe/internal/procctx"
	"github.com/adapipe/adapipe/internal/stage"
)

// timedStage decorates a Stage with per-invocation wall-clock timing,
// accumulated for RunReport.StageTimings and, when a collector is present,
// observed into adapipe_stage_duration_seconds. It delegates every other
// method, so wrapping never changes ordering validation or dispatch
// behavior — stage.ValidateOrder sees the same Kind()/PositionRequirement()
// the wrapped stage reports.
type timedStage struct {
	inner     stage.Stage
	collector *metrics.Collector
	nanos     int64
}

func withTiming(inner stage.Stage, collector *metrics.Collector) *timedStage {
	return &timedStage{inner: inner, collector: collector}
}

func (t *timedStage) Name() string                                    { return t.inner.Name() }
func (t *timedStage) Kind() stage.Kind                                { return t.inner.Kind() }
func (t *timedStage) PositionRequirement() stage.PositionRequirement { return t.inner.PositionRequirement() }

func (t *timedStage) ProcessForward(ctx context.Context, c chunk.FileChunk, pc *procctx.Context) (chunk.FileChunk, error) {
	start := time.Now()
	out, err := t.inner.ProcessForward(ctx, c, pc)
	t.record(time.Since(start))
	return out, err
}

func (t *timedStage) ProcessInverse(ctx context.Context, c chunk.FileChunk, pc *procctx.Context) (chunk.FileChunk, error) {
	start := time.Now()
	out, err := t.inner.ProcessInverse(ctx, c, pc)
	t.record(time.Since(start))
	return out, err
}

func (t *timedStage) record(d time.Duration) {
	atomic.AddInt64(&t.nanos, int64(d))
	if t.collector != nil {
		t.collector.ObserveStageDuration(string(t.inner.Kind()), d)
	}
}

// Duration returns the accumulated time this stage has spent processing
// chunks across the run so far.
func (t *timedStage) Duration() time.Duration {
	return time.Duration(atomic.LoadInt64(&t.nanos))
}
