package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_RecordChunkIncrementsCounters(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	c.RecordChunk("forward", 100, 40)
	c.RecordChunk("forward", 50, 20)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.chunksProcessed.WithLabelValues("forward")))
	assert.Equal(t, float64(150), testutil.ToFloat64(c.bytesIn))
	assert.Equal(t, float64(60), testutil.ToFloat64(c.bytesOut))
}

func TestCollector_RecordRunOutcomeTracksIntegrityFailures(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	c.RecordRunOutcome("success")
	c.RecordRunOutcome("integrity_failure")
	c.RecordRunOutcome("integrity_failure")

	assert.Equal(t, float64(1), testutil.ToFloat64(c.runsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.runsTotal.WithLabelValues("integrity_failure")))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.integrityFailures))
}

func TestCollector_ObserveStageDurationRecordsSample(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	c.ObserveStageDuration("compression", 0)
	c.ObserveStageDuration("encryption", 0)

	assert.Equal(t, 2, testutil.CollectAndCount(c.stageDuration))
}
