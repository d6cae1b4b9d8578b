package chunk

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSize_RejectsOutOfRange(t *testing.T) {
	_, err := NewSize(512)
	assert.Error(t, err)

	_, err = NewSize(1024 << 20)
	assert.Error(t, err)

	s, err := NewSize(64 << 10)
	assert.NoError(t, err)
	assert.EqualValues(t, 64<<10, s)
}

func TestAdaptiveSize_Tiers(t *testing.T) {
	cases := []struct {
		sourceSize int64
		want       Size
	}{
		{0, 64 << 10},
		{1 << 20, 64 << 10},
		{50 << 20, 256 << 10},
		{500 << 20, 1 << 20},
		{5 << 30, 4 << 20},
		{20 << 30, 16 << 20},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, AdaptiveSize(c.sourceSize))
	}
}

func TestNewWorkerCount_RejectsOutOfRange(t *testing.T) {
	_, err := NewWorkerCount(0)
	assert.Error(t, err)

	_, err = NewWorkerCount(2*runtime.NumCPU() + 1)
	assert.Error(t, err)

	w, err := NewWorkerCount(1)
	assert.NoError(t, err)
	assert.EqualValues(t, 1, w)
}

func TestAdaptiveWorkerCount_CPUHeavyAtLeastMixed(t *testing.T) {
	mixed := AdaptiveWorkerCount(ChainMixed)
	heavy := AdaptiveWorkerCount(ChainCPUHeavy)
	assert.GreaterOrEqual(t, int(heavy), int(mixed))
	assert.GreaterOrEqual(t, int(mixed), 1)
	assert.LessOrEqual(t, int(heavy), 2*runtime.NumCPU())
}

func TestFileChunk_CloneReplacesPayloadOnly(t *testing.T) {
	c := FileChunk{
		SequenceNumber:  5,
		Offset:          100,
		Payload:         []byte("original"),
		IsFinal:         true,
		ChecksumRunning: []byte{1, 2, 3},
	}
	clone := c.Clone([]byte("replaced"))

	assert.Equal(t, c.SequenceNumber, clone.SequenceNumber)
	assert.Equal(t, c.Offset, clone.Offset)
	assert.Equal(t, c.IsFinal, clone.IsFinal)
	assert.Equal(t, c.ChecksumRunning, clone.ChecksumRunning)
	assert.Equal(t, []byte("replaced"), clone.Payload)
}
