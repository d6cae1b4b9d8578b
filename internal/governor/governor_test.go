package governor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGovernor_AcquireReleaseCPU(t *testing.T) {
	g := New(2, 2)
	assert.Equal(t, 2, g.CPUAvailable())

	require.NoError(t, g.AcquireCPU(context.Background()))
	assert.Equal(t, 1, g.CPUAvailable())

	require.NoError(t, g.AcquireCPU(context.Background()))
	assert.Equal(t, 0, g.CPUAvailable())

	g.ReleaseCPU()
	assert.Equal(t, 1, g.CPUAvailable())
	g.ReleaseCPU()
}

func TestGovernor_AcquireCPUBlocksUntilReleased(t *testing.T) {
	g := New(1, 1)
	require.NoError(t, g.AcquireCPU(context.Background()))

	released := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		g.ReleaseCPU()
		close(released)
	}()

	start := time.Now()
	require.NoError(t, g.AcquireCPU(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
	<-released
	g.ReleaseCPU()
}

func TestGovernor_AcquireCPURespectsContextCancellation(t *testing.T) {
	g := New(1, 1)
	require.NoError(t, g.AcquireCPU(context.Background()))
	defer g.ReleaseCPU()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := g.AcquireCPU(ctx)
	assert.Error(t, err)
}

func TestGovernor_DefaultsWhenNonPositive(t *testing.T) {
	g := New(0, -1)
	assert.Greater(t, g.CPUAvailable(), 0)
	assert.Greater(t, g.FDAvailable(), 0)
}
