package chunkio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adapipe/adapipe/internal/chunk"
)

func TestReader_SplitsIntoFixedSizeChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "src.bin")
	require.NoError(t, os.WriteFile(path, []byte("abcdefghij"), 0o600)) // 10 bytes

	r, err := Open(path, chunk.Size(4))
	require.NoError(t, err)
	defer r.Close()

	var got []chunk.FileChunk
	for {
		c, done, err := r.Next(context.Background())
		require.NoError(t, err)
		if done {
			break
		}
		got = append(got, c)
		if c.IsFinal {
			break
		}
	}

	require.Len(t, got, 3)
	assert.Equal(t, []byte("abcd"), got[0].Payload)
	assert.False(t, got[0].IsFinal)
	assert.Equal(t, []byte("efgh"), got[1].Payload)
	assert.False(t, got[1].IsFinal)
	assert.Equal(t, []byte("ij"), got[2].Payload)
	assert.True(t, got[2].IsFinal)

	for i, c := range got {
		assert.EqualValues(t, i, c.SequenceNumber)
	}
}

func TestReader_ExactChunkBoundaryMarksLastFullChunkFinal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "src.bin")
	require.NoError(t, os.WriteFile(path, []byte("abcdefgh"), 0o600)) // 2 * 4 bytes

	r, err := Open(path, chunk.Size(4))
	require.NoError(t, err)
	defer r.Close()

	c0, _, err := r.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), c0.Payload)
	assert.False(t, c0.IsFinal)

	c1, _, err := r.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("efgh"), c1.Payload)
	assert.True(t, c1.IsFinal, "a source that is an exact multiple of the chunk size must not yield a trailing empty chunk")

	_, done, err := r.Next(context.Background())
	require.NoError(t, err)
	assert.True(t, done)
}

func TestReader_EmptySourceYieldsOneEmptyFinalChunk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	r, err := Open(path, chunk.Size(64<<10))
	require.NoError(t, err)
	defer r.Close()

	c, done, err := r.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, done)
	assert.True(t, c.IsFinal)
	assert.Len(t, c.Payload, 0)

	_, done, err = r.Next(context.Background())
	require.NoError(t, err)
	assert.True(t, done)
}

func TestReader_CancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "src.bin")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o600))

	r, err := Open(path, chunk.Size(4))
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = r.Next(ctx)
	assert.Error(t, err)
}

func TestWriter_CommitRenamesStagingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	w := NewWriter(path)
	require.NoError(t, w.Begin())
	require.NoError(t, w.WriteChunk([]byte("hello ")))
	require.NoError(t, w.WriteChunk([]byte("world")))

	_, err := os.Stat(w.StagingPath())
	require.NoError(t, err)

	require.NoError(t, w.Commit())

	_, err = os.Stat(w.StagingPath())
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestWriter_RollbackRemovesStagingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	w := NewWriter(path)
	require.NoError(t, w.Begin())
	require.NoError(t, w.WriteChunk([]byte("partial")))
	require.NoError(t, w.Rollback())

	_, err := os.Stat(w.StagingPath())
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Idempotent.
	assert.NoError(t, w.Rollback())
}

func TestWriter_BeginTwiceFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	w := NewWriter(path)
	require.NoError(t, w.Begin())
	t.Cleanup(func() { _ = w.Rollback() })
	assert.Error(t, w.Begin())
}
