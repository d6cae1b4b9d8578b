package checksum

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NoneReturnsNilDigest(t *testing.T) {
	d, err := New("none")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = New("")
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestNew_RejectsUnknownAlgorithm(t *testing.T) {
	_, err := New("md5")
	assert.Error(t, err)
}

func TestDigest_SHA256MatchesStdlib(t *testing.T) {
	d, err := New("sha-256")
	require.NoError(t, err)

	d.Write([]byte("hello "))
	d.Write([]byte("world"))

	want := sha256.Sum256([]byte("hello world"))
	assert.Equal(t, want[:], d.Sum())
	assert.Equal(t, "sha-256", d.Algorithm())
}

func TestDigest_BLAKE3IsOrderSensitive(t *testing.T) {
	a, err := New("blake3")
	require.NoError(t, err)
	a.Write([]byte("abc"))
	a.Write([]byte("def"))

	b, err := New("blake3")
	require.NoError(t, err)
	b.Write([]byte("def"))
	b.Write([]byte("abc"))

	assert.NotEqual(t, a.Sum(), b.Sum())
	assert.Len(t, a.Sum(), 32)
}
