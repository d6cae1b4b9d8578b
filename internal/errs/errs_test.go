package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_WrapsNilCause(t *testing.T) {
	err := New(InvalidInput, "pkg.Op", nil)
	assert.Equal(t, "pkg.Op: invalid_input", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestWrap_PrefixesMessage(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(IoError, "pkg.Op", "write chunk", cause)
	assert.Contains(t, err.Error(), "write chunk")
	assert.Contains(t, err.Error(), "disk full")
	assert.ErrorIs(t, err, cause)
}

func TestKindOf_FindsWrappedError(t *testing.T) {
	inner := New(IntegrityFailure, "inner.Op", nil)
	outer := fmt.Errorf("outer context: %w", inner)

	kind, ok := KindOf(outer)
	assert.True(t, ok)
	assert.Equal(t, IntegrityFailure, kind)
}

func TestKindOf_FalseForPlainError(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestIs_MatchesKind(t *testing.T) {
	err := New(Cancelled, "pkg.Op", nil)
	assert.True(t, Is(err, Cancelled))
	assert.False(t, Is(err, InternalError))
}

func TestKind_StringCoversAllValues(t *testing.T) {
	kinds := []Kind{InvalidInput, InvalidStageOrder, IoError, CodecError, IntegrityFailure, Cancelled, InternalError}
	seen := make(map[string]bool)
	for _, k := range kinds {
		s := k.String()
		assert.NotEqual(t, "unknown", s)
		assert.False(t, seen[s], "duplicate Kind.String() value %q", s)
		seen[s] = true
	}
}
