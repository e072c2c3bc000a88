package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelWrapPreservesType(t *testing.T) {
	err := Wrap(ErrNotFound, "job lookup")
	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrConflict))
}

func TestMarkPreservesBothTypes(t *testing.T) {
	base := New("UNIQUE constraint failed: jobs.kind")
	err := Mark(base, ErrConflict)
	require.Error(t, err)
	assert.True(t, Is(err, ErrConflict))
	assert.Contains(t, err.Error(), "UNIQUE constraint")
}

func TestHelpers(t *testing.T) {
	assert.True(t, IsNotFoundError(Wrap(ErrNotFound, "x")))
	assert.False(t, IsNotFoundError(nil))
	assert.True(t, IsConflictError(Mark(New("dup"), ErrConflict)))
	assert.False(t, IsConflictError(New("dup")))
}

func TestDetailDoesNotChangeIdentity(t *testing.T) {
	err := WithDetail(Wrap(ErrUnsupported, "pause"), "kind: watch-poll")
	assert.True(t, Is(err, ErrUnsupported))
}
