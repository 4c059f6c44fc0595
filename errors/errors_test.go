package errors_test

import (
	"testing"

	"github.com/habiliai/nativeagent/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpError(t *testing.T) {
	err := errors.NewOpError("add", "agent_memory_nova", errors.ErrInvalidParams)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidParams))
	assert.Equal(t, "add agent_memory_nova: nativeagent: invalid params", err.Error())

	var opErr *errors.OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "add", opErr.Op)

	assert.Nil(t, errors.NewOpError("add", "x", nil))
}

func TestWrapKeepsSentinel(t *testing.T) {
	err := errors.Wrapf(errors.ErrNotFound, "failed to find memory %s", "1")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.Equal(t, errors.ErrNotFound, errors.Cause(err))
}
