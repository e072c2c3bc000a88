package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerNonNilBeforeInitialize(t *testing.T) {
	// The package-load default must be usable without panicking.
	require.NotNil(t, Logger)
	Logger.Infow("noop logger accepts writes", "key", "value")
}

func TestInitializeJSON(t *testing.T) {
	require.NoError(t, Initialize(true))
	assert.True(t, JSONOutput)
	require.NotNil(t, Logger)
}

func TestInitializeConsole(t *testing.T) {
	require.NoError(t, Initialize(false))
	assert.False(t, JSONOutput)
	require.NotNil(t, Logger)
}

func TestNamed(t *testing.T) {
	require.NoError(t, Initialize(true))
	child := Named("server")
	require.NotNil(t, child)
	child.Debugw("named logger works")
}

func TestComponentLogger(t *testing.T) {
	require.NoError(t, Initialize(true))
	comp := ComponentLogger("job")
	require.NotNil(t, comp)
	comp.Debugw("component logger works")
}

func TestChildLogger(t *testing.T) {
	require.NoError(t, Initialize(true))
	child := ChildLogger(Named("job"), "job_id", "job_x")
	require.NotNil(t, child)
	child.Debugw("child logger works")

	// Nil parent falls back to the global logger.
	require.NotNil(t, ChildLogger(nil, "key", "value"))
}
