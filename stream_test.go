package pyout

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTermStreamFallbackSize(t *testing.T) {
	t.Parallel()
	s := newTermStream(&bytes.Buffer{})
	assert.Equal(t, fallbackWidth, s.Width())
	assert.Equal(t, fallbackHeight, s.Height())
}

func TestTermStreamClearLastLines(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	s := newTermStream(&buf)
	require.NoError(t, s.ClearLastLines(2))
	assert.Equal(t, "\x1b[A\x1b[2K\x1b[A\x1b[2K\r", buf.String())
}

func TestTermStreamOverwriteLine(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	s := newTermStream(&buf)
	require.NoError(t, s.OverwriteLine(1, "new\n"))
	assert.Equal(t, "\x1b[A\x1b[2K\rnew\n", buf.String())
}

func TestTermStreamOverwriteLineFarBack(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	s := newTermStream(&buf)
	require.NoError(t, s.OverwriteLine(3, "new\n"))
	// Up three, rewrite, and the newline plus two downs restore the cursor.
	assert.Equal(t, "\x1b[A\x1b[A\x1b[A\x1b[2K\rnew\n\x1b[B\x1b[B", buf.String())
}

func TestTermStreamMoveTo(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	s := newTermStream(&buf)
	require.NoError(t, s.MoveTo(2))
	assert.Equal(t, "\x1b[A\x1b[A\r", buf.String())
}

func TestTermStreamCapabilities(t *testing.T) {
	t.Parallel()
	s := newTermStream(&bytes.Buffer{})
	assert.True(t, s.Interactive())
	assert.True(t, s.SupportsUpdates())
}

func TestPlainStream(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	s := newPlainStream(&buf)
	require.NoError(t, s.Write("hello\n"))
	assert.Equal(t, "hello\n", buf.String())

	assert.Equal(t, 0, s.Width())
	assert.False(t, s.Interactive())
	assert.False(t, s.SupportsUpdates())
	assert.Error(t, s.ClearLastLines(1))
	assert.Error(t, s.OverwriteLine(1, "x\n"))
	assert.Error(t, s.MoveTo(1))
}

func TestIsTerminalWriter(t *testing.T) {
	t.Parallel()
	assert.False(t, isTerminalWriter(&bytes.Buffer{}))
}
