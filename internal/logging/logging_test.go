package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingKeepsBoundedTail(t *testing.T) {
	r := NewRing(3)
	for _, line := range []string{"a\n", "b\n", "c\n", "d\n"} {
		_, err := r.Write([]byte(line))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"b", "c", "d"}, r.Lines())
}

func TestRingLinesReturnsCopy(t *testing.T) {
	r := NewRing(3)
	_, _ = r.Write([]byte("a\n"))
	lines := r.Lines()
	lines[0] = "mutated"
	assert.Equal(t, []string{"a"}, r.Lines())
}

func TestSetupRejectsBadInput(t *testing.T) {
	_, err := Setup("loud", "text")
	assert.Error(t, err)

	_, err = Setup("info", "yaml")
	assert.Error(t, err)
}

func TestSetupFansOutToRing(t *testing.T) {
	ring, err := Setup("debug", "text")
	require.NoError(t, err)

	slog.Info("hello", slog.String("k", "v"))
	lines := ring.Lines()
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[len(lines)-1], "hello")
	assert.Contains(t, lines[len(lines)-1], "k=v")
}
