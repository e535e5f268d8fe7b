package checkpoint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/apecloud/dts/internal/position"
)

func TestWritePositionAppendsParsableLine(t *testing.T) {
	dir := t.TempDir()
	restore := timeNow
	timeNow = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	defer func() { timeNow = restore }()

	w, err := New(dir, "task1")
	require.NoError(t, err)

	pos := position.NewMysqlCdc("1", "bin.000001", 4321, "2026-01-02T03:04:05Z")
	require.NoError(t, w.WritePosition(pos))
	require.NoError(t, w.Close())

	b, err := os.ReadFile(filepath.Join(dir, "position.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "task1")

	got, err := position.FromLogLine(lines[0])
	require.NoError(t, err)
	require.Equal(t, pos, got)
}

func TestWritePositionTracksLast(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, "task1")
	require.NoError(t, err)
	defer w.Close()

	require.Equal(t, position.None, w.Last())
	pos := position.NewPgCdc("0/1A2B3C", "2026-01-02T03:04:05Z")
	require.NoError(t, w.WritePosition(pos))
	require.Equal(t, pos, w.Last())
}
