// Package checkpoint implements the position-log writer (spec.md §6):
// a durable, append-only record of barrier-acknowledged positions that
// lets the extractor resume strictly from the last checkpoint after a
// restart.
package checkpoint

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/apecloud/dts/internal/position"
)

// timeNow is overridden in tests so line timestamps are deterministic.
var timeNow = time.Now

// Writer appends position-log lines to a file under a log directory,
// matching position.FromLogLine's "TIMESTAMP | tag | JSON" format. One
// Writer is shared by every pipeline.Pipeline in a task; WritePosition
// is safe for concurrent use even though the barrier sweep that calls
// it is itself single-threaded per pipeline.
type Writer struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	tag  string
	last position.Position
}

// New opens (creating if necessary) "position.log" under dir for
// appending. tag identifies the task in the log line, e.g. the task
// name from its INI file's base name.
func New(dir, tag string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir %q: %w", dir, err)
	}
	path := filepath.Join(dir, "position.log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	return &Writer{f: f, w: bufio.NewWriter(f), tag: tag, last: position.None}, nil
}

// WritePosition implements pipeline.PositionWriter: it appends one line
// and flushes immediately, since a checkpoint that isn't durable on
// disk before the next barrier isn't a checkpoint.
func (w *Writer) WritePosition(p position.Position) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	line := fmt.Sprintf("%s | %s | %s\n", timeNow().UTC().Format("2006-01-02 15:04:05.000000"), w.tag, p.String())
	if _, err := w.w.WriteString(line); err != nil {
		return fmt.Errorf("append position-log line: %w", err)
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("flush position-log: %w", err)
	}
	w.last = p
	return nil
}

// Last returns the most recently written position, or position.None if
// nothing has been written yet this process.
func (w *Writer) Last() position.Position {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.w.Flush(); err != nil {
		w.f.Close()
		return fmt.Errorf("flush position-log on close: %w", err)
	}
	return w.f.Close()
}
