package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// ErrClosed is returned by Info after Close.
var ErrClosed = errors.New("sink: closed")

// JSONLines writes one entry per line. Encoded entries are written as they
// are; structured entries are JSON-encoded without HTML escaping.
type JSONLines struct {
	mu      sync.Mutex
	w       io.Writer
	closer  io.Closer
	written int64
	closed  bool
}

// NewJSONLines writes entries to w. w is not closed by Close.
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{w: w}
}

// NewStdout writes entries to standard output. Useful for containerized
// deployments where logs are collected from stdout.
func NewStdout() *JSONLines {
	return NewJSONLines(os.Stdout)
}

// NewFile appends entries to the file at path, creating it if needed.
func NewFile(path string) (*JSONLines, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: failed to open log file: %w", err)
	}
	return &JSONLines{w: f, closer: f}, nil
}

// Info writes payload as a single line.
func (j *JSONLines) Info(_ context.Context, payload any) error {
	var line []byte
	if s, ok := payload.(string); ok {
		line = append([]byte(s), '\n')
	} else {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(payload); err != nil {
			return fmt.Errorf("sink: failed to encode entry: %w", err)
		}
		line = buf.Bytes()
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}
	if _, err := j.w.Write(line); err != nil {
		return fmt.Errorf("sink: failed to write entry: %w", err)
	}
	j.written++
	return nil
}

// Written returns how many entries have been written.
func (j *JSONLines) Written() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.written
}

// Close syncs and closes the underlying file, if the sink owns one.
func (j *JSONLines) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true
	if j.closer == nil {
		return nil
	}
	if f, ok := j.closer.(*os.File); ok {
		_ = f.Sync()
	}
	return j.closer.Close()
}

var _ Sink = (*JSONLines)(nil)
