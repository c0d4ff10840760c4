package output

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// Sink receives each serialized task-group snapshot. Implementations must be
// safe for concurrent use.
type Sink interface {
	// Write emits one snapshot
	Write(snapshot []byte) error

	// Name returns a human-readable name for this sink
	Name() string
}

// LineSink writes one snapshot per line, the format status bars such as
// waybar and eww read from a command's stdout.
type LineSink struct {
	mu   sync.Mutex
	w    io.Writer
	name string
}

// NewLineSink creates a line sink over w.
func NewLineSink(w io.Writer, name string) *LineSink {
	return &LineSink{w: w, name: name}
}

// Write emits snapshot followed by a newline. Embedded newlines are
// rejected since they would split the document across lines.
func (s *LineSink) Write(snapshot []byte) error {
	if bytes.IndexByte(snapshot, '\n') >= 0 {
		return fmt.Errorf("%s: snapshot contains a newline", s.name)
	}

	line := make([]byte, 0, len(snapshot)+1)
	line = append(line, snapshot...)
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(line); err != nil {
		return fmt.Errorf("%s: write snapshot: %w", s.name, err)
	}
	return nil
}

// Name returns the sink name
func (s *LineSink) Name() string {
	return s.name
}
