package harness

import (
	"strings"
	"sync"
)

// DefaultTailSize is the number of bytes of output a LogTail keeps.
const DefaultTailSize = 64 * 1024

// LogTail keeps the last bytes written to it and signals when a marker shows up.
// It is safe for concurrent use and is meant as the stdout and stderr of a backend.
type LogTail struct {
	mu      sync.Mutex
	size    int
	buf     []byte
	watches []*watch
}

type watch struct {
	marker string
	ch     chan struct{}
}

// NewLogTail creates a LogTail keeping size bytes. A size of 0 uses DefaultTailSize.
func NewLogTail(size int) *LogTail {
	if size <= 0 {
		size = DefaultTailSize
	}
	return &LogTail{size: size}
}

// Write appends p, dropping the oldest bytes beyond the tail size.
func (t *LogTail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// markers may straddle writes, so match on the retained tail plus p before trimming
	t.buf = append(t.buf, p...)
	if len(t.watches) > 0 {
		text := string(t.buf)
		remaining := t.watches[:0]
		for _, w := range t.watches {
			if strings.Contains(text, w.marker) {
				close(w.ch)
				continue
			}
			remaining = append(remaining, w)
		}
		t.watches = remaining
	}
	if over := len(t.buf) - t.size; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

// Watch returns a channel that is closed once marker was written.
// A marker still in the tail closes the channel immediately.
func (t *LogTail) Watch(marker string) <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan struct{})
	if strings.Contains(string(t.buf), marker) {
		close(ch)
		return ch
	}
	t.watches = append(t.watches, &watch{marker: marker, ch: ch})
	return ch
}

// String returns the retained output.
func (t *LogTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

// Lines returns the last n lines of the retained output.
func (t *LogTail) Lines(n int) []string {
	lines := strings.Split(strings.TrimRight(t.String(), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
