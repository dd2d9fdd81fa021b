// Package progress reports confirmation polling progress.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Callback receives progress updates during long operations.
// For polling, current is the attempt number and total the attempt limit.
type Callback func(op string, current, total int, message string)

// Noop is a no-op callback for default behavior.
func Noop(op string, current, total int, message string) {}

// Chain fans one update out to every non-nil callback.
func Chain(cbs ...Callback) Callback {
	return func(op string, current, total int, message string) {
		for _, cb := range cbs {
			if cb != nil {
				cb(op, current, total, message)
			}
		}
	}
}

// Terminal renders a single-line attempt bar, redrawn in place.
type Terminal struct {
	mu          sync.Mutex
	writer      io.Writer
	enabled     bool
	lastLineLen int
	width       int
}

// NewTerminal creates a terminal bar writing to w.
func NewTerminal(w io.Writer, enabled bool) *Terminal {
	return &Terminal{writer: w, enabled: enabled, width: 20}
}

// Callback returns a Callback function for this terminal.
func (t *Terminal) Callback() Callback {
	return func(op string, current, total int, message string) {
		t.mu.Lock()
		defer t.mu.Unlock()
		if !t.enabled {
			return
		}
		t.render(op, current, total, message)
	}
}

func (t *Terminal) render(op string, current, total int, message string) {
	if total <= 0 {
		total = 1
	}
	if current > total {
		current = total
	}

	filled := t.width * current / total
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", t.width-filled)

	clear := "\r"
	if t.lastLineLen > 0 {
		clear = "\r" + strings.Repeat(" ", t.lastLineLen) + "\r"
	}

	line := fmt.Sprintf("%s [%s] attempt %d/%d", op, bar, current, total)
	if message != "" {
		line += " " + message
	}

	fmt.Fprint(t.writer, clear+line)
	t.lastLineLen = len(line)
}

// Done clears the bar and prints the final message on its own line.
func (t *Terminal) Done(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	fmt.Fprint(t.writer, "\r"+strings.Repeat(" ", t.lastLineLen)+"\r")
	if message != "" {
		fmt.Fprintln(t.writer, message)
	}
	t.lastLineLen = 0
}

// SetEnabled enables or disables the progress bar.
func (t *Terminal) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}
