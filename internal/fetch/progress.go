package fetch

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// isTerminalFunc is swapped out in tests.
var isTerminalFunc = term.IsTerminal

// shouldShowProgress reports whether a download status line should be
// printed: only when stderr is attached to a terminal, so piped or CI
// output stays plain log lines instead of control-code noise.
func shouldShowProgress() bool {
	return isTerminalFunc(int(os.Stderr.Fd()))
}

// progressWriter wraps the destination file with a rate-limited status line
// reporting bytes written against total (the response's Content-Length, or
// -1 if the server didn't send one).
type progressWriter struct {
	dst     io.Writer
	out     io.Writer
	total   int64
	written int64
	start   time.Time
	last    time.Time
	mu      sync.Mutex
}

func newProgressWriter(dst io.Writer, total int64, out io.Writer) *progressWriter {
	return &progressWriter{dst: dst, out: out, total: total, start: time.Now()}
}

func (w *progressWriter) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	if n > 0 {
		w.mu.Lock()
		w.written += int64(n)
		w.print()
		w.mu.Unlock()
	}
	return n, err
}

// print redraws the status line, skipping updates less than 100ms apart so
// the line doesn't flicker.
func (w *progressWriter) print() {
	now := time.Now()
	if now.Sub(w.last) < 100*time.Millisecond {
		return
	}
	w.last = now

	if w.total > 0 {
		percent := float64(w.written) / float64(w.total) * 100
		if percent > 100 {
			percent = 100
		}
		fmt.Fprintf(w.out, "\rfetching %s/%s (%3.0f%%)", formatBytes(w.written), formatBytes(w.total), percent)
	} else {
		fmt.Fprintf(w.out, "\rfetching %s", formatBytes(w.written))
	}
}

// finish clears the status line.
func (w *progressWriter) finish() {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprint(w.out, "\r"+strings.Repeat(" ", 60)+"\r")
}

func formatBytes(b int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1fGB", float64(b)/gb)
	case b >= mb:
		return fmt.Sprintf("%.1fMB", float64(b)/mb)
	case b >= kb:
		return fmt.Sprintf("%.1fKB", float64(b)/kb)
	default:
		return fmt.Sprintf("%dB", b)
	}
}
