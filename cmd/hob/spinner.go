package main

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

var spinnerFrames = []string{"|", "/", "-", "\\"}

const spinnerInterval = 100 * time.Millisecond

// buildSpinner prints an animated "building <recipe>" line to stderr while a
// recipe's stages run, falling back to a single plain line when stderr
// isn't a terminal (CI logs, redirected output).
type buildSpinner struct {
	mu      sync.Mutex
	message string
	done    chan struct{}
	stopped bool
	isTTY   bool
}

func newBuildSpinner() *buildSpinner {
	return &buildSpinner{
		done:  make(chan struct{}),
		isTTY: term.IsTerminal(int(os.Stderr.Fd())),
	}
}

// start begins the spinner animation with message. In non-TTY mode it
// prints the message once and returns.
func (s *buildSpinner) start(message string) {
	s.mu.Lock()
	s.message = message
	s.stopped = false
	s.mu.Unlock()

	if !s.isTTY {
		fmt.Fprintf(os.Stderr, "%s\n", message)
		return
	}
	go s.animate()
}

// stop halts the animation without printing a final message.
func (s *buildSpinner) stop() {
	s.finish("")
}

// stopWithMessage halts the animation and prints message.
func (s *buildSpinner) stopWithMessage(message string) {
	s.finish(message)
}

func (s *buildSpinner) finish(message string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.done)

	if !s.isTTY {
		if message != "" {
			fmt.Fprintf(os.Stderr, "%s\n", message)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "\r%s\r", strings.Repeat(" ", 80))
	if message != "" {
		fmt.Fprintf(os.Stderr, "%s\n", message)
	}
}

func (s *buildSpinner) animate() {
	frame := 0
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			msg := s.message
			s.mu.Unlock()

			line := fmt.Sprintf("\r%s %s", spinnerFrames[frame%len(spinnerFrames)], msg)
			if len(line) < 80 {
				line += strings.Repeat(" ", 80-len(line))
			}
			fmt.Fprint(os.Stderr, line)
			frame++
		}
	}
}
