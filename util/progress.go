package util

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Progress icons
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
)

// Spinner displays an animated spinner for indeterminate operations
// such as an image pull
type Spinner struct {
	message  string
	frames   []string
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	mu       sync.Mutex
	writer   io.Writer
	active   bool
}

// NewSpinner creates a spinner writing to w
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		message:  message,
		frames:   []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		interval: 80 * time.Millisecond,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		writer:   w,
	}
}

// Start begins the spinner animation
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		defer close(s.done)

		i := 0
		for {
			select {
			case <-s.stop:
				// Clear the spinner line
				fmt.Fprintf(s.writer, "\r%s\r", strings.Repeat(" ", len(s.message)+5))
				return
			case <-ticker.C:
				fmt.Fprintf(s.writer, "\r%s %s ", s.frames[i%len(s.frames)], s.message)
				i++
			}
		}
	}()
}

// Stop stops the spinner. It is safe to call more than once.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.mu.Unlock()

	close(s.stop)
	<-s.done
}

// StopWithSuccess stops the spinner and shows a success message
func (s *Spinner) StopWithSuccess(message string) {
	s.Stop()
	fmt.Fprintf(s.writer, "\r%s %s\n", SuccessIcon, message)
}

// StopWithError stops the spinner and shows an error message
func (s *Spinner) StopWithError(message string) {
	s.Stop()
	fmt.Fprintf(s.writer, "\r%s %s\n", ErrorIcon, message)
}
