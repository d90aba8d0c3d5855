package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// Spinner renders a single-line waiting indicator. The share commands
// spend most of their life waiting (relay connect, peer arrival, payload
// in flight), so the surface is minimal: start, retitle, stop.
type Spinner struct {
	frames   []string
	interval time.Duration

	mu      sync.Mutex
	message string
	stopped bool
	done    chan struct{}
}

func newSpinner(message string, frames spinner.Spinner, interval time.Duration) *Spinner {
	return &Spinner{
		frames:   frames.Frames,
		interval: interval,
		message:  message,
		done:     make(chan struct{}),
	}
}

// NewConnectionSpinner creates a spinner for network operations (Globe style)
func NewConnectionSpinner(message string) *Spinner {
	return newSpinner(message, spinner.Globe, 180*time.Millisecond)
}

// NewWaitingSpinner creates a spinner for waiting on the peer (Points style)
func NewWaitingSpinner(message string) *Spinner {
	return newSpinner(message, spinner.Points, 100*time.Millisecond)
}

func (s *Spinner) Start() {
	go func() {
		i := 0
		for {
			select {
			case <-s.done:
				return
			default:
				frame := SpinnerStyle.Render(s.frames[i%len(s.frames)])
				s.mu.Lock()
				message := s.message
				s.mu.Unlock()
				fmt.Printf("\r%s %s", frame, message)
				i++
				time.Sleep(s.interval)
			}
		}
	}()
}

// Stop clears the spinner line. Safe to call more than once.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
		close(s.done)
		fmt.Print("\r\033[K") // Clear the line
	}
}

// UpdateMessage retitles the spinner in place as the session advances.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}
