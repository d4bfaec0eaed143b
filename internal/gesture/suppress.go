package gesture

import (
	"sync"
	"time"
)

// ClickSuppressWindow is how long after a committed drag or resize a click
// on the released event is ignored.
const ClickSuppressWindow = 250 * time.Millisecond

// Suppressor decides whether a click right after a gesture should be
// swallowed instead of opening the editor.
type Suppressor interface {
	// Arm is called when a gesture completes.
	Arm(now time.Time)
	// Suppress reports whether a click at now should be ignored.
	Suppress(now time.Time) bool
}

// WindowSuppressor ignores clicks for a fixed window after Arm.
type WindowSuppressor struct {
	Window time.Duration

	mu    sync.Mutex
	until time.Time
}

func NewWindowSuppressor(window time.Duration) *WindowSuppressor {
	return &WindowSuppressor{Window: window}
}

func (s *WindowSuppressor) Arm(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.until = now.Add(s.Window)
}

func (s *WindowSuppressor) Suppress(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Before(s.until)
}

// OnceSuppressor ignores exactly the next click after Arm, however late it
// arrives. Suited to clients that emit an explicit gesture-completed click.
type OnceSuppressor struct {
	mu    sync.Mutex
	armed bool
}

func (s *OnceSuppressor) Arm(time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed = true
}

func (s *OnceSuppressor) Suppress(time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	armed := s.armed
	s.armed = false
	return armed
}
