package engine

import (
	"sync"
	"time"
)

// Termination is the platform-wide kill switch. It is injected at engine
// construction so tests can run independent engines with independent
// termination state.
//
// Once tripped it stays active until an operator Reset; the conversational
// surface stays silent for every session in the meantime.
type Termination struct {
	mu     sync.Mutex
	active bool
	reason string
	at     time.Time
}

// TerminationState is a read-only snapshot of the kill switch.
type TerminationState struct {
	Active bool      `json:"active"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at,omitempty"`
}

// NewTermination creates an inactive kill switch.
func NewTermination() *Termination {
	return &Termination{}
}

// Trip activates the kill switch. It reports whether this call was the one
// that tripped it; repeated trips keep the original reason and timestamp.
func (t *Termination) Trip(reason string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		return false
	}
	t.active = true
	t.reason = reason
	t.at = now
	return true
}

// Active reports whether the kill switch has been tripped.
func (t *Termination) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Snapshot returns the current kill switch state.
func (t *Termination) Snapshot() TerminationState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TerminationState{Active: t.active, Reason: t.reason, At: t.at}
}

// Reset clears the kill switch. Operator action only; existing sessions stay
// terminated.
func (t *Termination) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = false
	t.reason = ""
	t.at = time.Time{}
}
