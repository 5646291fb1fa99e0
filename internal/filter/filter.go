// Package filter holds the search/facet state behind every list view and
// the debouncer that coalesces free-text keystrokes into a single refetch.
package filter

import (
	"sync"
	"time"
)

// State is the combined filter criteria for a list view. All populated
// fields are ANDed together. A change to any field restarts the view at
// page 1 so a shrinking result set never strands the user on an empty page.
type State struct {
	Search       string
	Status       string
	Type         string
	Section      string
	StateCouncil string
}

// IsZero reports whether no filter is active.
func (s State) IsZero() bool {
	return s == State{}
}

// Trigger is one refetch request emitted by the debouncer. Generation
// increases monotonically; a consumer must discard any response belonging
// to a generation older than the newest one it has dispatched.
type Trigger struct {
	State      State
	Generation uint64
}

// Debouncer coalesces rapid search edits. Free-text input only fires after
// the settle window elapses without another keystroke; clearing the search
// and facet changes bypass the window and fire immediately.
type Debouncer struct {
	mu      sync.Mutex
	settle  time.Duration
	state   State
	timer   *time.Timer
	gen     uint64
	emit    func(Trigger)
	stopped bool
}

// DefaultSettle is applied when no settle window is configured.
const DefaultSettle = 400 * time.Millisecond

// NewDebouncer builds a debouncer that calls emit for every trigger.
func NewDebouncer(settle time.Duration, emit func(Trigger)) *Debouncer {
	if settle <= 0 {
		settle = DefaultSettle
	}
	if emit == nil {
		emit = func(Trigger) {}
	}
	return &Debouncer{settle: settle, emit: emit}
}

// Search records a new search text. Non-empty text is held for the settle
// window; an empty string means the user cleared the box and expects an
// instant reset, so it fires immediately.
func (d *Debouncer) Search(text string) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.state.Search = text
	if text == "" {
		trigger := d.fireLocked()
		d.mu.Unlock()
		d.emit(trigger)
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.settle, d.flushTimer)
	d.mu.Unlock()
}

// Update applies a facet change and fires immediately.
func (d *Debouncer) Update(apply func(*State)) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if apply != nil {
		apply(&d.state)
	}
	trigger := d.fireLocked()
	d.mu.Unlock()
	d.emit(trigger)
}

// Flush forces any pending search to fire now.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.stopped || d.timer == nil {
		d.mu.Unlock()
		return
	}
	trigger := d.fireLocked()
	d.mu.Unlock()
	d.emit(trigger)
}

// Stop cancels any pending trigger and ignores further input.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Generation returns the newest issued generation token.
func (d *Debouncer) Generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gen
}

// Snapshot returns the current filter state.
func (d *Debouncer) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Debouncer) flushTimer() {
	d.mu.Lock()
	if d.stopped || d.timer == nil {
		d.mu.Unlock()
		return
	}
	trigger := d.fireLocked()
	d.mu.Unlock()
	d.emit(trigger)
}

// fireLocked cancels any pending timer, stamps a new generation and builds
// the trigger. Callers emit outside the lock.
func (d *Debouncer) fireLocked() Trigger {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	return Trigger{State: d.state, Generation: d.gen}
}
