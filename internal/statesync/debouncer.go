// Package statesync keeps a user's wallet and gamification state consistent
// between the remote store and the device-local cache.
package statesync

import (
	"sync"
	"time"
)

type debounceState int

const (
	stateIdle debounceState = iota
	statePending
)

// Debouncer coalesces bursts of snapshots into a single flush carrying the
// latest one. It is a two-state machine: idle, or pending with a timer, the
// latest snapshot and a generation number. Every Schedule bumps the
// generation, so a timer that fires after being superseded does nothing.
type Debouncer[T any] struct {
	window time.Duration
	flush  func(T)

	mu     sync.Mutex
	state  debounceState
	timer  *time.Timer
	latest T
	gen    uint64

	// serializes flush calls so remote writes never overlap
	flushMu sync.Mutex
}

// NewDebouncer creates an idle debouncer that calls flush once inputs have
// been quiet for window.
func NewDebouncer[T any](window time.Duration, flush func(T)) *Debouncer[T] {
	return &Debouncer[T]{window: window, flush: flush}
}

// Schedule replaces the pending snapshot with v and restarts the quiet window.
func (d *Debouncer[T]) Schedule(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.latest = v
	d.state = statePending
	d.timer = time.AfterFunc(d.window, func() { d.fire(gen) })
}

// Cancel drops the pending snapshot without flushing it.
// Returns true if something was pending.
func (d *Debouncer[T]) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != statePending {
		return false
	}
	d.reset()
	return true
}

// Flush sends the pending snapshot now and waits for the flush to finish.
// Returns false if nothing was pending.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	if d.state != statePending {
		d.mu.Unlock()
		return false
	}
	v := d.latest
	d.reset()
	d.mu.Unlock()

	d.run(v)
	return true
}

// Pending reports whether a flush is scheduled.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == statePending
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	if d.state != statePending || gen != d.gen {
		d.mu.Unlock()
		return
	}
	v := d.latest
	d.reset()
	d.mu.Unlock()

	d.run(v)
}

// reset moves to idle. Caller holds mu.
func (d *Debouncer[T]) reset() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	var zero T
	d.latest = zero
	d.gen++
	d.state = stateIdle
}

func (d *Debouncer[T]) run(v T) {
	d.flushMu.Lock()
	defer d.flushMu.Unlock()
	d.flush(v)
}
