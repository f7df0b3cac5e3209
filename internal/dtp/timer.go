package dtp

import (
	"sync"
	"time"
)

// mplRA is the MPL+R+A unit the inactivity timers are scaled from
// (spec.md §5: "1s, approximated here as 2^30ns").
const mplRA = 1 << 30 * time.Nanosecond

// sndInactPeriod and rcvInactPeriod are the sender/receiver
// inactivity timer durations, 3*(MPL+R+A) and 2*(MPL+R+A).
const (
	sndInactPeriod = 3 * mplRA
	rcvInactPeriod = 2 * mplRA
)

// CancelResult is what TryCancel observed when asked to stop a timer.
type CancelResult int

const (
	// Idle: the timer was not armed.
	Idle CancelResult = iota
	// WasActive: the timer was armed and pending; it has been
	// stopped and its callback will not run.
	WasActive
	// WasRunning: the timer's callback is currently executing and
	// could not be stopped. Once the callback has returned, TryCancel
	// reports Idle.
	WasRunning
)

// Timer is a one-shot, re-armable timer with try-cancel semantics
// (spec §9's design note on attempt-cancel, non-blocking callers).
// The callback takes whatever locks it needs itself; TryCancel never
// blocks waiting for a running callback to finish.
type Timer struct {
	mu      sync.Mutex
	timer   *time.Timer
	armed   bool
	running bool
}

// Arm (re)schedules the timer to fire cb after d, replacing any
// previous pending firing.
func (t *Timer) Arm(d time.Duration, cb func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.armed = true
	t.timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		if !t.armed {
			t.mu.Unlock()
			return
		}
		t.armed = false
		t.running = true
		t.mu.Unlock()

		cb()

		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
	})
}

// TryCancel attempts to stop a pending firing without blocking.
func (t *Timer) TryCancel() CancelResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return WasRunning
	}
	if !t.armed {
		return Idle
	}
	t.armed = false
	if t.timer != nil {
		t.timer.Stop()
	}
	return WasActive
}
