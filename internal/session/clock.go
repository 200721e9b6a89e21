// File: internal/session/clock.go
package session

import "time"

// Clock produces timers. The gate takes its timers from a Clock so tests can
// drive elapsed time without real delays.
type Clock interface {
	NewTimer(d time.Duration) Timer
}

// Timer is the subset of time.Timer the gate needs.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// realClock is the production Clock backed by the time package.
type realClock struct{}

func (realClock) NewTimer(d time.Duration) Timer {
	return &realTimer{t: time.NewTimer(d)}
}

type realTimer struct {
	t *time.Timer
}

func (r *realTimer) C() <-chan time.Time { return r.t.C }
func (r *realTimer) Stop() bool          { return r.t.Stop() }
