// File: internal/session/gate.go
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultGateInterval is the minimum spacing between gated actions.
const DefaultGateInterval = 1500 * time.Millisecond

// Gate throttles user-simulated actions to a minimum fixed spacing,
// approximating human pacing. Each WaitSome call re-arms a single-shot timer
// from zero and blocks until it fires once; there is no queue, and the
// single-session model guarantees only one action is ever in flight.
type Gate struct {
	interval time.Duration
	clock    Clock
	logger   *zap.Logger

	mu    sync.Mutex
	ready bool
}

// NewGate creates a gate with the given interval. A non-positive interval
// falls back to DefaultGateInterval; a nil clock falls back to the real one.
func NewGate(interval time.Duration, clock Clock, logger *zap.Logger) *Gate {
	if interval <= 0 {
		interval = DefaultGateInterval
	}
	if clock == nil {
		clock = realClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		interval: interval,
		clock:    clock,
		logger:   logger,
		ready:    true,
	}
}

// WaitSome marks the gate not-ready, arms the timer, and blocks the caller
// until it fires once. Context cancellation (session teardown) aborts the
// wait and returns the context's error.
func (g *Gate) WaitSome(ctx context.Context) error {
	g.mu.Lock()
	g.ready = false
	g.mu.Unlock()

	g.logger.Debug("Gate wait started.", zap.Duration("interval", g.interval))

	timer := g.clock.NewTimer(g.interval)
	defer timer.Stop()

	select {
	case <-timer.C():
		g.mu.Lock()
		g.ready = true
		g.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready reports whether the last gated wait has completed.
func (g *Gate) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready
}

// Interval returns the configured spacing.
func (g *Gate) Interval() time.Duration {
	return g.interval
}
