package risk

import (
	"sync"
	"time"
)

// State is a breaker's position in its CLOSED/OPEN/HALF_OPEN state machine.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// breaker is the shared CLOSED -> OPEN -> HALF_OPEN -> CLOSED state machine
// used by the volatility, connectivity and error-rate breakers. It does not
// decide when to trip; callers call trip/reset/probe based on their own
// signal, and this type only enforces the cooldown and transition rules.
type breaker struct {
	mu       sync.Mutex
	state    State
	openedAt time.Time
	cooldown time.Duration

	kind  string
	scope string
}

func newBreaker(kind, scope string, cooldown time.Duration) *breaker {
	return &breaker{kind: kind, scope: scope, cooldown: cooldown, state: StateClosed}
}

// allow reports whether an operation may proceed, advancing OPEN to
// HALF_OPEN once the cooldown has elapsed. Exactly one caller observing the
// HALF_OPEN transition is expected to issue the probe; allow itself does not
// gate concurrent probes.
func (b *breaker) allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if now.Sub(b.openedAt) >= b.cooldown {
			b.state = StateHalfOpen
			return true
		}
		return false
	default:
		return false
	}
}

// trip transitions to OPEN regardless of current state and records the trip
// time for the cooldown calculation.
func (b *breaker) trip(now time.Time) {
	b.mu.Lock()
	wasOpen := b.state == StateOpen
	b.state = StateOpen
	b.openedAt = now
	b.mu.Unlock()

	if !wasOpen {
		breakerTrips.WithLabelValues(b.kind, b.scope).Inc()
	}
}

// probeResult records the outcome of a HALF_OPEN probe: success closes the
// breaker, failure reopens it and restarts the cooldown.
func (b *breaker) probeResult(now time.Time, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	outcome := "failure"
	if success {
		outcome = "success"
	}
	breakerProbes.WithLabelValues(b.kind, b.scope, outcome).Inc()

	if success {
		if b.state != StateClosed {
			breakerResets.WithLabelValues(b.kind, b.scope).Inc()
		}
		b.state = StateClosed
		return
	}
	b.state = StateOpen
	b.openedAt = now
}

func (b *breaker) currentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
