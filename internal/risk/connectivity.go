package risk

import (
	"sync"
	"time"
)

// ConnectivityBreaker trips a venue after N consecutive network or auth
// failures. Scoped per venue name.
type ConnectivityBreaker struct {
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	breakers map[string]*breaker
	failures map[string]int
}

// NewConnectivityBreaker constructs a ConnectivityBreaker. threshold is N,
// cooldown is T_c.
func NewConnectivityBreaker(threshold int, cooldown time.Duration) *ConnectivityBreaker {
	return &ConnectivityBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		breakers:  make(map[string]*breaker),
		failures:  make(map[string]int),
	}
}

func (c *ConnectivityBreaker) breakerFor(venue string) *breaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.breakers[venue]
	if !ok {
		b = newBreaker("connectivity", venue, c.cooldown)
		c.breakers[venue] = b
	}
	return b
}

// RecordSuccess resets the consecutive-failure count for venue.
func (c *ConnectivityBreaker) RecordSuccess(venue string) {
	c.mu.Lock()
	c.failures[venue] = 0
	c.mu.Unlock()
}

// RecordFailure increments the consecutive-failure count for venue and trips
// the breaker once it reaches threshold.
func (c *ConnectivityBreaker) RecordFailure(venue string, now time.Time) {
	c.mu.Lock()
	c.failures[venue]++
	trip := c.failures[venue] >= c.threshold
	c.mu.Unlock()

	if trip {
		c.breakerFor(venue).trip(now)
	}
}

// Allow reports whether requests to venue may proceed.
func (c *ConnectivityBreaker) Allow(venue string, now time.Time) bool {
	return c.breakerFor(venue).allow(now)
}

// State returns the current breaker state for venue.
func (c *ConnectivityBreaker) State(venue string) State {
	return c.breakerFor(venue).currentState()
}

// RecordProbeResult records the outcome of a HALF_OPEN probe against venue's
// public endpoint.
func (c *ConnectivityBreaker) RecordProbeResult(venue string, now time.Time, success bool) {
	if success {
		c.mu.Lock()
		c.failures[venue] = 0
		c.mu.Unlock()
	}
	c.breakerFor(venue).probeResult(now, success)
}
