package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type volatilitySample struct {
	at    time.Time
	price decimal.Decimal
}

// VolatilityBreaker trips a symbol when its price moves more than MaxChange
// over a sliding window W. It is scoped per canonical symbol string.
type VolatilityBreaker struct {
	window    time.Duration
	cooldown  time.Duration
	maxChange decimal.Decimal

	mu       sync.Mutex
	breakers map[string]*breaker
	history  map[string][]volatilitySample
}

// NewVolatilityBreaker constructs a VolatilityBreaker. window is W, maxChange
// is V_max expressed as a fraction (e.g. 0.05 for 5%), cooldown is T_c.
func NewVolatilityBreaker(window, cooldown time.Duration, maxChange decimal.Decimal) *VolatilityBreaker {
	return &VolatilityBreaker{
		window:    window,
		cooldown:  cooldown,
		maxChange: maxChange,
		breakers:  make(map[string]*breaker),
		history:   make(map[string][]volatilitySample),
	}
}

func (v *VolatilityBreaker) breakerFor(symbol string) *breaker {
	v.mu.Lock()
	defer v.mu.Unlock()
	b, ok := v.breakers[symbol]
	if !ok {
		b = newBreaker("volatility", symbol, v.cooldown)
		v.breakers[symbol] = b
	}
	return b
}

// Observe records a new price point for symbol and trips the breaker if the
// relative change since the oldest sample still inside the window exceeds
// MaxChange.
func (v *VolatilityBreaker) Observe(symbol string, price decimal.Decimal, now time.Time) {
	v.mu.Lock()
	samples := append(v.history[symbol], volatilitySample{at: now, price: price})
	cutoff := now.Add(-v.window)
	i := 0
	for i < len(samples) && samples[i].at.Before(cutoff) {
		i++
	}
	samples = samples[i:]
	v.history[symbol] = samples
	baseline := samples[0].price
	v.mu.Unlock()

	if baseline.IsZero() {
		return
	}
	change := price.Sub(baseline).Abs().Div(baseline)
	if change.GreaterThan(v.maxChange) {
		v.breakerFor(symbol).trip(now)
	}
}

// Allow reports whether trading on symbol may proceed.
func (v *VolatilityBreaker) Allow(symbol string, now time.Time) bool {
	return v.breakerFor(symbol).allow(now)
}

// State returns the current breaker state for symbol.
func (v *VolatilityBreaker) State(symbol string) State {
	return v.breakerFor(symbol).currentState()
}

// Probe records the outcome of a HALF_OPEN probe snapshot: success if price
// is within MaxChange of the current window baseline.
func (v *VolatilityBreaker) Probe(symbol string, price decimal.Decimal, now time.Time) {
	v.mu.Lock()
	samples := v.history[symbol]
	var baseline decimal.Decimal
	if len(samples) > 0 {
		baseline = samples[0].price
	}
	v.mu.Unlock()

	success := baseline.IsZero()
	if !success {
		change := price.Sub(baseline).Abs().Div(baseline)
		success = !change.GreaterThan(v.maxChange)
	}
	v.breakerFor(symbol).probeResult(now, success)
}
