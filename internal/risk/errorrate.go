package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ErrorRateBreaker trips a venue when its failure ratio over the last K
// operations exceeds R_max, provided at least K_min samples have been
// observed. Scoped per venue name.
type ErrorRateBreaker struct {
	window   int
	minSamp  int
	maxRatio decimal.Decimal
	cooldown time.Duration

	mu       sync.Mutex
	breakers map[string]*breaker
	results  map[string][]bool // ring of recent outcomes, true = failure
}

// NewErrorRateBreaker constructs an ErrorRateBreaker. window is K, minSamples
// is K_min, maxRatio is R_max expressed as a fraction, cooldown is T_c.
func NewErrorRateBreaker(window, minSamples int, maxRatio decimal.Decimal, cooldown time.Duration) *ErrorRateBreaker {
	return &ErrorRateBreaker{
		window:   window,
		minSamp:  minSamples,
		maxRatio: maxRatio,
		cooldown: cooldown,
		breakers: make(map[string]*breaker),
		results:  make(map[string][]bool),
	}
}

func (e *ErrorRateBreaker) breakerFor(venue string) *breaker {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.breakers[venue]
	if !ok {
		b = newBreaker("error_rate", venue, e.cooldown)
		e.breakers[venue] = b
	}
	return b
}

// Record appends one operation outcome for venue and trips the breaker if
// the failure ratio over the trailing window exceeds maxRatio.
func (e *ErrorRateBreaker) Record(venue string, failed bool, now time.Time) {
	e.mu.Lock()
	results := append(e.results[venue], failed)
	if len(results) > e.window {
		results = results[len(results)-e.window:]
	}
	e.results[venue] = results

	failures := 0
	for _, r := range results {
		if r {
			failures++
		}
	}
	samples := len(results)
	trip := samples >= e.minSamp &&
		decimal.NewFromInt(int64(failures)).Div(decimal.NewFromInt(int64(samples))).GreaterThan(e.maxRatio)
	e.mu.Unlock()

	if trip {
		e.breakerFor(venue).trip(now)
	}
}

// Allow reports whether requests to venue may proceed.
func (e *ErrorRateBreaker) Allow(venue string, now time.Time) bool {
	return e.breakerFor(venue).allow(now)
}

// State returns the current breaker state for venue.
func (e *ErrorRateBreaker) State(venue string) State {
	return e.breakerFor(venue).currentState()
}

// ResetProbe records a HALF_OPEN probe outcome directly, bypassing the
// window (a single clean operation is enough to close this breaker).
func (e *ErrorRateBreaker) ResetProbe(venue string, now time.Time, success bool) {
	if success {
		e.mu.Lock()
		e.results[venue] = nil
		e.mu.Unlock()
	}
	e.breakerFor(venue).probeResult(now, success)
}
