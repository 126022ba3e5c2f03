package executor

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/arbiq/enginecore/internal/domain"
)

// LegLimits are the tradable-lot constraints a venue enforces for one
// (venue, symbol) pair.
type LegLimits struct {
	MinQuantity   decimal.Decimal
	MaxQuantity   decimal.Decimal
	QuantityStep  decimal.Decimal
	MinNotional   decimal.Decimal
}

type limitsKey struct {
	venue  string
	symbol domain.Symbol
}

// Validator caches per-(venue, symbol) lot limits and rounds/bounds order
// quantities against them before either leg is placed.
type Validator struct {
	mu       sync.RWMutex
	limits   map[limitsKey]LegLimits
	defaults LegLimits
}

// NewValidator constructs a Validator. defaults are used for any
// (venue, symbol) pair whose limits have not yet been cached.
func NewValidator(defaults LegLimits) *Validator {
	return &Validator{limits: make(map[limitsKey]LegLimits), defaults: defaults}
}

// SetLimits caches limits for (venue, symbol), typically populated once at
// startup and refreshed periodically from each venue's instrument metadata.
func (v *Validator) SetLimits(venue string, sym domain.Symbol, limits LegLimits) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.limits[limitsKey{venue, sym}] = limits
}

func (v *Validator) limitsFor(venue string, sym domain.Symbol) LegLimits {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if l, ok := v.limits[limitsKey{venue, sym}]; ok {
		return l
	}
	return v.defaults
}

// roundToStep rounds value down to the nearest multiple of step (never up,
// so a rounded order never exceeds what was requested).
func roundToStep(value, step decimal.Decimal) decimal.Decimal {
	if step.Sign() <= 0 {
		return value
	}
	return value.DivRound(step, 16).Truncate(0).Mul(step)
}

// ValidateLeg rounds qty to the venue's lot size and checks it against the
// venue's min/max quantity and min notional at price.
func (v *Validator) ValidateLeg(venue string, sym domain.Symbol, qty, price decimal.Decimal) (decimal.Decimal, error) {
	limits := v.limitsFor(venue, sym)

	adjusted := qty
	if limits.QuantityStep.Sign() > 0 {
		adjusted = roundToStep(qty, limits.QuantityStep)
	}

	if limits.MinQuantity.Sign() > 0 && adjusted.LessThan(limits.MinQuantity) {
		return decimal.Zero, fmt.Errorf("%s/%s: quantity %s below minimum %s", venue, sym, adjusted, limits.MinQuantity)
	}
	if limits.MaxQuantity.Sign() > 0 && adjusted.GreaterThan(limits.MaxQuantity) {
		adjusted = roundToStep(limits.MaxQuantity, limits.QuantityStep)
	}
	if limits.MinNotional.Sign() > 0 && price.Sign() > 0 {
		notional := adjusted.Mul(price)
		if notional.LessThan(limits.MinNotional) {
			return decimal.Zero, fmt.Errorf("%s/%s: notional %s below minimum %s", venue, sym, notional, limits.MinNotional)
		}
	}

	return adjusted, nil
}

// ValidateBothLegs validates each leg independently and returns the smaller
// of the two adjusted quantities, so the matched size can never exceed
// either venue's tradable lot.
func (v *Validator) ValidateBothLegs(buyVenue, sellVenue string, sym domain.Symbol, qty, buyPrice, sellPrice decimal.Decimal) (decimal.Decimal, error) {
	buyQty, err := v.ValidateLeg(buyVenue, sym, qty, buyPrice)
	if err != nil {
		return decimal.Zero, err
	}
	sellQty, err := v.ValidateLeg(sellVenue, sym, qty, sellPrice)
	if err != nil {
		return decimal.Zero, err
	}
	if sellQty.LessThan(buyQty) {
		return sellQty, nil
	}
	return buyQty, nil
}
