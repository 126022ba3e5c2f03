package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel is one resting price/quantity pair in an order book.
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// OrderBook is an immutable order book reading at a point in time. Bids are
// strictly price-descending, asks strictly price-ascending; no entry has
// non-positive price or quantity.
type OrderBook struct {
	Venue     string
	Symbol    Symbol
	Timestamp time.Time
	Bids      []PriceLevel
	Asks      []PriceLevel
}

// Validate enforces the invariants from the data model: strict ordering, and no
// non-positive price or quantity anywhere in the book.
func (b OrderBook) Validate() error {
	if err := validateLevels(b.Bids, true); err != nil {
		return fmt.Errorf("bids: %w", err)
	}
	if err := validateLevels(b.Asks, false); err != nil {
		return fmt.Errorf("asks: %w", err)
	}
	return nil
}

func validateLevels(levels []PriceLevel, descending bool) error {
	var prev decimal.Decimal
	for i, lvl := range levels {
		if lvl.Price.Sign() <= 0 {
			return fmt.Errorf("level %d has non-positive price %s", i, lvl.Price)
		}
		if lvl.Quantity.Sign() <= 0 {
			return fmt.Errorf("level %d has non-positive quantity %s", i, lvl.Quantity)
		}
		if i > 0 {
			if descending && !prev.GreaterThan(lvl.Price) {
				return fmt.Errorf("level %d is not strictly descending from level %d", i, i-1)
			}
			if !descending && !lvl.Price.GreaterThan(prev) {
				return fmt.Errorf("level %d is not strictly ascending from level %d", i, i-1)
			}
		}
		prev = lvl.Price
	}
	return nil
}

// BestBid returns the highest bid, or false if the book has no bids.
func (b OrderBook) BestBid() (PriceLevel, bool) {
	if len(b.Bids) == 0 {
		return PriceLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the lowest ask, or false if the book has no asks.
func (b OrderBook) BestAsk() (PriceLevel, bool) {
	if len(b.Asks) == 0 {
		return PriceLevel{}, false
	}
	return b.Asks[0], true
}

// Age returns how long ago the snapshot was taken, relative to now.
func (b OrderBook) Age(now time.Time) time.Duration {
	return now.Sub(b.Timestamp)
}

// Trade is a single executed match reported by a venue's public trade feed.
type Trade struct {
	Venue     string
	Symbol    Symbol
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Side      OrderSide // taker side
	Timestamp time.Time
}
