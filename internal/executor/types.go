// Package executor places both legs of a detected arbitrage opportunity,
// reconciles their fills, and journals the outcome.
package executor

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbiq/enginecore/internal/domain"
)

// Outcome classifies the terminal result of one execution attempt.
type Outcome string

const (
	OutcomeSuccess         Outcome = "SUCCESS"
	OutcomeRejected        Outcome = "REJECTED"
	OutcomePartial         Outcome = "PARTIAL"
	OutcomeFailed          Outcome = "FAILED"
	OutcomeTimeout         Outcome = "TIMEOUT"
	OutcomeSpreadCollapsed Outcome = "SPREAD_COLLAPSED"
)

// Result is returned by Execute.
type Result struct {
	Outcome Outcome
	Reason  string
	Trade   *domain.Trade

	// Exposure is set when one leg filled more than the other; the residual
	// is left for the operator to manage, never auto-market-sold.
	ExposureSide OrderSide
	ExposureQty  decimal.Decimal
}

// OrderSide aliases domain.OrderSide so callers outside domain need not
// import it solely to read Result.ExposureSide.
type OrderSide = domain.OrderSide

// Opportunity is the subset of a detected arbitrage candidate the executor
// needs, decoupled from the detector package's ranking fields.
type Opportunity struct {
	Symbol    domain.Symbol
	BuyVenue  string
	SellVenue string
	Quantity  decimal.Decimal
	BuyPrice  decimal.Decimal
	SellPrice decimal.Decimal
	BuyFee    decimal.Decimal
	SellFee   decimal.Decimal
	// SnapshotAt is the age reference used for the freshness recheck.
	SnapshotAt time.Time
}

// LegIntent describes one planned leg, passed to the maker-taker Advisor.
type LegIntent struct {
	Venue    string
	Symbol   domain.Symbol
	Side     domain.OrderSide
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

// Advisor recommends whether a leg should rest as a post-only maker order.
// Advisor errors are logged and otherwise ignored: the executor defaults to
// taker whenever the advisor is absent, unhealthy, or errors.
type Advisor interface {
	Advise(ctx context.Context, leg LegIntent) (postOnly bool, err error)
}

// Journal is the narrow append-only recording surface the executor writes
// through. Failures are logged but never alter the execution outcome.
type Journal interface {
	RecordOrder(ctx context.Context, order *domain.Order) error
	RecordTrade(ctx context.Context, trade *domain.Trade) error
}

// Quoter resolves the current top-of-book snapshot for a re-fetch during the
// freshness recheck.
type Quoter interface {
	Snapshot(venueName string, sym domain.Symbol) (book *domain.OrderBook, fresh bool)
}
