// Package journal implements the append-only trade journaling hook: every
// order acknowledgement, every terminal trade outcome, and every advisor
// feature snapshot is written through a narrow Repository interface.
// Journaling is best-effort — failures are logged by the caller and never
// alter an execution outcome.
package journal

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbiq/enginecore/internal/domain"
	"github.com/arbiq/enginecore/pkg/types"
)

// Mode selects how durable a Repository's writes are. It is a property of
// the journaling sink alone: the detector and executor never branch on it.
type Mode string

const (
	// ModeRealistic writes every record to the durable trades/orders tables.
	ModeRealistic Mode = "realistic"
	// ModePaper writes to a separate paper-trading partition, so simulated
	// runs never mix with live history.
	ModePaper Mode = "paper"
	// ModeDryRun logs what would have been written and persists nothing.
	ModeDryRun Mode = "dry-run"
)

// Valid reports whether m is one of the three recognised modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeRealistic, ModePaper, ModeDryRun:
		return true
	default:
		return false
	}
}

// FeatureSnapshot is the advisor's input/output pair captured at decision
// time, recorded for later offline evaluation of the maker/taker model.
type FeatureSnapshot struct {
	Symbol           domain.Symbol
	Venue            string
	Side             domain.OrderSide
	Quantity         decimal.Decimal
	Price            decimal.Decimal
	UsedMaker        bool
	Confidence       float64
	PredictedFillPrice decimal.Decimal
	RecordedAt       time.Time
}

// TradeFilter narrows ListTrades beyond what types.TimeRange and
// types.PaginationParams already express.
type TradeFilter struct {
	Symbols    []string
	Venue      string
	Outcome    string
	Range      types.TimeRange
	Pagination types.PaginationParams
}

// Repository is the narrow append-only surface the executor and advisor
// write through. Implementations must be safe for concurrent use.
type Repository interface {
	RecordOrder(ctx context.Context, order *domain.Order) error
	RecordTrade(ctx context.Context, trade *domain.Trade) error
	RecordFeatures(ctx context.Context, snapshot FeatureSnapshot) error
}

// QueryRepository is implemented by Repository backends that also expose a
// read surface for operator tooling built outside the core. It is never
// consumed by the detector or executor.
type QueryRepository interface {
	Repository
	ListTrades(ctx context.Context, filter TradeFilter) ([]*domain.Trade, error)
}
