package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is the immutable record of one completed (or partially completed)
// arbitrage execution, written through the journaling hook. At most one
// Trade is ever recorded per execution attempt.
type Trade struct {
	ID              string
	Symbol          Symbol
	BuyVenue        string
	SellVenue       string
	MatchedQuantity decimal.Decimal
	BuyPrice        decimal.Decimal
	SellPrice       decimal.Decimal
	BuyFee          decimal.Decimal
	SellFee         decimal.Decimal
	NetProfitQuote  decimal.Decimal
	Outcome         string // SUCCESS, PARTIAL, FAILED, TIMEOUT
	ExposureSide    OrderSide
	ExposureQty     decimal.Decimal
	ExposureNote    string
	ExecutedAt      time.Time
}
