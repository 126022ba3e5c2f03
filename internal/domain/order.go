// Package domain holds the canonical trading types shared by every component of the
// engine: symbols, order books, orders, balances and trade records. Nothing in
// this package talks to a venue or a database; it is the vocabulary the rest of the
// tree is built on.
package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbiq/enginecore/internal/symbol"
)

// Symbol re-exports the canonical instrument identity type so that domain structs
// can reference it without every package importing internal/symbol directly.
type Symbol = symbol.Symbol

// OrderSide is the direction of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

func (s OrderSide) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Opposite returns the other side, used when building compensation orders.
func (s OrderSide) Opposite() OrderSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType is the order's execution style.
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// OrderStatus is the lifecycle state of an order. Terminal states are FILLED,
// CANCELLED and REJECTED; an order never regresses from a terminal state.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusOpen            OrderStatus = "OPEN"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusUnknown         OrderStatus = "UNKNOWN"
)

// Terminal reports whether the status can never change again.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	default:
		return false
	}
}

// TimeInForce constrains how long an order rests before the venue cancels it.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
	TimeInForceGTD TimeInForce = "GTD"
)

// Order is created when submitted to a venue and mutated only by status-poll results.
type Order struct {
	Venue          string
	Symbol         Symbol
	Side           OrderSide
	Type           OrderType
	TimeInForce    TimeInForce
	Quantity       decimal.Decimal
	LimitPrice     decimal.Decimal // zero value for MARKET orders
	PostOnly       bool
	VenueOrderID   string // empty until the venue acknowledges
	Status         OrderStatus
	FilledQuantity decimal.Decimal
	AvgFillPrice   decimal.Decimal
	ObservedFee    decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// Balance is the available and locked quantity of a single currency on a venue.
type Balance struct {
	Currency  string
	Available decimal.Decimal
	Locked    decimal.Decimal
	AsOf      time.Time
}

// Total is Available plus Locked.
func (b Balance) Total() decimal.Decimal {
	return b.Available.Add(b.Locked)
}
