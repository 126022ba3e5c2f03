// Package venue defines the unified Adapter interface that all venue
// implementations satisfy, plus a resty-based REST implementation and a mock
// for testing consumers without a live venue connection.
package venue

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/arbiq/enginecore/internal/domain"
)

// Adapter defines the operations every venue connector provides. Trading
// operations, account queries, and market data all speak domain types, never
// the venue's wire format; normalization happens beneath this interface.
//
// All methods accept a context.Context for cancellation and timeout support.
// Implementations handle venue-specific authentication, rate limiting, and
// response normalization internally, and must be safe for concurrent use.
type Adapter interface {
	// FetchOrderBook retrieves an order book snapshot of at least depth levels
	// per side where the venue supports it; depth is clamped to whatever the
	// venue allows. Bids and asks are sorted and non-empty on both sides if
	// the market exists.
	FetchOrderBook(ctx context.Context, symbol domain.Symbol, depth int) (*domain.OrderBook, error)

	// PlaceOrder submits a new order. price is ignored for market orders.
	// postOnly is honoured only if the venue supports it; if not, the
	// implementation places the order without it and logs a warning rather
	// than failing.
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*domain.Order, error)

	// CancelOrder cancels an order by venue order ID. Idempotent: cancelling
	// an order already in a terminal state returns success rather than an
	// error.
	CancelOrder(ctx context.Context, venueOrderID string, symbol domain.Symbol) error

	// GetOrder retrieves the current state of an order by venue order ID.
	GetOrder(ctx context.Context, venueOrderID string, symbol domain.Symbol) (*domain.Order, error)

	// GetOpenOrders lists currently open orders, optionally scoped to a
	// symbol, for startup recovery.
	GetOpenOrders(ctx context.Context, symbol *domain.Symbol) ([]*domain.Order, error)

	// GetBalance retrieves available and locked balance for a currency.
	GetBalance(ctx context.Context, currency string) (*domain.Balance, error)

	// GetTakerFee and GetMakerFee return the venue's current fee rate as a
	// fraction (e.g. 0.001 for 10bps). Both are infallible: an adapter that
	// cannot determine its live fee schedule falls back to a configured
	// default rather than erroring.
	GetTakerFee() decimal.Decimal
	GetMakerFee() decimal.Decimal

	// IsAuthenticated reports whether the adapter holds credentials capable
	// of signing authenticated requests. Infallible.
	IsAuthenticated() bool

	// SubscribeOrderBook establishes a streaming or polling subscription to
	// order book updates for symbol. The handler is invoked for each update;
	// the subscription remains active until ctx is cancelled or handler
	// returns an error.
	SubscribeOrderBook(ctx context.Context, symbol domain.Symbol, handler OrderBookHandler) error

	// SubscribeTrades establishes a subscription to public trade prints for
	// symbol, with the same lifecycle as SubscribeOrderBook.
	SubscribeTrades(ctx context.Context, symbol domain.Symbol, handler TradeHandler) error

	// Health performs a lightweight reachability check against the venue.
	Health(ctx context.Context) error

	// Name identifies the venue for logging, metrics, and journal entries.
	Name() string
}

// PlaceOrderRequest carries the parameters for a new order. Price is required
// for limit orders and ignored for market orders.
type PlaceOrderRequest struct {
	Symbol      domain.Symbol
	Side        domain.OrderSide
	Type        domain.OrderType
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	PostOnly    bool
	TimeInForce domain.TimeInForce
}

// OrderBookHandler is invoked for each order book update. Implementations
// must not block; long-running work should be dispatched to another
// goroutine.
type OrderBookHandler func(book *domain.OrderBook) error

// TradeHandler is invoked for each public trade print.
type TradeHandler func(trade *domain.Trade) error
