// Package mock provides a deterministic mock implementation of venue.Adapter
// for testing consuming services without requiring live venue connections.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/arbiq/enginecore/internal/domain"
	"github.com/arbiq/enginecore/internal/venue"
)

// Adapter is a mock implementation of venue.Adapter. It provides configurable
// behaviors for each method and tracks call counts for assertion in tests.
//
// Thread-safe: all methods can be called concurrently.
type Adapter struct {
	mu sync.RWMutex

	VenueName string
	TakerFee  decimal.Decimal
	MakerFee  decimal.Decimal
	Authed    bool

	OnFetchOrderBook     func(ctx context.Context, symbol domain.Symbol, depth int) (*domain.OrderBook, error)
	OnPlaceOrder         func(ctx context.Context, req venue.PlaceOrderRequest) (*domain.Order, error)
	OnCancelOrder        func(ctx context.Context, venueOrderID string, symbol domain.Symbol) error
	OnGetOrder           func(ctx context.Context, venueOrderID string, symbol domain.Symbol) (*domain.Order, error)
	OnGetOpenOrders      func(ctx context.Context, symbol *domain.Symbol) ([]*domain.Order, error)
	OnGetBalance         func(ctx context.Context, currency string) (*domain.Balance, error)
	OnSubscribeOrderBook func(ctx context.Context, symbol domain.Symbol, handler venue.OrderBookHandler) error
	OnSubscribeTrades    func(ctx context.Context, symbol domain.Symbol, handler venue.TradeHandler) error
	OnHealth             func(ctx context.Context) error

	placeOrderCalls  []placeOrderCall
	cancelOrderCalls []cancelOrderCall
	getOrderCalls    []getOrderCall
	getBalanceCalls  []getBalanceCall
}

type placeOrderCall struct {
	ctx context.Context
	req venue.PlaceOrderRequest
}

type cancelOrderCall struct {
	ctx          context.Context
	venueOrderID string
	symbol       domain.Symbol
}

type getOrderCall struct {
	ctx          context.Context
	venueOrderID string
	symbol       domain.Symbol
}

type getBalanceCall struct {
	ctx      context.Context
	currency string
}

func (a *Adapter) Name() string { return a.VenueName }

func (a *Adapter) IsAuthenticated() bool { return a.Authed }

func (a *Adapter) GetTakerFee() decimal.Decimal { return a.TakerFee }
func (a *Adapter) GetMakerFee() decimal.Decimal { return a.MakerFee }

func (a *Adapter) FetchOrderBook(ctx context.Context, symbol domain.Symbol, depth int) (*domain.OrderBook, error) {
	a.mu.RLock()
	handler := a.OnFetchOrderBook
	a.mu.RUnlock()
	if handler != nil {
		return handler(ctx, symbol, depth)
	}
	return &domain.OrderBook{Venue: a.VenueName, Symbol: symbol}, nil
}

func (a *Adapter) PlaceOrder(ctx context.Context, req venue.PlaceOrderRequest) (*domain.Order, error) {
	a.mu.Lock()
	a.placeOrderCalls = append(a.placeOrderCalls, placeOrderCall{ctx: ctx, req: req})
	handler := a.OnPlaceOrder
	n := len(a.placeOrderCalls)
	a.mu.Unlock()

	if handler != nil {
		return handler(ctx, req)
	}
	return &domain.Order{
		Venue:        a.VenueName,
		Symbol:       req.Symbol,
		Side:         req.Side,
		Type:         req.Type,
		Quantity:     req.Quantity,
		LimitPrice:   req.Price,
		VenueOrderID: fmt.Sprintf("mock-order-%d", n),
		Status:       domain.OrderStatusOpen,
	}, nil
}

func (a *Adapter) CancelOrder(ctx context.Context, venueOrderID string, symbol domain.Symbol) error {
	a.mu.Lock()
	a.cancelOrderCalls = append(a.cancelOrderCalls, cancelOrderCall{ctx: ctx, venueOrderID: venueOrderID, symbol: symbol})
	handler := a.OnCancelOrder
	a.mu.Unlock()

	if handler != nil {
		return handler(ctx, venueOrderID, symbol)
	}
	return nil
}

func (a *Adapter) GetOrder(ctx context.Context, venueOrderID string, symbol domain.Symbol) (*domain.Order, error) {
	a.mu.Lock()
	a.getOrderCalls = append(a.getOrderCalls, getOrderCall{ctx: ctx, venueOrderID: venueOrderID, symbol: symbol})
	handler := a.OnGetOrder
	a.mu.Unlock()

	if handler != nil {
		return handler(ctx, venueOrderID, symbol)
	}
	return &domain.Order{Venue: a.VenueName, Symbol: symbol, VenueOrderID: venueOrderID, Status: domain.OrderStatusOpen}, nil
}

func (a *Adapter) GetOpenOrders(ctx context.Context, symbol *domain.Symbol) ([]*domain.Order, error) {
	a.mu.RLock()
	handler := a.OnGetOpenOrders
	a.mu.RUnlock()
	if handler != nil {
		return handler(ctx, symbol)
	}
	return nil, nil
}

func (a *Adapter) GetBalance(ctx context.Context, currency string) (*domain.Balance, error) {
	a.mu.Lock()
	a.getBalanceCalls = append(a.getBalanceCalls, getBalanceCall{ctx: ctx, currency: currency})
	handler := a.OnGetBalance
	a.mu.Unlock()

	if handler != nil {
		return handler(ctx, currency)
	}
	return &domain.Balance{Currency: currency}, nil
}

func (a *Adapter) SubscribeOrderBook(ctx context.Context, symbol domain.Symbol, handler venue.OrderBookHandler) error {
	a.mu.RLock()
	onSubscribe := a.OnSubscribeOrderBook
	a.mu.RUnlock()
	if onSubscribe != nil {
		return onSubscribe(ctx, symbol, handler)
	}
	return nil
}

func (a *Adapter) SubscribeTrades(ctx context.Context, symbol domain.Symbol, handler venue.TradeHandler) error {
	a.mu.RLock()
	onSubscribe := a.OnSubscribeTrades
	a.mu.RUnlock()
	if onSubscribe != nil {
		return onSubscribe(ctx, symbol, handler)
	}
	return nil
}

func (a *Adapter) Health(ctx context.Context) error {
	a.mu.RLock()
	handler := a.OnHealth
	a.mu.RUnlock()
	if handler != nil {
		return handler(ctx)
	}
	return nil
}

// PlaceOrderCallCount returns the number of times PlaceOrder was called.
func (a *Adapter) PlaceOrderCallCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.placeOrderCalls)
}

// GetBalanceCallCount returns the number of times GetBalance was called.
func (a *Adapter) GetBalanceCallCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.getBalanceCalls)
}

// Reset clears all call history and configured handlers.
func (a *Adapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.OnFetchOrderBook = nil
	a.OnPlaceOrder = nil
	a.OnCancelOrder = nil
	a.OnGetOrder = nil
	a.OnGetOpenOrders = nil
	a.OnGetBalance = nil
	a.OnSubscribeOrderBook = nil
	a.OnSubscribeTrades = nil
	a.OnHealth = nil

	a.placeOrderCalls = nil
	a.cancelOrderCalls = nil
	a.getOrderCalls = nil
	a.getBalanceCalls = nil
}

var _ venue.Adapter = (*Adapter)(nil)
