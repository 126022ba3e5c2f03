package venue

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/arbiq/enginecore/internal/auth"
	"github.com/arbiq/enginecore/internal/domain"
	"github.com/arbiq/enginecore/internal/normalizer"
	"github.com/arbiq/enginecore/internal/symbol"
)

// Endpoints describes how a venue maps the Adapter's operations onto its REST
// surface. Every path is relative to the adapter's configured base URL.
type Endpoints struct {
	OrderBook   func(rendered string, depth int) string
	PlaceOrder  string
	CancelOrder func(venueOrderID string) string
	GetOrder    func(venueOrderID string) string
	OpenOrders  string
	Balance     func(currency string) string
}

// RESTConfig configures a RESTAdapter.
type RESTConfig struct {
	VenueName        string
	BaseURL          string
	RenderRule       symbol.VenueRenderRule
	Signer           auth.Signer
	Normalizer       normalizer.Normalizer
	Endpoints        Endpoints
	TakerFee         decimal.Decimal
	MakerFee         decimal.Decimal
	Timeout          time.Duration
	RetryCount       int
	SupportsPostOnly bool
	Logger           *zap.Logger
}

// RESTAdapter is a generic REST-polling Adapter implementation shared by
// venues that expose order, balance, and order book state over request/
// response HTTP endpoints rather than a push feed. SubscribeOrderBook falls
// back to polling at a fixed interval, since not every REST venue exposes a
// websocket; SubscribeTrades is not supported and returns an error.
type RESTAdapter struct {
	cfg    RESTConfig
	client *resty.Client
	log    *zap.Logger
}

// NewRESTAdapter builds a RESTAdapter wired with exponential-backoff retries
// for transient failures (network errors, 429, 5xx) and a Signer-based
// authentication middleware installed on the underlying transport.
func NewRESTAdapter(cfg RESTConfig) *RESTAdapter {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})

	if cfg.Signer != nil {
		c.SetTransport(auth.Middleware(cfg.Signer, http.DefaultTransport))
	}

	return &RESTAdapter{cfg: cfg, client: c, log: log}
}

func (a *RESTAdapter) Name() string { return a.cfg.VenueName }

func (a *RESTAdapter) IsAuthenticated() bool { return a.cfg.Signer != nil }

func (a *RESTAdapter) GetTakerFee() decimal.Decimal { return a.cfg.TakerFee }
func (a *RESTAdapter) GetMakerFee() decimal.Decimal { return a.cfg.MakerFee }

func (a *RESTAdapter) FetchOrderBook(ctx context.Context, sym domain.Symbol, depth int) (*domain.OrderBook, error) {
	if depth < 1 {
		depth = 1
	}
	rendered := symbol.Render(sym, a.cfg.RenderRule)
	resp, err := a.client.R().SetContext(ctx).Get(a.cfg.Endpoints.OrderBook(rendered, depth))
	if err != nil {
		return nil, fmt.Errorf("%s: fetch order book: %w", a.cfg.VenueName, err)
	}
	if resp.IsError() {
		return nil, a.cfg.Normalizer.NormalizeError(ctx, resp.StatusCode(), resp.Body())
	}
	return a.cfg.Normalizer.NormalizeOrderBook(ctx, resp.Body())
}

func (a *RESTAdapter) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*domain.Order, error) {
	if req.Quantity.Sign() <= 0 {
		return nil, fmt.Errorf("%s: place order: quantity must be positive", a.cfg.VenueName)
	}
	if req.Type == domain.OrderTypeLimit && req.Price.Sign() <= 0 {
		return nil, fmt.Errorf("%s: place order: limit price must be positive", a.cfg.VenueName)
	}
	if req.PostOnly && !a.cfg.SupportsPostOnly {
		a.log.Warn("post_only requested but venue does not support it; ignoring",
			zap.String("venue", a.cfg.VenueName))
		req.PostOnly = false
	}

	body := a.buildOrderPayload(req)
	resp, err := a.client.R().SetContext(ctx).SetBody(body).Post(a.cfg.Endpoints.PlaceOrder)
	if err != nil {
		return nil, fmt.Errorf("%s: place order: %w", a.cfg.VenueName, err)
	}
	if resp.IsError() {
		return nil, a.cfg.Normalizer.NormalizeError(ctx, resp.StatusCode(), resp.Body())
	}
	return a.cfg.Normalizer.NormalizeOrder(ctx, resp.Body())
}

func (a *RESTAdapter) buildOrderPayload(req PlaceOrderRequest) map[string]interface{} {
	payload := map[string]interface{}{
		"product_id": symbol.Render(req.Symbol, a.cfg.RenderRule),
		"side":       string(req.Side),
		"type":       string(req.Type),
		"quantity":   req.Quantity.String(),
	}
	if req.Type == domain.OrderTypeLimit {
		payload["price"] = req.Price.String()
		payload["post_only"] = req.PostOnly
		payload["time_in_force"] = string(req.TimeInForce)
	}
	return payload
}

func (a *RESTAdapter) CancelOrder(ctx context.Context, venueOrderID string, _ domain.Symbol) error {
	resp, err := a.client.R().SetContext(ctx).Delete(a.cfg.Endpoints.CancelOrder(venueOrderID))
	if err != nil {
		return fmt.Errorf("%s: cancel order: %w", a.cfg.VenueName, err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return a.cfg.Normalizer.NormalizeError(ctx, resp.StatusCode(), resp.Body())
	}
	return nil
}

func (a *RESTAdapter) GetOrder(ctx context.Context, venueOrderID string, _ domain.Symbol) (*domain.Order, error) {
	resp, err := a.client.R().SetContext(ctx).Get(a.cfg.Endpoints.GetOrder(venueOrderID))
	if err != nil {
		return nil, fmt.Errorf("%s: get order: %w", a.cfg.VenueName, err)
	}
	if resp.IsError() {
		return nil, a.cfg.Normalizer.NormalizeError(ctx, resp.StatusCode(), resp.Body())
	}
	return a.cfg.Normalizer.NormalizeOrder(ctx, resp.Body())
}

func (a *RESTAdapter) GetOpenOrders(ctx context.Context, _ *domain.Symbol) ([]*domain.Order, error) {
	resp, err := a.client.R().SetContext(ctx).Get(a.cfg.Endpoints.OpenOrders)
	if err != nil {
		return nil, fmt.Errorf("%s: get open orders: %w", a.cfg.VenueName, err)
	}
	if resp.IsError() {
		return nil, a.cfg.Normalizer.NormalizeError(ctx, resp.StatusCode(), resp.Body())
	}
	return a.cfg.Normalizer.NormalizeOrders(ctx, resp.Body())
}

func (a *RESTAdapter) GetBalance(ctx context.Context, currency string) (*domain.Balance, error) {
	resp, err := a.client.R().SetContext(ctx).Get(a.cfg.Endpoints.Balance(currency))
	if err != nil {
		return nil, fmt.Errorf("%s: get balance: %w", a.cfg.VenueName, err)
	}
	if resp.IsError() {
		return nil, a.cfg.Normalizer.NormalizeError(ctx, resp.StatusCode(), resp.Body())
	}
	return a.cfg.Normalizer.NormalizeBalance(ctx, resp.Body())
}

// SubscribeOrderBook polls FetchOrderBook at a fixed interval since not every
// REST venue exposes a streaming order book feed; venues that do should use a
// dedicated streaming adapter instead of RESTAdapter.
func (a *RESTAdapter) SubscribeOrderBook(ctx context.Context, sym domain.Symbol, handler OrderBookHandler) error {
	const pollInterval = 2 * time.Second
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			book, err := a.FetchOrderBook(ctx, sym, 10)
			if err != nil {
				a.log.Warn("order book poll failed", zap.String("venue", a.cfg.VenueName), zap.Error(err))
				continue
			}
			if err := handler(book); err != nil {
				return err
			}
		}
	}
}

// SubscribeTrades is unsupported for a bare REST adapter; venues with a
// public trades feed provide their own streaming implementation.
func (a *RESTAdapter) SubscribeTrades(ctx context.Context, sym domain.Symbol, handler TradeHandler) error {
	return fmt.Errorf("%s: streaming trades not supported by RESTAdapter", a.cfg.VenueName)
}

func (a *RESTAdapter) Health(ctx context.Context) error {
	resp, err := a.client.R().SetContext(ctx).Get(a.cfg.Endpoints.OpenOrders)
	if err != nil {
		return fmt.Errorf("%s: health check: %w", a.cfg.VenueName, err)
	}
	if resp.StatusCode() >= 500 {
		return fmt.Errorf("%s: health check: status %d", a.cfg.VenueName, resp.StatusCode())
	}
	return nil
}

var _ Adapter = (*RESTAdapter)(nil)
