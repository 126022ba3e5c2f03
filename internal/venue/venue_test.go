package venue_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiq/enginecore/internal/domain"
	"github.com/arbiq/enginecore/internal/normalizer/venuea"
	"github.com/arbiq/enginecore/internal/symbol"
	"github.com/arbiq/enginecore/internal/venue"
)

func newTestAdapter(t *testing.T, baseURL string) *venue.RESTAdapter {
	t.Helper()
	return venue.NewRESTAdapter(venue.RESTConfig{
		VenueName:  "testvenue",
		BaseURL:    baseURL,
		RenderRule: symbol.VenueRenderRule{Separator: "-"},
		Normalizer: venuea.NewNormalizer("testvenue"),
		Endpoints: venue.Endpoints{
			OrderBook: func(rendered string, depth int) string { return "/orderbook/" + rendered },
			PlaceOrder: "/orders",
			CancelOrder: func(id string) string { return "/orders/" + id },
			GetOrder:    func(id string) string { return "/orders/" + id },
			OpenOrders:  "/orders",
			Balance:     func(currency string) string { return "/balances/" + currency },
		},
		TakerFee: decimal.NewFromFloat(0.005),
		MakerFee: decimal.NewFromFloat(0.003),
	})
}

func TestRESTAdapter_FetchOrderBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"pricebook": {
				"product_id": "BTC-USD",
				"bids": [["50000.00", "1.0"]],
				"asks": [["50001.00", "1.0"]]
			},
			"time": "2026-01-01T00:00:00Z"
		}`))
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	sym, err := symbol.Canonicalise("BTC-USD")
	require.NoError(t, err)

	book, err := a.FetchOrderBook(context.Background(), sym, 5)
	require.NoError(t, err)
	assert.Len(t, book.Bids, 1)
}

func TestRESTAdapter_PlaceOrder_RejectsNonPositiveQuantity(t *testing.T) {
	a := newTestAdapter(t, "http://unused.invalid")
	sym, _ := symbol.Canonicalise("BTC-USD")

	_, err := a.PlaceOrder(context.Background(), venue.PlaceOrderRequest{
		Symbol:   sym,
		Side:     domain.SideBuy,
		Type:     domain.OrderTypeMarket,
		Quantity: decimal.Zero,
	})
	assert.Error(t, err)
}

func TestRESTAdapter_PlaceOrder_RejectsZeroLimitPrice(t *testing.T) {
	a := newTestAdapter(t, "http://unused.invalid")
	sym, _ := symbol.Canonicalise("BTC-USD")

	_, err := a.PlaceOrder(context.Background(), venue.PlaceOrderRequest{
		Symbol:   sym,
		Side:     domain.SideBuy,
		Type:     domain.OrderTypeLimit,
		Quantity: decimal.NewFromInt(1),
		Price:    decimal.Zero,
	})
	assert.Error(t, err)
}

func TestRESTAdapter_PlaceOrder_IgnoresUnsupportedPostOnly(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"order_id": "ord-1",
			"product_id": "BTC-USD",
			"order_configuration": {"limit_limit_gtc": {"base_size": "1.0", "limit_price": "50000.00", "post_only": false}},
			"side": "BUY",
			"status": "OPEN",
			"time_in_force": "GOOD_UNTIL_CANCELLED",
			"created_time": "2026-01-01T00:00:00Z"
		}`))
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	sym, _ := symbol.Canonicalise("BTC-USD")

	order, err := a.PlaceOrder(context.Background(), venue.PlaceOrderRequest{
		Symbol:   sym,
		Side:     domain.SideBuy,
		Type:     domain.OrderTypeLimit,
		Quantity: decimal.NewFromInt(1),
		Price:    decimal.NewFromInt(50000),
		PostOnly: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "ord-1", order.VenueOrderID)
	_ = gotBody
}

func TestRESTAdapter_GetTakerMakerFee(t *testing.T) {
	a := newTestAdapter(t, "http://unused.invalid")
	assert.True(t, a.GetTakerFee().Equal(decimal.NewFromFloat(0.005)))
	assert.True(t, a.GetMakerFee().Equal(decimal.NewFromFloat(0.003)))
}

func TestRESTAdapter_IsAuthenticated_FalseWithoutSigner(t *testing.T) {
	a := newTestAdapter(t, "http://unused.invalid")
	assert.False(t, a.IsAuthenticated())
}

func TestRESTAdapter_GetOpenOrders_ParsesList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"orders": [
				{
					"order_id": "ord-1",
					"product_id": "BTC-USD",
					"order_configuration": {"limit_limit_gtc": {"base_size": "1.0", "limit_price": "50000.00", "post_only": false}},
					"side": "BUY",
					"status": "OPEN",
					"time_in_force": "GOOD_UNTIL_CANCELLED",
					"created_time": "2026-01-01T00:00:00Z"
				},
				{
					"order_id": "ord-2",
					"product_id": "ETH-USD",
					"order_configuration": {"market_market_ioc": {"base_size": "2.0"}},
					"side": "SELL",
					"status": "FILLED",
					"time_in_force": "IMMEDIATE_OR_CANCEL",
					"created_time": "2026-01-01T00:00:00Z"
				}
			],
			"has_next": false
		}`))
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	orders, err := a.GetOpenOrders(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "ord-1", orders[0].VenueOrderID)
	assert.Equal(t, "ord-2", orders[1].VenueOrderID)
}

func TestRESTAdapter_CancelOrder_TreatsNotFoundAsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "not_found", "message": "order not found"}`))
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	sym, _ := symbol.Canonicalise("BTC-USD")
	err := a.CancelOrder(context.Background(), "ord-missing", sym)
	assert.NoError(t, err)
}
