package venueb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/arbiq/enginecore/internal/domain"
	"github.com/arbiq/enginecore/internal/normalizer"
	"github.com/arbiq/enginecore/internal/symbol"
)

// fillResponse mirrors an institutional venue's execution report, pushed over
// its fills feed rather than returned from an order-status poll. It carries
// order-level state (TotalFilled, FilledVWAP, OrderStatus) alongside the
// individual fill, so a single fill message fully describes the order's
// current state.
type fillResponse struct {
	OrderID       string  `json:"order_id"`
	ClientOrderID string  `json:"client_order_id"`
	ProductID     string  `json:"product_id"`
	Side          string  `json:"side"`
	FillPrice     float64 `json:"fill_price"`
	FillQty       float64 `json:"fill_qty"`
	OrderQty      float64 `json:"order_qty"`
	LimitPrice    float64 `json:"limit_price"`
	TotalFilled   float64 `json:"total_filled"`
	FilledVWAP    float64 `json:"filled_vwap"`
	TimeInForce   string  `json:"time_in_force"`
	Fee           float64 `json:"fee"`
	OrderStatus   string  `json:"order_status"`
	EventTime     string  `json:"event_time"`
}

// NormalizeFill converts an execution report into a domain.Order reflecting
// the order's state as of this fill. It is not part of the Normalizer
// interface: the engine's order state machine reads this venue's fills off a
// push feed rather than a pull-based order-status endpoint, so callers invoke
// it directly from the fill subscription handler rather than through the
// shared Normalizer interface used by REST-polling venues.
func (n *Normalizer) NormalizeFill(ctx context.Context, raw []byte) (*domain.Order, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty fill response")
	}

	var resp fillResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse fill: %w", err)
	}

	sym, err := symbol.Canonicalise(resp.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalise product id %q: %w", resp.ProductID, err)
	}

	side, err := normalizer.ParseOrderSide(resp.Side)
	if err != nil {
		return nil, fmt.Errorf("fill for order %s: %w", resp.OrderID, err)
	}

	eventTime, err := normalizer.ParseTimestamp(resp.EventTime)
	if err != nil {
		return nil, fmt.Errorf("fill for order %s: invalid event_time: %w", resp.OrderID, err)
	}

	return &domain.Order{
		Venue:          n.VenueID,
		Symbol:         sym,
		Side:           side,
		Type:           domain.OrderTypeLimit,
		TimeInForce:    mapTimeInForce(resp.TimeInForce),
		Quantity:       decimal.NewFromFloat(resp.OrderQty),
		LimitPrice:     decimal.NewFromFloat(resp.LimitPrice),
		VenueOrderID:   resp.OrderID,
		Status:         mapOrderStatus(resp.OrderStatus),
		FilledQuantity: decimal.NewFromFloat(resp.TotalFilled),
		AvgFillPrice:   decimal.NewFromFloat(resp.FilledVWAP),
		ObservedFee:    decimal.NewFromFloat(resp.Fee),
		CreatedAt:      eventTime,
		UpdatedAt:      eventTime,
	}, nil
}
