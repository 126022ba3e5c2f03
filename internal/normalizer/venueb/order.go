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

// orderResponse mirrors an institutional venue's order object. Numeric fields
// arrive as JSON numbers rather than strings, and algorithmic order types
// (TWAP, VWAP, BLOCK, RFQ) have no local equivalent and fall back to limit.
type orderResponse struct {
	ID            string  `json:"order_id"`
	ClientOrderID string  `json:"client_order_id"`
	ProductID     string  `json:"product_id"`
	Side          string  `json:"side"`
	Type          string  `json:"type"`
	BaseQuantity  float64 `json:"base_quantity"`
	LimitPrice    float64 `json:"limit_price"`
	Status        string  `json:"status"`
	TimeInForce   string  `json:"time_in_force"`
	PostOnly      bool    `json:"post_only"`
	TotalFilled   float64 `json:"total_filled_quantity"`
	FilledVWAP    float64 `json:"average_filled_price"`
	Fee           float64 `json:"commission"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

// NormalizeOrder converts an order JSON object to a domain.Order.
func (n *Normalizer) NormalizeOrder(ctx context.Context, raw []byte) (*domain.Order, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty order response")
	}

	var resp orderResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse order: %w", err)
	}

	return n.toOrder(resp)
}

func (n *Normalizer) toOrder(resp orderResponse) (*domain.Order, error) {
	sym, err := symbol.Canonicalise(resp.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalise product id %q: %w", resp.ProductID, err)
	}

	side, err := normalizer.ParseOrderSide(resp.Side)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", resp.ID, err)
	}

	createdAt, err := normalizer.ParseTimestamp(resp.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("order %s: invalid created_at: %w", resp.ID, err)
	}
	updatedAt := normalizer.ParseTimestampOrNow(resp.UpdatedAt)

	return &domain.Order{
		Venue:          n.VenueID,
		Symbol:         sym,
		Side:           side,
		Type:           mapOrderType(resp.Type),
		TimeInForce:    mapTimeInForce(resp.TimeInForce),
		Quantity:       decimal.NewFromFloat(resp.BaseQuantity),
		LimitPrice:     decimal.NewFromFloat(resp.LimitPrice),
		PostOnly:       resp.PostOnly,
		VenueOrderID:   resp.ID,
		Status:         mapOrderStatus(resp.Status),
		FilledQuantity: decimal.NewFromFloat(resp.TotalFilled),
		AvgFillPrice:   decimal.NewFromFloat(resp.FilledVWAP),
		ObservedFee:    decimal.NewFromFloat(resp.Fee),
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

// NormalizeOrders converts the venue's open-orders response, a bare JSON
// array of order objects, to a slice of domain.Order. An order that fails to
// normalize is skipped rather than failing the whole list.
func (n *Normalizer) NormalizeOrders(ctx context.Context, raw []byte) ([]*domain.Order, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty open orders response")
	}

	var resps []orderResponse
	if err := json.Unmarshal(raw, &resps); err != nil {
		return nil, fmt.Errorf("failed to parse open orders: %w", err)
	}

	orders := make([]*domain.Order, 0, len(resps))
	for _, resp := range resps {
		order, err := n.toOrder(resp)
		if err != nil {
			continue
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// mapOrderType maps the venue's order types to the domain's, folding
// algorithmic execution strategies (TWAP, VWAP, BLOCK, RFQ) into limit since
// they all ultimately rest as limit orders from the book's perspective.
func mapOrderType(t string) domain.OrderType {
	switch t {
	case "MARKET":
		return domain.OrderTypeMarket
	case "LIMIT", "TWAP", "VWAP", "BLOCK", "RFQ", "STOP_LIMIT":
		return domain.OrderTypeLimit
	default:
		return domain.OrderTypeLimit
	}
}

func mapOrderStatus(s string) domain.OrderStatus {
	switch s {
	case "OPEN", "WORKING", "PENDING":
		return domain.OrderStatusOpen
	case "FILLED":
		return domain.OrderStatusFilled
	case "CANCELLED":
		return domain.OrderStatusCancelled
	case "EXPIRED", "REJECTED":
		return domain.OrderStatusRejected
	default:
		return domain.OrderStatusUnknown
	}
}

func mapTimeInForce(t string) domain.TimeInForce {
	switch t {
	case "GOOD_UNTIL_DATE_TIME":
		return domain.TimeInForceGTD
	case "GOOD_UNTIL_CANCELLED":
		return domain.TimeInForceGTC
	case "IMMEDIATE_OR_CANCEL":
		return domain.TimeInForceIOC
	case "FILL_OR_KILL":
		return domain.TimeInForceFOK
	default:
		return domain.TimeInForceGTC
	}
}
