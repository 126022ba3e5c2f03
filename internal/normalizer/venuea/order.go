package venuea

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/arbiq/enginecore/internal/domain"
	"github.com/arbiq/enginecore/internal/normalizer"
	"github.com/arbiq/enginecore/internal/symbol"
)

// orderResponse mirrors the venue's order JSON shape: a flat object with a
// nested order_configuration whose populated sub-field depends on order type.
type orderResponse struct {
	OrderID            string             `json:"order_id"`
	ProductID          string             `json:"product_id"`
	OrderConfiguration orderConfiguration `json:"order_configuration"`
	Side               string             `json:"side"`
	Status             string             `json:"status"`
	TimeInForce        string             `json:"time_in_force"`
	CreatedTime        string             `json:"created_time"`
	LastFillTime       string             `json:"last_fill_time"`
	FilledSize         string             `json:"filled_size"`
	AverageFilledPrice string             `json:"average_filled_price"`
	TotalFees          string             `json:"total_fees"`
	OrderType          string             `json:"order_type"`
}

type orderConfiguration struct {
	MarketIOC *marketIOC `json:"market_market_ioc"`
	LimitGTC  *limitGTC  `json:"limit_limit_gtc"`
	LimitGTD  *limitGTD  `json:"limit_limit_gtd"`
	LimitFOK  *limitFOK  `json:"limit_limit_fok"`
}

type marketIOC struct {
	BaseSize string `json:"base_size"`
}

type limitGTC struct {
	BaseSize   string `json:"base_size"`
	LimitPrice string `json:"limit_price"`
	PostOnly   bool   `json:"post_only"`
}

type limitGTD struct {
	BaseSize   string `json:"base_size"`
	LimitPrice string `json:"limit_price"`
	PostOnly   bool   `json:"post_only"`
}

type limitFOK struct {
	BaseSize   string `json:"base_size"`
	LimitPrice string `json:"limit_price"`
}

// NormalizeOrder converts an order JSON response to a domain.Order.
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
		return nil, fmt.Errorf("order %s: %w", resp.OrderID, err)
	}

	createdAt, err := normalizer.ParseTimestamp(resp.CreatedTime)
	if err != nil {
		return nil, fmt.Errorf("invalid created_time: %w", err)
	}
	updatedAt := createdAt
	if resp.LastFillTime != "" {
		if t, err := normalizer.ParseTimestamp(resp.LastFillTime); err == nil {
			updatedAt = t
		}
	}

	price, quantity, postOnly := extractConfiguration(resp.OrderConfiguration)
	orderType := determineOrderType(resp.OrderConfiguration, resp.OrderType)

	order := &domain.Order{
		Venue:          n.VenueID,
		Symbol:         sym,
		Side:           side,
		Type:           orderType,
		TimeInForce:    normalizer.ParseTimeInForce(resp.TimeInForce),
		Quantity:       quantity,
		LimitPrice:     price,
		PostOnly:       postOnly,
		VenueOrderID:   resp.OrderID,
		Status:         normalizer.ParseOrderStatus(resp.Status),
		FilledQuantity: normalizer.ParseDecimalOrZero(resp.FilledSize),
		AvgFillPrice:   normalizer.ParseDecimalOrZero(resp.AverageFilledPrice),
		ObservedFee:    normalizer.ParseDecimalOrZero(resp.TotalFees),
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}

	return order, nil
}

// openOrdersResponse mirrors the venue's list-orders endpoint: a paginated
// envelope wrapping the same flat order objects NormalizeOrder parses singly.
type openOrdersResponse struct {
	Orders  []orderResponse `json:"orders"`
	HasNext bool            `json:"has_next"`
	Cursor  string          `json:"cursor"`
}

// NormalizeOrders converts a list-orders JSON response to a slice of
// domain.Order. An order whose fields fail to normalize is skipped rather
// than failing the whole list, since one malformed entry (e.g. an
// unparseable product id, side or created_time) should not hide every
// other open order from the startup-recovery scan.
func (n *Normalizer) NormalizeOrders(ctx context.Context, raw []byte) ([]*domain.Order, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty open orders response")
	}

	var resp openOrdersResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse open orders: %w", err)
	}

	orders := make([]*domain.Order, 0, len(resp.Orders))
	for _, o := range resp.Orders {
		order, err := n.toOrder(o)
		if err != nil {
			continue
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// extractConfiguration pulls price, quantity and post-only from whichever
// order_configuration sub-field the venue populated; exactly one is expected
// to be non-nil.
func extractConfiguration(cfg orderConfiguration) (price, quantity decimal.Decimal, postOnly bool) {
	switch {
	case cfg.MarketIOC != nil:
		return decimal.Zero, normalizer.ParseDecimalOrZero(cfg.MarketIOC.BaseSize), false
	case cfg.LimitGTC != nil:
		return normalizer.ParseDecimalOrZero(cfg.LimitGTC.LimitPrice), normalizer.ParseDecimalOrZero(cfg.LimitGTC.BaseSize), cfg.LimitGTC.PostOnly
	case cfg.LimitGTD != nil:
		return normalizer.ParseDecimalOrZero(cfg.LimitGTD.LimitPrice), normalizer.ParseDecimalOrZero(cfg.LimitGTD.BaseSize), cfg.LimitGTD.PostOnly
	case cfg.LimitFOK != nil:
		return normalizer.ParseDecimalOrZero(cfg.LimitFOK.LimitPrice), normalizer.ParseDecimalOrZero(cfg.LimitFOK.BaseSize), false
	default:
		return decimal.Zero, decimal.Zero, false
	}
}

func determineOrderType(cfg orderConfiguration, orderTypeStr string) domain.OrderType {
	if orderTypeStr != "" {
		return normalizer.ParseOrderType(orderTypeStr)
	}
	if cfg.MarketIOC != nil {
		return domain.OrderTypeMarket
	}
	return domain.OrderTypeLimit
}
