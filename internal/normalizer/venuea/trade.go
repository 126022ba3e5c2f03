package venuea

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arbiq/enginecore/internal/domain"
	"github.com/arbiq/enginecore/internal/normalizer"
	"github.com/arbiq/enginecore/internal/symbol"
)

type tradeResponse struct {
	TradeID   string `json:"trade_id"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Time      string `json:"time"`
	Side      string `json:"side"`
}

type tradesResponse struct {
	Trades []tradeResponse `json:"trades"`
}

// NormalizeTrade converts the most recent trade from a trades JSON response
// to a domain.Trade.
func (n *Normalizer) NormalizeTrade(ctx context.Context, raw []byte) (*domain.Trade, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty trade response")
	}

	var list tradesResponse
	if err := json.Unmarshal(raw, &list); err == nil && len(list.Trades) > 0 {
		return n.normalizeSingleTrade(list.Trades[0])
	}

	var single tradeResponse
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("failed to parse trade: %w", err)
	}
	return n.normalizeSingleTrade(single)
}

func (n *Normalizer) normalizeSingleTrade(t tradeResponse) (*domain.Trade, error) {
	sym, err := symbol.Canonicalise(t.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalise product id %q: %w", t.ProductID, err)
	}

	timestamp, err := normalizer.ParseTimestamp(t.Time)
	if err != nil {
		return nil, fmt.Errorf("invalid trade time: %w", err)
	}

	side, err := normalizer.ParseOrderSide(t.Side)
	if err != nil {
		return nil, fmt.Errorf("trade %s: %w", t.TradeID, err)
	}

	return &domain.Trade{
		Venue:     n.VenueID,
		Symbol:    sym,
		Price:     normalizer.ParseDecimalOrZero(t.Price),
		Quantity:  normalizer.ParseDecimalOrZero(t.Size),
		Side:      side,
		Timestamp: timestamp,
	}, nil
}
