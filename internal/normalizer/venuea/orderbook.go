// Package venuea normalizes a REST venue whose responses follow the common
// "pricebook" shape: an order book with bids/asks as [price, size] arrays and
// accounts/orders as flat JSON objects with string-encoded decimals.
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

// priceBookResponse mirrors a REST venue's product order book endpoint.
type priceBookResponse struct {
	PriceBook priceBook `json:"pricebook"`
	Time      string    `json:"time"`
}

type priceBook struct {
	ProductID string          `json:"product_id"`
	Bids      [][]interface{} `json:"bids"` // [[price, size], ...]
	Asks      [][]interface{} `json:"asks"`
	Time      string          `json:"time"`
}

// Normalizer implements normalizer.Normalizer for the pricebook-style venue.
type Normalizer struct {
	VenueID string
}

// NewNormalizer creates a normalizer scoped to the given venue identifier.
func NewNormalizer(venueID string) *Normalizer {
	return &Normalizer{VenueID: venueID}
}

// NormalizeOrderBook converts a pricebook JSON response to a domain.OrderBook.
//
// Bids and asks are parsed, then validated against the strict ordering
// invariant: a venue occasionally returns an out-of-order or duplicate-price
// level during a rebalance, and that should surface as an error rather than
// silently corrupt downstream spread math.
func (n *Normalizer) NormalizeOrderBook(ctx context.Context, raw []byte) (*domain.OrderBook, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty orderbook response")
	}

	var resp priceBookResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse orderbook: %w", err)
	}

	timeStr := resp.Time
	if timeStr == "" {
		timeStr = resp.PriceBook.Time
	}
	timestamp := normalizer.ParseTimestampOrNow(timeStr)

	bids, err := parseLevels(resp.PriceBook.Bids)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bids: %w", err)
	}
	asks, err := parseLevels(resp.PriceBook.Asks)
	if err != nil {
		return nil, fmt.Errorf("failed to parse asks: %w", err)
	}

	sym, err := symbol.Canonicalise(resp.PriceBook.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalise product id %q: %w", resp.PriceBook.ProductID, err)
	}

	book := &domain.OrderBook{
		Venue:     n.VenueID,
		Symbol:    sym,
		Timestamp: timestamp,
		Bids:      bids,
		Asks:      asks,
	}
	if err := book.Validate(); err != nil {
		return nil, fmt.Errorf("normalized orderbook failed validation: %w", err)
	}
	return book, nil
}

// parseLevels converts [[price, size], ...] arrays to domain.PriceLevel,
// handling both string- and number-encoded values since the venue is
// inconsistent about which it returns per endpoint.
func parseLevels(levels [][]interface{}) ([]domain.PriceLevel, error) {
	result := make([]domain.PriceLevel, 0, len(levels))
	for i, level := range levels {
		if len(level) < 2 {
			return nil, fmt.Errorf("level %d: expected at least 2 elements, got %d", i, len(level))
		}

		price, err := decimalFromAny(level[0])
		if err != nil {
			return nil, fmt.Errorf("level %d price: %w", i, err)
		}
		quantity, err := decimalFromAny(level[1])
		if err != nil {
			return nil, fmt.Errorf("level %d quantity: %w", i, err)
		}

		result = append(result, domain.PriceLevel{Price: price, Quantity: quantity})
	}
	return result, nil
}

func decimalFromAny(v interface{}) (decimal.Decimal, error) {
	switch val := v.(type) {
	case string:
		return normalizer.ParseDecimal(val)
	case float64:
		return decimal.NewFromFloat(val), nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported value type %T", v)
	}
}

var _ normalizer.Normalizer = (*Normalizer)(nil)

