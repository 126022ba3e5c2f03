// Package venueb normalizes an institutional-style venue whose order and fill
// responses are flat JSON objects (rather than the nested order_configuration
// shape venuea uses) and which reports some numeric fields as JSON numbers
// instead of strings.
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

type orderBookResponse struct {
	ProductID string          `json:"product_id"`
	Bids      [][]interface{} `json:"bids"`
	Asks      [][]interface{} `json:"asks"`
	Time      string          `json:"time"`
	Sequence  int64           `json:"sequence"`
}

// Normalizer implements normalizer.Normalizer for the flat-JSON institutional
// venue shape.
type Normalizer struct {
	VenueID string
}

// NewNormalizer creates a normalizer scoped to the given venue identifier.
func NewNormalizer(venueID string) *Normalizer {
	return &Normalizer{VenueID: venueID}
}

// NormalizeOrderBook converts an order book JSON response to a domain.OrderBook.
// Empty [0, 0] levels, which this venue emits for a level that has just been
// fully consumed, are dropped rather than treated as valid zero-price entries.
func (n *Normalizer) NormalizeOrderBook(ctx context.Context, raw []byte) (*domain.OrderBook, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty orderbook response")
	}

	var resp orderBookResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse orderbook: %w", err)
	}

	timestamp := normalizer.ParseTimestampOrNow(resp.Time)

	bids, err := parseLevels(resp.Bids)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bids: %w", err)
	}
	asks, err := parseLevels(resp.Asks)
	if err != nil {
		return nil, fmt.Errorf("failed to parse asks: %w", err)
	}

	sym, err := symbol.Canonicalise(resp.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalise product id %q: %w", resp.ProductID, err)
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
		if price.IsZero() && quantity.IsZero() {
			continue
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

// NormalizeFillFunc is satisfied by Normalizer, documenting the fills-feed
// extension venueb offers beyond the common Normalizer interface.
type NormalizeFillFunc func(ctx context.Context, raw []byte) (*domain.Order, error)

var _ NormalizeFillFunc = (*Normalizer)(nil).NormalizeFill
