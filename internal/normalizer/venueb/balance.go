package venueb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/arbiq/enginecore/internal/domain"
	"github.com/arbiq/enginecore/internal/normalizer"
)

// balanceResponse mirrors an institutional venue's portfolio balance entry.
// The venue reports a gross amount plus holds rather than a pre-split
// available figure, so available is computed as amount minus holds.
type balanceResponse struct {
	Symbol    string  `json:"symbol"`
	Amount    float64 `json:"amount"`
	Holds     float64 `json:"holds"`
	UpdatedAt string  `json:"updated_at"`
}

type balancesResponse struct {
	Balances []balanceResponse `json:"balances"`
}

// NormalizeBalance converts a portfolio balance JSON response to a
// domain.Balance, accepting either a single balance object or a list (in
// which case the first entry is used).
func (n *Normalizer) NormalizeBalance(ctx context.Context, raw []byte) (*domain.Balance, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty balance response")
	}

	var list balancesResponse
	if err := json.Unmarshal(raw, &list); err == nil && len(list.Balances) > 0 {
		return normalizeBalance(list.Balances[0]), nil
	}

	var single balanceResponse
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}
	return normalizeBalance(single), nil
}

func normalizeBalance(b balanceResponse) *domain.Balance {
	amount := decimal.NewFromFloat(b.Amount)
	holds := decimal.NewFromFloat(b.Holds)
	return &domain.Balance{
		Currency:  b.Symbol,
		Available: amount.Sub(holds),
		Locked:    holds,
		AsOf:      normalizer.ParseTimestampOrNow(b.UpdatedAt),
	}
}
