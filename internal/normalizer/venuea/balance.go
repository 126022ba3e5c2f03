package venuea

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arbiq/enginecore/internal/domain"
	"github.com/arbiq/enginecore/internal/normalizer"
)

type accountBalance struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type accountResponse struct {
	Currency         string         `json:"currency"`
	AvailableBalance accountBalance `json:"available_balance"`
	Hold             accountBalance `json:"hold"`
	UpdatedAt        string         `json:"updated_at"`
}

type accountsResponse struct {
	Accounts []accountResponse `json:"accounts"`
}

// NormalizeBalance converts an account JSON response to a domain.Balance. The
// venue returns balance per currency either as a single account object or as
// an accounts list; a caller fetching "get_balance(currency)" passes the
// single-account shape, "get_balances()" passes the list and this returns the
// first entry.
func (n *Normalizer) NormalizeBalance(ctx context.Context, raw []byte) (*domain.Balance, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty balance response")
	}

	var list accountsResponse
	if err := json.Unmarshal(raw, &list); err == nil && len(list.Accounts) > 0 {
		return normalizeAccount(list.Accounts[0])
	}

	var account accountResponse
	if err := json.Unmarshal(raw, &account); err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}
	return normalizeAccount(account)
}

func normalizeAccount(account accountResponse) (*domain.Balance, error) {
	asOf := normalizer.ParseTimestampOrNow(account.UpdatedAt)
	return &domain.Balance{
		Currency:  account.Currency,
		Available: normalizer.ParseDecimalOrZero(account.AvailableBalance.Value),
		Locked:    normalizer.ParseDecimalOrZero(account.Hold.Value),
		AsOf:      asOf,
	}, nil
}
