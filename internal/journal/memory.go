package journal

import (
	"context"
	"sort"
	"sync"

	"github.com/arbiq/enginecore/internal/domain"
)

// MemoryRepository is an in-process Repository, used in tests and in any
// dry-run caller that wants to assert on what would have been journaled.
type MemoryRepository struct {
	mu       sync.Mutex
	orders   []*domain.Order
	trades   []*domain.Trade
	features []FeatureSnapshot
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) RecordOrder(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *order
	m.orders = append(m.orders, &cp)
	return nil
}

func (m *MemoryRepository) RecordTrade(_ context.Context, trade *domain.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *trade
	m.trades = append(m.trades, &cp)
	return nil
}

func (m *MemoryRepository) RecordFeatures(_ context.Context, snapshot FeatureSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.features = append(m.features, snapshot)
	return nil
}

// Orders returns a snapshot of every order recorded so far.
func (m *MemoryRepository) Orders() []*domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Order, len(m.orders))
	copy(out, m.orders)
	return out
}

// Trades returns a snapshot of every trade recorded so far.
func (m *MemoryRepository) Trades() []*domain.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Trade, len(m.trades))
	copy(out, m.trades)
	return out
}

// Features returns a snapshot of every advisor feature record so far.
func (m *MemoryRepository) Features() []FeatureSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FeatureSnapshot, len(m.features))
	copy(out, m.features)
	return out
}

// ListTrades implements QueryRepository against the in-memory store, mainly
// so operator-tooling code can be exercised against a Repository without a
// database in tests.
func (m *MemoryRepository) ListTrades(_ context.Context, filter TradeFilter) ([]*domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	symbols := make(map[string]bool, len(filter.Symbols))
	for _, s := range filter.Symbols {
		symbols[s] = true
	}

	matched := make([]*domain.Trade, 0, len(m.trades))
	for _, t := range m.trades {
		if len(symbols) > 0 && !symbols[t.Symbol.String()] {
			continue
		}
		if filter.Venue != "" && t.BuyVenue != filter.Venue && t.SellVenue != filter.Venue {
			continue
		}
		if filter.Outcome != "" && t.Outcome != filter.Outcome {
			continue
		}
		if !filter.Range.IsZero() && !filter.Range.Contains(t.ExecutedAt) {
			continue
		}
		cp := *t
		matched = append(matched, &cp)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ExecutedAt.After(matched[j].ExecutedAt) })

	if filter.Pagination.HasOffset() {
		if filter.Pagination.Offset >= len(matched) {
			return []*domain.Trade{}, nil
		}
		matched = matched[filter.Pagination.Offset:]
	}
	if filter.Pagination.HasLimit() && filter.Pagination.Limit < len(matched) {
		matched = matched[:filter.Pagination.Limit]
	}

	return matched, nil
}
