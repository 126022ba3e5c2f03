package stream_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiq/enginecore/internal/domain"
	"github.com/arbiq/enginecore/internal/stream"
	"github.com/arbiq/enginecore/internal/symbol"
	"github.com/arbiq/enginecore/internal/venue/mock"
)

var assertErr = errors.New("fetch failed")

func bookFixture(sym domain.Symbol) *domain.OrderBook {
	return &domain.OrderBook{
		Venue:     "venuea",
		Symbol:    sym,
		Timestamp: time.Now(),
		Bids:      []domain.PriceLevel{{Price: decimal.RequireFromString("100"), Quantity: decimal.RequireFromString("1")}},
		Asks:      []domain.PriceLevel{{Price: decimal.RequireFromString("101"), Quantity: decimal.RequireFromString("1")}},
	}
}

func TestStream_DeliversSnapshotsToSubscribers(t *testing.T) {
	sym, err := symbol.Canonicalise("BTC-USD")
	require.NoError(t, err)

	a := &mock.Adapter{VenueName: "venuea"}
	a.OnFetchOrderBook = func(ctx context.Context, s domain.Symbol, depth int) (*domain.OrderBook, error) {
		return bookFixture(s), nil
	}

	var received int32
	s := stream.New(stream.Config{
		Pairs:               []stream.Pair{{VenueName: "venuea", Adapter: a, Symbol: sym}},
		RefreshInterval:      20 * time.Millisecond,
		MaxAge:               time.Second,
		PerVenueConcurrency:  1,
		MaxConsecutiveErrors: 3,
	})
	s.Subscribe(func(venueName string, snapshot *domain.OrderBook) {
		atomic.AddInt32(&received, 1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(time.Second)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&received) > 0
	}, time.Second, 10*time.Millisecond)

	book, fresh := s.Snapshot("venuea", sym)
	require.NotNil(t, book)
	assert.True(t, fresh)
}

func TestStream_StopsAfterMaxConsecutiveErrors(t *testing.T) {
	sym, err := symbol.Canonicalise("ETH-USD")
	require.NoError(t, err)

	a := &mock.Adapter{VenueName: "venueb"}
	a.OnFetchOrderBook = func(ctx context.Context, s domain.Symbol, depth int) (*domain.OrderBook, error) {
		return nil, assertErr
	}

	s := stream.New(stream.Config{
		Pairs:                []stream.Pair{{VenueName: "venueb", Adapter: a, Symbol: sym}},
		RefreshInterval:      5 * time.Millisecond,
		MaxAge:               time.Second,
		PerVenueConcurrency:  1,
		MaxConsecutiveErrors: 2,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(time.Second)

	require.Eventually(t, func() bool {
		return s.State("venueb", sym) == stream.StateStopped
	}, time.Second, 5*time.Millisecond)
}

func TestStream_SnapshotNotFreshWhenNeverFetched(t *testing.T) {
	sym, _ := symbol.Canonicalise("BTC-USD")
	s := stream.New(stream.Config{
		Pairs:               []stream.Pair{{VenueName: "venuea", Adapter: &mock.Adapter{}, Symbol: sym}},
		RefreshInterval:      time.Hour,
		MaxAge:               time.Second,
		PerVenueConcurrency:  1,
		MaxConsecutiveErrors: 3,
	})

	_, fresh := s.Snapshot("venuea", sym)
	assert.False(t, fresh)
}

func TestStream_SnapshotStaleAtExactMaxAgeBoundary(t *testing.T) {
	sym, err := symbol.Canonicalise("BTC-USD")
	require.NoError(t, err)

	a := &mock.Adapter{VenueName: "venuea"}
	a.OnFetchOrderBook = func(ctx context.Context, s domain.Symbol, depth int) (*domain.OrderBook, error) {
		return bookFixture(s), nil
	}

	const maxAge = 20 * time.Millisecond
	s := stream.New(stream.Config{
		Pairs:                []stream.Pair{{VenueName: "venuea", Adapter: a, Symbol: sym}},
		RefreshInterval:      time.Hour,
		MaxAge:               maxAge,
		PerVenueConcurrency:  1,
		MaxConsecutiveErrors: 3,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(time.Second)

	require.Eventually(t, func() bool {
		_, fresh := s.Snapshot("venuea", sym)
		return fresh
	}, time.Second, 5*time.Millisecond)

	// A single fetch with no refresh ages monotonically; once the snapshot is
	// at least maxAge old it must never be reported fresh again.
	time.Sleep(maxAge)
	_, fresh := s.Snapshot("venuea", sym)
	assert.False(t, fresh, "snapshot exactly MaxAge old must be treated as stale")
}
