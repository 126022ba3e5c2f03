package risk_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiq/enginecore/internal/risk"
)

func TestVolatilityBreaker_TripsOnLargeMove(t *testing.T) {
	now := time.Now()
	b := risk.NewVolatilityBreaker(time.Minute, 10*time.Second, decimal.RequireFromString("0.05"))

	b.Observe("BTC-USDT", decimal.RequireFromString("100"), now)
	assert.True(t, b.Allow("BTC-USDT", now))

	b.Observe("BTC-USDT", decimal.RequireFromString("110"), now.Add(time.Second))
	assert.False(t, b.Allow("BTC-USDT", now.Add(time.Second)))
	assert.Equal(t, risk.StateOpen, b.State("BTC-USDT"))
}

func TestVolatilityBreaker_HalfOpenAfterCooldownAndProbe(t *testing.T) {
	now := time.Now()
	b := risk.NewVolatilityBreaker(time.Minute, 10*time.Second, decimal.RequireFromString("0.05"))

	b.Observe("BTC-USDT", decimal.RequireFromString("100"), now)
	b.Observe("BTC-USDT", decimal.RequireFromString("110"), now.Add(time.Second))
	require.False(t, b.Allow("BTC-USDT", now.Add(time.Second)))

	probeTime := now.Add(11 * time.Second)
	require.True(t, b.Allow("BTC-USDT", probeTime))
	b.Probe("BTC-USDT", decimal.RequireFromString("104"), probeTime)
	assert.Equal(t, risk.StateClosed, b.State("BTC-USDT"))
}

func TestConnectivityBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	now := time.Now()
	b := risk.NewConnectivityBreaker(3, 10*time.Second)

	b.RecordFailure("venuea", now)
	b.RecordFailure("venuea", now)
	assert.True(t, b.Allow("venuea", now))

	b.RecordFailure("venuea", now)
	assert.False(t, b.Allow("venuea", now))

	b.RecordSuccess("venuea")
	assert.Equal(t, risk.StateOpen, b.State("venuea"))
}

func TestErrorRateBreaker_TripsOnRatio(t *testing.T) {
	now := time.Now()
	b := risk.NewErrorRateBreaker(10, 4, decimal.RequireFromString("0.5"), 10*time.Second)

	for i := 0; i < 3; i++ {
		b.Record("venueb", true, now)
	}
	assert.True(t, b.Allow("venueb", now), "below min samples, should not trip")

	b.Record("venueb", true, now)
	assert.False(t, b.Allow("venueb", now))
}

func TestErrorRateBreaker_RequiresMinSamples(t *testing.T) {
	now := time.Now()
	b := risk.NewErrorRateBreaker(10, 5, decimal.RequireFromString("0.1"), 10*time.Second)

	b.Record("venueb", true, now)
	b.Record("venueb", true, now)
	assert.True(t, b.Allow("venueb", now))
}

func newGate(t *testing.T) *risk.Gate {
	t.Helper()
	conn := risk.NewConnectivityBreaker(5, time.Second)
	errRate := risk.NewErrorRateBreaker(20, 5, decimal.RequireFromString("0.5"), time.Second)
	vol := risk.NewVolatilityBreaker(time.Minute, time.Second, decimal.RequireFromString("0.5"))
	return risk.NewGate(conn, errRate, vol, risk.Limits{
		MaxPositionPerVenue: decimal.RequireFromString("10000"),
		MaxTotalPosition:    decimal.RequireFromString("20000"),
		DailyLossLimit:      decimal.RequireFromString("500"),
		PerTradeLossLimit:   decimal.RequireFromString("100"),
		MaxDrawdown:         decimal.RequireFromString("0.2"),
		BalanceSafetyMargin: decimal.RequireFromString("0.01"),
	}, nil)
}

func baseRequest() risk.TradeRequest {
	return risk.TradeRequest{
		Symbol:        "BTC-USDT",
		BuyVenue:      "venuea",
		SellVenue:     "venueb",
		ProjectedBuy:  decimal.RequireFromString("1000"),
		ProjectedSell: decimal.RequireFromString("1000"),
		WorstCaseLoss: decimal.RequireFromString("10"),
		Requirements: []risk.LegRequirement{
			{Venue: "venuea", Currency: "USDT", Amount: decimal.RequireFromString("1000")},
			{Venue: "venueb", Currency: "BTC", Amount: decimal.RequireFromString("1")},
		},
	}
}

func TestGate_RejectsWithoutObservedBalance(t *testing.T) {
	g := newGate(t)
	err := g.Check(time.Now(), baseRequest())
	require.Error(t, err)
	var rejected *risk.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, risk.ReasonBalance, rejected.Reason)
}

func TestGate_PassesWhenAllChecksSatisfied(t *testing.T) {
	g := newGate(t)
	g.CacheBalance("venuea", "USDT", decimal.RequireFromString("5000"))
	g.CacheBalance("venueb", "BTC", decimal.RequireFromString("10"))

	assert.NoError(t, g.Check(time.Now(), baseRequest()))
}

func TestGate_RejectsOnConnectivityBreakerOpen(t *testing.T) {
	conn := risk.NewConnectivityBreaker(1, time.Hour)
	errRate := risk.NewErrorRateBreaker(20, 5, decimal.RequireFromString("0.5"), time.Second)
	vol := risk.NewVolatilityBreaker(time.Minute, time.Second, decimal.RequireFromString("0.5"))
	g := risk.NewGate(conn, errRate, vol, risk.Limits{}, nil)
	g.CacheBalance("venuea", "USDT", decimal.RequireFromString("5000"))
	g.CacheBalance("venueb", "BTC", decimal.RequireFromString("10"))

	now := time.Now()
	conn.RecordFailure("venuea", now)

	err := g.Check(now, baseRequest())
	require.Error(t, err)
	var rejected *risk.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, risk.ReasonConnectivity, rejected.Reason)
}

func TestGate_RejectsOnDailyLossLimit(t *testing.T) {
	g := newGate(t)
	g.CacheBalance("venuea", "USDT", decimal.RequireFromString("5000"))
	g.CacheBalance("venueb", "BTC", decimal.RequireFromString("10"))
	g.RecordRealisedPnL(decimal.RequireFromString("-495"))

	err := g.Check(time.Now(), baseRequest())
	require.Error(t, err)
	var rejected *risk.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, risk.ReasonDailyLossLimit, rejected.Reason)
}

func TestGate_RejectsOnDrawdown(t *testing.T) {
	g := newGate(t)
	g.CacheBalance("venuea", "USDT", decimal.RequireFromString("5000"))
	g.CacheBalance("venueb", "BTC", decimal.RequireFromString("10"))

	g.RecordRealisedPnL(decimal.RequireFromString("1000"))
	g.RecordRealisedPnL(decimal.RequireFromString("-300"))

	err := g.Check(time.Now(), baseRequest())
	require.Error(t, err)
	var rejected *risk.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, risk.ReasonDrawdown, rejected.Reason)
}

func TestGate_ResetDailyClearsLossCounter(t *testing.T) {
	g := newGate(t)
	g.CacheBalance("venuea", "USDT", decimal.RequireFromString("5000"))
	g.CacheBalance("venueb", "BTC", decimal.RequireFromString("10"))
	g.RecordRealisedPnL(decimal.RequireFromString("-495"))
	g.ResetDaily()

	assert.NoError(t, g.Check(time.Now(), baseRequest()))
}
