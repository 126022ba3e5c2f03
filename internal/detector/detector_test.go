package detector_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiq/enginecore/internal/detector"
	"github.com/arbiq/enginecore/internal/domain"
	"github.com/arbiq/enginecore/internal/symbol"
)

func mustSymbol(t *testing.T, s string) domain.Symbol {
	t.Helper()
	sym, err := symbol.Canonicalise(s)
	require.NoError(t, err)
	return sym
}

func bookWithAsk(venueName string, sym domain.Symbol, price, qty string, ts time.Time) *domain.OrderBook {
	return &domain.OrderBook{
		Venue:     venueName,
		Symbol:    sym,
		Timestamp: ts,
		Asks:      []domain.PriceLevel{{Price: decimal.RequireFromString(price), Quantity: decimal.RequireFromString(qty)}},
		Bids:      []domain.PriceLevel{{Price: decimal.RequireFromString("1"), Quantity: decimal.RequireFromString("1")}},
	}
}

func bookWithBid(venueName string, sym domain.Symbol, price, qty string, ts time.Time) *domain.OrderBook {
	return &domain.OrderBook{
		Venue:     venueName,
		Symbol:    sym,
		Timestamp: ts,
		Bids:      []domain.PriceLevel{{Price: decimal.RequireFromString(price), Quantity: decimal.RequireFromString(qty)}},
		Asks:      []domain.PriceLevel{{Price: decimal.RequireFromString("1000000"), Quantity: decimal.RequireFromString("1")}},
	}
}

// TestDetect_TwoVenueDetection is the canonical worked example: two venues,
// one profitable spread, no credentials required to detect it.
func TestDetect_TwoVenueDetection(t *testing.T) {
	sym := mustSymbol(t, "BTC-USDT")
	now := time.Now()

	quotes := []detector.VenueQuote{
		{
			VenueName: "A",
			Book:      bookWithAsk("A", sym, "65000", "1.0", now),
			TakerFee:  decimal.RequireFromString("0.001"),
			MakerFee:  decimal.RequireFromString("0.001"),
		},
		{
			VenueName: "B",
			Book:      bookWithBid("B", sym, "65300", "1.0", now),
			TakerFee:  decimal.RequireFromString("0.001"),
			MakerFee:  decimal.RequireFromString("0.001"),
		},
	}

	d := detector.New(detector.Config{
		MinSpreadPercent:   decimal.RequireFromString("0.003"),
		MinProfitReference: decimal.Zero,
		ReferenceRates:     map[string]decimal.Decimal{"USDT": decimal.NewFromInt(1)},
	})

	opps := d.Detect(now, quotes)
	require.Len(t, opps, 1)

	opp := opps[0]
	assert.Equal(t, "A", opp.BuyVenue)
	assert.Equal(t, "B", opp.SellVenue)
	assert.True(t, opp.Quantity.Equal(decimal.RequireFromString("1.0")))

	expectedSpread := decimal.RequireFromString("0.0046153846153846154")
	assert.True(t, opp.GrossSpread.Sub(expectedSpread).Abs().LessThan(decimal.RequireFromString("0.0001")),
		"gross spread %s not close to expected %s", opp.GrossSpread, expectedSpread)

	expectedProfit := decimal.RequireFromString("169.7")
	assert.True(t, opp.NetProfitRef.Sub(expectedProfit).Abs().LessThan(decimal.RequireFromString("0.1")),
		"net profit %s not close to expected %s", opp.NetProfitRef, expectedProfit)
	assert.False(t, opp.Unconverted)
}

func TestDetect_RejectsBelowMinSpread(t *testing.T) {
	sym := mustSymbol(t, "BTC-USDT")
	now := time.Now()

	quotes := []detector.VenueQuote{
		{VenueName: "A", Book: bookWithAsk("A", sym, "65000", "1.0", now), TakerFee: decimal.Zero, MakerFee: decimal.Zero},
		{VenueName: "B", Book: bookWithBid("B", sym, "65010", "1.0", now), TakerFee: decimal.Zero, MakerFee: decimal.Zero},
	}

	d := detector.New(detector.Config{
		MinSpreadPercent:   decimal.RequireFromString("0.01"),
		MinProfitReference: decimal.Zero,
	})

	assert.Empty(t, d.Detect(now, quotes))
}

func TestDetect_RejectsNonCrossedBook(t *testing.T) {
	sym := mustSymbol(t, "BTC-USDT")
	now := time.Now()

	quotes := []detector.VenueQuote{
		{VenueName: "A", Book: bookWithAsk("A", sym, "65300", "1.0", now), TakerFee: decimal.Zero, MakerFee: decimal.Zero},
		{VenueName: "B", Book: bookWithBid("B", sym, "65000", "1.0", now), TakerFee: decimal.Zero, MakerFee: decimal.Zero},
	}

	d := detector.New(detector.Config{MinSpreadPercent: decimal.Zero})
	assert.Empty(t, d.Detect(now, quotes))
}

func TestDetect_IncompatibleQuoteFamilyExcluded(t *testing.T) {
	now := time.Now()
	symIRT := mustSymbol(t, "BTC-IRT")
	symUSDT := mustSymbol(t, "BTC-USDT")

	quotes := []detector.VenueQuote{
		{VenueName: "A", Book: bookWithAsk("A", symIRT, "65000", "1.0", now), TakerFee: decimal.Zero, MakerFee: decimal.Zero},
		{VenueName: "B", Book: bookWithBid("B", symUSDT, "65300", "1.0", now), TakerFee: decimal.Zero, MakerFee: decimal.Zero},
	}

	d := detector.New(detector.Config{MinSpreadPercent: decimal.Zero})
	assert.Empty(t, d.Detect(now, quotes))
}

func TestDetect_CompatibleQuoteFamilyIncluded(t *testing.T) {
	now := time.Now()
	symIRT := mustSymbol(t, "BTC-IRT")
	symTMN := mustSymbol(t, "BTC-TMN")

	quotes := []detector.VenueQuote{
		{VenueName: "A", Book: bookWithAsk("A", symIRT, "65000", "1.0", now), TakerFee: decimal.Zero, MakerFee: decimal.Zero},
		{VenueName: "B", Book: bookWithBid("B", symTMN, "70000", "1.0", now), TakerFee: decimal.Zero, MakerFee: decimal.Zero},
	}

	d := detector.New(detector.Config{MinSpreadPercent: decimal.Zero})
	assert.NotEmpty(t, d.Detect(now, quotes))
}

func TestDetect_RejectsBelowMinOrderSize(t *testing.T) {
	sym := mustSymbol(t, "BTC-USDT")
	now := time.Now()

	quotes := []detector.VenueQuote{
		{VenueName: "A", Book: bookWithAsk("A", sym, "65000", "0.0001", now), TakerFee: decimal.Zero, MakerFee: decimal.Zero},
		{VenueName: "B", Book: bookWithBid("B", sym, "65300", "1.0", now), TakerFee: decimal.Zero, MakerFee: decimal.Zero},
	}

	d := detector.New(detector.Config{
		MinSpreadPercent: decimal.Zero,
		MinOrderSize:     decimal.RequireFromString("0.001"),
	})
	assert.Empty(t, d.Detect(now, quotes))
}

func TestDetect_UnconvertedWhenRateMissing(t *testing.T) {
	sym := mustSymbol(t, "BTC-EUR")
	now := time.Now()

	quotes := []detector.VenueQuote{
		{VenueName: "A", Book: bookWithAsk("A", sym, "65000", "1.0", now), TakerFee: decimal.Zero, MakerFee: decimal.Zero},
		{VenueName: "B", Book: bookWithBid("B", sym, "65300", "1.0", now), TakerFee: decimal.Zero, MakerFee: decimal.Zero},
	}

	d := detector.New(detector.Config{MinSpreadPercent: decimal.Zero})
	opps := d.Detect(now, quotes)
	require.Len(t, opps, 1)
	assert.True(t, opps[0].Unconverted)
	assert.True(t, opps[0].NetProfitRef.Equal(opps[0].NetProfitQuote))
}

func TestDetect_RanksByNetProfitDescending(t *testing.T) {
	now := time.Now()
	symBTC := mustSymbol(t, "BTC-USDT")
	symETH := mustSymbol(t, "ETH-USDT")

	quotes := []detector.VenueQuote{
		{VenueName: "A", Book: bookWithAsk("A", symBTC, "65000", "1.0", now), TakerFee: decimal.Zero, MakerFee: decimal.Zero},
		{VenueName: "B", Book: bookWithBid("B", symBTC, "65300", "1.0", now), TakerFee: decimal.Zero, MakerFee: decimal.Zero},
		{VenueName: "C", Book: bookWithAsk("C", symETH, "3000", "1.0", now), TakerFee: decimal.Zero, MakerFee: decimal.Zero},
		{VenueName: "D", Book: bookWithBid("D", symETH, "3010", "1.0", now), TakerFee: decimal.Zero, MakerFee: decimal.Zero},
	}

	d := detector.New(detector.Config{MinSpreadPercent: decimal.Zero})
	opps := d.Detect(now, quotes)
	require.Len(t, opps, 2)
	assert.True(t, opps[0].NetProfitRef.GreaterThan(opps[1].NetProfitRef))
	assert.Equal(t, "A", opps[0].BuyVenue)
}
