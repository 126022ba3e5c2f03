// Package detector scans recent order book snapshots across venues for
// profitable cross-venue arbitrage opportunities.
package detector

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbiq/enginecore/internal/domain"
	"github.com/arbiq/enginecore/internal/symbol"
)

// VenueQuote is one venue's current order book plus the fee schedule to apply
// when pricing an opportunity against it.
type VenueQuote struct {
	VenueName string
	Book      *domain.OrderBook
	TakerFee  decimal.Decimal
	MakerFee  decimal.Decimal
}

// higherFee returns the pessimistic (higher) of the two fee rates, per the
// detection-time fee assumption: the executor may later apply the actual fee
// based on the order type it selects.
func (q VenueQuote) higherFee() decimal.Decimal {
	if q.TakerFee.GreaterThan(q.MakerFee) {
		return q.TakerFee
	}
	return q.MakerFee
}

// Opportunity is a derived, ephemeral cross-venue arbitrage candidate.
type Opportunity struct {
	Symbol          domain.Symbol
	BuyVenue        string
	SellVenue       string
	Quantity        decimal.Decimal
	BuyPrice        decimal.Decimal
	SellPrice       decimal.Decimal
	GrossSpread     decimal.Decimal
	BuyFee          decimal.Decimal
	SellFee         decimal.Decimal
	NetProfitQuote  decimal.Decimal
	NetProfitRef    decimal.Decimal
	Unconverted     bool
	CombinedLatency time.Duration
}

// Config bounds which opportunities the detector reports.
type Config struct {
	MinSpreadPercent   decimal.Decimal
	MinProfitReference decimal.Decimal
	MaxPositionSize    decimal.Decimal
	MinOrderSize       decimal.Decimal
	// ReferenceRates maps a quote currency code to its rate against the
	// reference currency (e.g. "USDT" -> 1.0, "EUR" -> 1.08). A missing entry
	// leaves the opportunity unconverted rather than dropping it.
	ReferenceRates map[string]decimal.Decimal
}

// Detector enumerates arbitrage opportunities across a set of venue quotes.
type Detector struct {
	cfg Config
}

// New constructs a Detector from cfg.
func New(cfg Config) *Detector {
	if cfg.ReferenceRates == nil {
		cfg.ReferenceRates = map[string]decimal.Decimal{}
	}
	return &Detector{cfg: cfg}
}

// Detect enumerates opportunities across every ordered pair of distinct
// venues in quotes whose symbols are arbitrage-compatible, ranked by net
// profit descending, ties broken by lower combined latency then
// lexicographic (buy venue, sell venue).
func (d *Detector) Detect(now time.Time, quotes []VenueQuote) []Opportunity {
	var opportunities []Opportunity

	for _, buy := range quotes {
		for _, sell := range quotes {
			if buy.VenueName == sell.VenueName {
				continue
			}
			if buy.Book == nil || sell.Book == nil {
				continue
			}
			if !symbol.Compatible(buy.Book.Symbol, sell.Book.Symbol) {
				continue
			}
			if opp, ok := d.evaluate(now, buy, sell); ok {
				opportunities = append(opportunities, opp)
			}
		}
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		a, b := opportunities[i], opportunities[j]
		if !a.NetProfitRef.Equal(b.NetProfitRef) {
			return a.NetProfitRef.GreaterThan(b.NetProfitRef)
		}
		if a.CombinedLatency != b.CombinedLatency {
			return a.CombinedLatency < b.CombinedLatency
		}
		if a.BuyVenue != b.BuyVenue {
			return a.BuyVenue < b.BuyVenue
		}
		return a.SellVenue < b.SellVenue
	})

	return opportunities
}

func (d *Detector) evaluate(now time.Time, buy, sell VenueQuote) (Opportunity, bool) {
	bestAsk, ok := buy.Book.BestAsk()
	if !ok {
		return Opportunity{}, false
	}
	bestBid, ok := sell.Book.BestBid()
	if !ok {
		return Opportunity{}, false
	}

	a := bestAsk.Price
	b := bestBid.Price
	if a.GreaterThanOrEqual(b) {
		return Opportunity{}, false
	}

	quantity := decimal.Min(bestAsk.Quantity, bestBid.Quantity)
	if !d.cfg.MaxPositionSize.IsZero() {
		quantity = decimal.Min(quantity, d.cfg.MaxPositionSize)
	}
	if !d.cfg.MinOrderSize.IsZero() && quantity.LessThan(d.cfg.MinOrderSize) {
		return Opportunity{}, false
	}

	grossSpread := b.Sub(a).Div(a)
	if grossSpread.LessThan(d.cfg.MinSpreadPercent) {
		return Opportunity{}, false
	}

	buyFee := buy.higherFee()
	sellFee := sell.higherFee()

	one := decimal.NewFromInt(1)
	netProfitQuote := quantity.Mul(b.Mul(one.Sub(sellFee)).Sub(a.Mul(one.Add(buyFee))))

	netProfitRef := netProfitQuote
	unconverted := false
	if rate, ok := d.cfg.ReferenceRates[buy.Book.Symbol.Quote]; ok {
		netProfitRef = netProfitQuote.Mul(rate)
	} else {
		unconverted = true
	}

	if netProfitRef.LessThanOrEqual(d.cfg.MinProfitReference) {
		return Opportunity{}, false
	}

	combinedLatency := now.Sub(buy.Book.Timestamp) + now.Sub(sell.Book.Timestamp)

	return Opportunity{
		Symbol:          buy.Book.Symbol,
		BuyVenue:        buy.VenueName,
		SellVenue:       sell.VenueName,
		Quantity:        quantity,
		BuyPrice:        a,
		SellPrice:       b,
		GrossSpread:     grossSpread,
		BuyFee:          buyFee,
		SellFee:         sellFee,
		NetProfitQuote:  netProfitQuote,
		NetProfitRef:    netProfitRef,
		Unconverted:     unconverted,
		CombinedLatency: combinedLatency,
	}, true
}
