// Package risk implements the three independent circuit breakers and the
// composite pre-trade gate that protect order execution from volatile
// markets, unreachable venues and degraded venue APIs.
package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RejectReason identifies which of the eight pre-trade checks failed.
type RejectReason string

const (
	ReasonConnectivity     RejectReason = "connectivity_breaker"
	ReasonVolatility       RejectReason = "volatility_breaker"
	ReasonPositionPerVenue RejectReason = "max_position_per_venue"
	ReasonTotalPosition    RejectReason = "max_total_position"
	ReasonDailyLossLimit   RejectReason = "daily_loss_limit"
	ReasonPerTradeLoss     RejectReason = "per_trade_loss_limit"
	ReasonDrawdown         RejectReason = "max_drawdown"
	ReasonBalance          RejectReason = "insufficient_or_unknown_balance"
)

// RejectedError is returned by Gate.Check when a pre-trade check fails.
type RejectedError struct {
	Reason RejectReason
	Detail string
}

func (e *RejectedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("risk gate rejected: %s", e.Reason)
	}
	return fmt.Sprintf("risk gate rejected: %s: %s", e.Reason, e.Detail)
}

// Limits bounds the composite gate's position, loss and drawdown checks.
type Limits struct {
	MaxPositionPerVenue decimal.Decimal
	MaxTotalPosition    decimal.Decimal
	DailyLossLimit      decimal.Decimal
	PerTradeLossLimit   decimal.Decimal
	MaxDrawdown         decimal.Decimal
	// BalanceSafetyMargin is added to the required balance before comparing
	// against the cached balance, e.g. 0.01 requires 1% headroom.
	BalanceSafetyMargin decimal.Decimal
}

// LegRequirement is the balance a single leg of a trade needs on its venue.
type LegRequirement struct {
	Venue    string
	Currency string
	Amount   decimal.Decimal
}

// TradeRequest is the input to the composite pre-trade gate.
type TradeRequest struct {
	Symbol        string
	BuyVenue      string
	SellVenue     string
	ProjectedBuy  decimal.Decimal // projected position delta on BuyVenue, quote notional
	ProjectedSell decimal.Decimal // projected position delta on SellVenue, quote notional
	WorstCaseLoss decimal.Decimal // per-trade loss bound under the worst slippage assumption
	Requirements  []LegRequirement
}

type balanceKey struct {
	venue    string
	currency string
}

// Gate evaluates the eight serial pre-trade checks from the risk
// specification before the executor is allowed to place any order.
type Gate struct {
	connectivity *ConnectivityBreaker
	errorRate    *ErrorRateBreaker
	volatility   *VolatilityBreaker
	limits       Limits
	log          *zap.Logger

	mu                sync.Mutex
	positionPerVenue  map[string]decimal.Decimal
	totalPosition     decimal.Decimal
	dailyRealisedLoss decimal.Decimal
	equityPeak        decimal.Decimal
	equityCurrent     decimal.Decimal
	balances          map[balanceKey]decimal.Decimal
	balanceObserved   map[balanceKey]bool
}

// NewGate constructs a Gate wired to the three breakers and the configured
// limits.
func NewGate(connectivity *ConnectivityBreaker, errorRate *ErrorRateBreaker, volatility *VolatilityBreaker, limits Limits, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{
		connectivity:     connectivity,
		errorRate:        errorRate,
		volatility:       volatility,
		limits:           limits,
		log:              log,
		positionPerVenue: make(map[string]decimal.Decimal),
		balances:         make(map[balanceKey]decimal.Decimal),
		balanceObserved:  make(map[balanceKey]bool),
	}
}

// CacheBalance records the last known balance for (venue, currency), used by
// check 8 as a fallback when the live balance endpoint is unavailable.
func (g *Gate) CacheBalance(venue, currency string, amount decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	k := balanceKey{venue, currency}
	g.balances[k] = amount
	g.balanceObserved[k] = true
}

// RecordFill adjusts the tracked position exposure on venue by delta
// (positive for a net long increase).
func (g *Gate) RecordFill(venue string, delta decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.positionPerVenue[venue] = g.positionPerVenue[venue].Add(delta)
	g.totalPosition = g.totalPosition.Add(delta)
}

// RecordRealisedPnL updates the day's realised loss counter and the
// drawdown high-water mark. pnl should be negative for a loss, positive for
// a gain.
func (g *Gate) RecordRealisedPnL(pnl decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if pnl.IsNegative() {
		g.dailyRealisedLoss = g.dailyRealisedLoss.Add(pnl.Abs())
	}
	g.equityCurrent = g.equityCurrent.Add(pnl)
	if g.equityCurrent.GreaterThan(g.equityPeak) {
		g.equityPeak = g.equityCurrent
	}
}

// ResetDaily clears the day's realised loss counter. Called once per trading
// day by the process wiring the gate, never by the detector or executor.
func (g *Gate) ResetDaily() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dailyRealisedLoss = decimal.Zero
}

func (g *Gate) drawdownFraction() decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.equityPeak.IsZero() || g.equityPeak.IsNegative() {
		return decimal.Zero
	}
	drop := g.equityPeak.Sub(g.equityCurrent)
	if drop.Sign() <= 0 {
		return decimal.Zero
	}
	return drop.Div(g.equityPeak)
}

// Check runs the eight pre-trade checks serially and returns the first
// failure as a *RejectedError, or nil if the trade may proceed.
func (g *Gate) Check(now time.Time, req TradeRequest) error {
	if !g.connectivity.Allow(req.BuyVenue, now) || !g.connectivity.Allow(req.SellVenue, now) ||
		!g.errorRate.Allow(req.BuyVenue, now) || !g.errorRate.Allow(req.SellVenue, now) {
		return g.reject(ReasonConnectivity, "")
	}

	if !g.volatility.Allow(req.Symbol, now) {
		return g.reject(ReasonVolatility, "")
	}

	g.mu.Lock()
	projectedBuyVenue := g.positionPerVenue[req.BuyVenue].Add(req.ProjectedBuy)
	projectedSellVenue := g.positionPerVenue[req.SellVenue].Add(req.ProjectedSell)
	projectedTotal := g.totalPosition.Add(req.ProjectedBuy).Add(req.ProjectedSell)
	dailyLoss := g.dailyRealisedLoss
	g.mu.Unlock()

	if !g.limits.MaxPositionPerVenue.IsZero() &&
		(projectedBuyVenue.Abs().GreaterThan(g.limits.MaxPositionPerVenue) ||
			projectedSellVenue.Abs().GreaterThan(g.limits.MaxPositionPerVenue)) {
		return g.reject(ReasonPositionPerVenue, "")
	}

	if !g.limits.MaxTotalPosition.IsZero() && projectedTotal.Abs().GreaterThan(g.limits.MaxTotalPosition) {
		return g.reject(ReasonTotalPosition, "")
	}

	if !g.limits.DailyLossLimit.IsZero() && dailyLoss.Add(req.WorstCaseLoss).GreaterThan(g.limits.DailyLossLimit) {
		return g.reject(ReasonDailyLossLimit, "")
	}

	if !g.limits.PerTradeLossLimit.IsZero() && req.WorstCaseLoss.GreaterThan(g.limits.PerTradeLossLimit) {
		return g.reject(ReasonPerTradeLoss, "")
	}

	if !g.limits.MaxDrawdown.IsZero() && g.drawdownFraction().GreaterThan(g.limits.MaxDrawdown) {
		return g.reject(ReasonDrawdown, "")
	}

	if err := g.checkBalances(req.Requirements); err != nil {
		return err
	}

	return nil
}

func (g *Gate) checkBalances(reqs []LegRequirement) error {
	margin := decimal.NewFromInt(1).Add(g.limits.BalanceSafetyMargin)
	for _, r := range reqs {
		g.mu.Lock()
		k := balanceKey{r.Venue, r.Currency}
		balance, observed := g.balances[k], g.balanceObserved[k]
		g.mu.Unlock()

		if !observed {
			return g.reject(ReasonBalance, fmt.Sprintf("%s/%s: no balance ever observed", r.Venue, r.Currency))
		}
		if balance.LessThan(r.Amount.Mul(margin)) {
			return g.reject(ReasonBalance, fmt.Sprintf("%s/%s: cached balance %s below required %s", r.Venue, r.Currency, balance, r.Amount))
		}
	}
	return nil
}

func (g *Gate) reject(reason RejectReason, detail string) error {
	preTradeRejections.WithLabelValues(string(reason)).Inc()
	g.log.Warn("pre-trade check rejected", zap.String("reason", string(reason)), zap.String("detail", detail))
	return &RejectedError{Reason: reason, Detail: detail}
}
