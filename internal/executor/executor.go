package executor

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/arbiq/enginecore/internal/domain"
	"github.com/arbiq/enginecore/internal/risk"
	"github.com/arbiq/enginecore/internal/venue"
	"github.com/arbiq/enginecore/internal/venueerrors"
)

// Config bounds the timing and retry behaviour of the executor.
type Config struct {
	// PollInterval is how often an open order is re-polled during fill
	// polling (P).
	PollInterval time.Duration
	// PollDeadline is the maximum time to wait for both legs to reach a
	// terminal state before giving up and cancelling both (D).
	PollDeadline time.Duration
	// ExecTimeout bounds the whole execution attempt, including placement
	// and polling (T_exec).
	ExecTimeout time.Duration
	// MaxAge is the snapshot freshness bound for the pre-execution recheck.
	MaxAge time.Duration
	// MaxRetries bounds retries of order placement for transport errors only.
	MaxRetries int
	// RetryBaseDelay is the base of the exponential backoff between retries.
	RetryBaseDelay time.Duration
	// SlippageTolerance is the fraction of adverse price movement assumed on
	// each leg when computing the worst-case per-trade loss for the risk
	// gate's PerTradeLossLimit check (e.g. 0.002 for 20bps).
	SlippageTolerance decimal.Decimal
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.PollDeadline <= 0 {
		c.PollDeadline = 30 * time.Second
	}
	if c.ExecTimeout <= 0 {
		c.ExecTimeout = 2 * time.Minute
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 100 * time.Millisecond
	}
	return c
}

var legResultChanPool = sync.Pool{
	New: func() interface{} { return make(chan legResult, 1) },
}

func acquireLegResultChan() chan legResult {
	return legResultChanPool.Get().(chan legResult)
}

func releaseLegResultChan(ch chan legResult) {
	select {
	case <-ch:
	default:
	}
	legResultChanPool.Put(ch)
}

type legResult struct {
	order *domain.Order
	err   error
}

// Executor places both legs of a detected opportunity, reconciles fills, and
// journals the terminal outcome. Both legs are submitted on independent
// goroutines and joined with a composite timeout, so total placement latency
// is the slower of the two legs rather than their sum.
type Executor struct {
	adapters  map[string]venue.Adapter
	validator *Validator
	gate      *risk.Gate
	advisor   Advisor
	journal   Journal
	quoter    Quoter
	cfg       Config
	log       *zap.Logger
}

// New constructs an Executor. advisor, journal and quoter may be nil: a nil
// advisor defaults every leg to taker, a nil journal skips recording, and a
// nil quoter skips the pre-execution re-fetch (the original snapshot age is
// still checked against MaxAge).
func New(adapters map[string]venue.Adapter, validator *Validator, gate *risk.Gate, advisor Advisor, journal Journal, quoter Quoter, cfg Config, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		adapters:  adapters,
		validator: validator,
		gate:      gate,
		advisor:   advisor,
		journal:   journal,
		quoter:    quoter,
		cfg:       cfg.withDefaults(),
		log:       log,
	}
}

// Execute carries one detected opportunity through the full dual-leg
// protocol: freshness recheck, risk gate, advisor consultation, lot
// validation, concurrent placement, fill polling, reconciliation and
// journaling.
func (e *Executor) Execute(ctx context.Context, opp Opportunity) *Result {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ExecTimeout)
	defer cancel()

	if res := e.recheckFreshness(&opp); res != nil {
		return res
	}

	if e.gate != nil {
		req := risk.TradeRequest{
			Symbol:        opp.Symbol.String(),
			BuyVenue:      opp.BuyVenue,
			SellVenue:     opp.SellVenue,
			ProjectedBuy:  opp.Quantity.Mul(opp.BuyPrice),
			ProjectedSell: opp.Quantity.Mul(opp.SellPrice),
			WorstCaseLoss: e.worstCaseLoss(opp),
			Requirements:  e.balanceRequirements(opp),
		}
		if err := e.gate.Check(time.Now(), req); err != nil {
			return &Result{Outcome: OutcomeRejected, Reason: err.Error()}
		}
	}

	buyAdapter, ok := e.adapters[opp.BuyVenue]
	if !ok {
		return &Result{Outcome: OutcomeFailed, Reason: fmt.Sprintf("unknown venue %q", opp.BuyVenue)}
	}
	sellAdapter, ok := e.adapters[opp.SellVenue]
	if !ok {
		return &Result{Outcome: OutcomeFailed, Reason: fmt.Sprintf("unknown venue %q", opp.SellVenue)}
	}

	qty, err := e.validator.ValidateBothLegs(opp.BuyVenue, opp.SellVenue, opp.Symbol, opp.Quantity, opp.BuyPrice, opp.SellPrice)
	if err != nil {
		return &Result{Outcome: OutcomeRejected, Reason: err.Error()}
	}

	buyPostOnly := e.advise(ctx, LegIntent{Venue: opp.BuyVenue, Symbol: opp.Symbol, Side: domain.SideBuy, Quantity: qty, Price: opp.BuyPrice})
	sellPostOnly := e.advise(ctx, LegIntent{Venue: opp.SellVenue, Symbol: opp.Symbol, Side: domain.SideSell, Quantity: qty, Price: opp.SellPrice})

	buyReq := e.buildOrderRequest(opp.Symbol, domain.SideBuy, qty, opp.BuyPrice, buyPostOnly, buyAdapter)
	sellReq := e.buildOrderRequest(opp.Symbol, domain.SideSell, qty, opp.SellPrice, sellPostOnly, sellAdapter)

	buyCh := acquireLegResultChan()
	sellCh := acquireLegResultChan()
	defer releaseLegResultChan(buyCh)
	defer releaseLegResultChan(sellCh)

	go func() {
		order, err := e.placeWithRetry(ctx, buyAdapter, buyReq)
		buyCh <- legResult{order: order, err: err}
	}()
	go func() {
		order, err := e.placeWithRetry(ctx, sellAdapter, sellReq)
		sellCh <- legResult{order: order, err: err}
	}()

	var buyRes, sellRes legResult
	var buyDone, sellDone bool
	for !buyDone || !sellDone {
		select {
		case buyRes = <-buyCh:
			buyDone = true
		case sellRes = <-sellCh:
			sellDone = true
		case <-ctx.Done():
			e.cancelIfAcked(context.Background(), buyAdapter, opp.Symbol, buyRes)
			e.cancelIfAcked(context.Background(), sellAdapter, opp.Symbol, sellRes)
			return &Result{Outcome: OutcomeTimeout, Reason: "context done during placement"}
		}
	}

	return e.handlePlacementResults(ctx, opp, qty, buyAdapter, sellAdapter, buyRes, sellRes)
}

// worstCaseLoss bounds the per-trade loss under the assumption that both legs
// move against us by SlippageTolerance before filling: the buy fills higher,
// the sell fills lower. If the trade still nets a profit under that
// assumption, the worst-case loss is zero.
func (e *Executor) worstCaseLoss(opp Opportunity) decimal.Decimal {
	slip := e.cfg.SlippageTolerance
	if slip.IsZero() {
		return decimal.Zero
	}

	worstBuyPrice := opp.BuyPrice.Mul(decimal.NewFromInt(1).Add(slip))
	worstSellPrice := opp.SellPrice.Mul(decimal.NewFromInt(1).Sub(slip))

	cost := opp.Quantity.Mul(worstBuyPrice).Mul(decimal.NewFromInt(1).Add(opp.BuyFee))
	proceeds := opp.Quantity.Mul(worstSellPrice).Mul(decimal.NewFromInt(1).Sub(opp.SellFee))

	loss := cost.Sub(proceeds)
	if loss.IsNegative() {
		return decimal.Zero
	}
	return loss
}

func (e *Executor) balanceRequirements(opp Opportunity) []risk.LegRequirement {
	return []risk.LegRequirement{
		{Venue: opp.BuyVenue, Currency: opp.Symbol.Quote, Amount: opp.Quantity.Mul(opp.BuyPrice)},
		{Venue: opp.SellVenue, Currency: opp.Symbol.Base, Amount: opp.Quantity},
	}
}

func (e *Executor) recheckFreshness(opp *Opportunity) *Result {
	// A snapshot exactly MaxAge old is treated as stale, matching stream.Stream's
	// freshness boundary.
	stale := e.cfg.MaxAge > 0 && time.Since(opp.SnapshotAt) >= e.cfg.MaxAge
	if !stale {
		return nil
	}
	if e.quoter == nil {
		return &Result{Outcome: OutcomeRejected, Reason: "STALE"}
	}

	buyBook, buyFresh := e.quoter.Snapshot(opp.BuyVenue, opp.Symbol)
	sellBook, sellFresh := e.quoter.Snapshot(opp.SellVenue, opp.Symbol)
	if !buyFresh || !sellFresh || buyBook == nil || sellBook == nil {
		return &Result{Outcome: OutcomeRejected, Reason: "STALE"}
	}

	ask, ok := buyBook.BestAsk()
	if !ok {
		return &Result{Outcome: OutcomeRejected, Reason: "STALE"}
	}
	bid, ok := sellBook.BestBid()
	if !ok {
		return &Result{Outcome: OutcomeRejected, Reason: "STALE"}
	}
	if bid.Price.LessThanOrEqual(ask.Price) {
		return &Result{Outcome: OutcomeSpreadCollapsed, Reason: "SPREAD_COLLAPSED"}
	}

	opp.BuyPrice = ask.Price
	opp.SellPrice = bid.Price
	opp.SnapshotAt = time.Now()
	return nil
}

func (e *Executor) advise(ctx context.Context, leg LegIntent) bool {
	if e.advisor == nil {
		return false
	}
	postOnly, err := e.advisor.Advise(ctx, leg)
	if err != nil {
		e.log.Warn("advisor error, defaulting to taker", zap.String("venue", leg.Venue), zap.Error(err))
		return false
	}
	return postOnly
}

func (e *Executor) buildOrderRequest(sym domain.Symbol, side domain.OrderSide, qty, price decimal.Decimal, postOnly bool, adapter venue.Adapter) venue.PlaceOrderRequest {
	if !postOnly {
		return venue.PlaceOrderRequest{Symbol: sym, Side: side, Type: domain.OrderTypeMarket, Quantity: qty}
	}
	return venue.PlaceOrderRequest{
		Symbol:      sym,
		Side:        side,
		Type:        domain.OrderTypeLimit,
		Quantity:    qty,
		Price:       price,
		PostOnly:    true,
		TimeInForce: domain.TimeInForceGTC,
	}
}

// placeWithRetry retries order placement only for errors classified as
// temporary by venueerrors (transport/server errors), bounded by
// cfg.MaxRetries with exponential backoff and jitter. Business rejections
// are permanent errors and return immediately.
func (e *Executor) placeWithRetry(ctx context.Context, adapter venue.Adapter, req venue.PlaceOrderRequest) (*domain.Order, error) {
	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		order, err := adapter.PlaceOrder(ctx, req)
		if err == nil {
			if e.journal != nil {
				if jerr := e.journal.RecordOrder(ctx, order); jerr != nil {
					e.log.Error("failed to journal order", zap.Error(jerr))
				}
			}
			return order, nil
		}
		lastErr = err
		if !venueerrors.Temporary(err) || attempt == e.cfg.MaxRetries {
			return nil, err
		}

		backoff := e.cfg.RetryBaseDelay * time.Duration(1<<uint(attempt))
		jitter := time.Duration(rand.Int63n(int64(e.cfg.RetryBaseDelay) + 1))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff + jitter):
		}
	}
	return nil, lastErr
}

func (e *Executor) cancelIfAcked(ctx context.Context, adapter venue.Adapter, sym domain.Symbol, res legResult) {
	if res.order == nil || res.order.VenueOrderID == "" {
		return
	}
	if err := adapter.CancelOrder(ctx, res.order.VenueOrderID, sym); err != nil {
		e.log.Warn("cancel on timeout failed", zap.String("venue", adapter.Name()), zap.Error(err))
	}
}

func (e *Executor) handlePlacementResults(ctx context.Context, opp Opportunity, qty decimal.Decimal, buyAdapter, sellAdapter venue.Adapter, buyRes, sellRes legResult) *Result {
	buyAcked := buyRes.err == nil && buyRes.order != nil
	sellAcked := sellRes.err == nil && sellRes.order != nil

	switch {
	case buyAcked && sellAcked:
		return e.pollAndReconcile(ctx, opp, qty, buyAdapter, sellAdapter, buyRes.order, sellRes.order)

	case buyAcked && !sellAcked:
		return e.rollbackSingleLeg(ctx, opp, buyAdapter, buyRes.order, sellRes.err)

	case sellAcked && !buyAcked:
		return e.rollbackSingleLeg(ctx, opp, sellAdapter, sellRes.order, buyRes.err)

	default:
		return &Result{Outcome: OutcomeFailed, Reason: fmt.Sprintf("both legs failed: buy=%v sell=%v", buyRes.err, sellRes.err)}
	}
}

// rollbackSingleLeg handles the case where exactly one leg acknowledged and
// the other was rejected or errored: the acknowledged leg is cancelled, and
// if it had already partially filled before the cancel took effect, the
// residual exposure is surfaced as PARTIAL rather than silently dropped.
func (e *Executor) rollbackSingleLeg(ctx context.Context, opp Opportunity, adapter venue.Adapter, acked *domain.Order, otherErr error) *Result {
	_ = adapter.CancelOrder(ctx, acked.VenueOrderID, opp.Symbol)

	current, err := adapter.GetOrder(ctx, acked.VenueOrderID, opp.Symbol)
	if err != nil {
		current = acked
	}

	if current.FilledQuantity.Sign() > 0 {
		e.log.Warn("leg partially filled before rollback could cancel it",
			zap.String("venue", adapter.Name()), zap.String("filled", current.FilledQuantity.String()))
		trade := &domain.Trade{
			Symbol:       opp.Symbol,
			BuyVenue:     opp.BuyVenue,
			SellVenue:    opp.SellVenue,
			Outcome:      string(OutcomePartial),
			ExposureSide: current.Side,
			ExposureQty:  current.FilledQuantity,
			ExposureNote: fmt.Sprintf("other leg failed: %v", otherErr),
			ExecutedAt:   time.Now(),
		}
		e.recordTrade(ctx, trade)
		return &Result{
			Outcome:      OutcomePartial,
			Reason:       fmt.Sprintf("other leg failed: %v", otherErr),
			Trade:        trade,
			ExposureSide: current.Side,
			ExposureQty:  current.FilledQuantity,
		}
	}

	return &Result{Outcome: OutcomeFailed, Reason: fmt.Sprintf("other leg failed: %v", otherErr)}
}

func (e *Executor) pollAndReconcile(ctx context.Context, opp Opportunity, qty decimal.Decimal, buyAdapter, sellAdapter venue.Adapter, buyOrder, sellOrder *domain.Order) *Result {
	deadline := time.Now().Add(e.cfg.PollDeadline)
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		buyOrder = e.refreshOrder(ctx, buyAdapter, buyOrder, opp.Symbol)
		sellOrder = e.refreshOrder(ctx, sellAdapter, sellOrder, opp.Symbol)

		if buyOrder.Status.Terminal() && sellOrder.Status.Terminal() {
			return e.reconcile(ctx, opp, buyAdapter, sellAdapter, buyOrder, sellOrder)
		}

		if time.Now().After(deadline) {
			buyDone := buyOrder.Status.Terminal()
			sellDone := sellOrder.Status.Terminal()
			if buyDone && !sellDone {
				return e.cancelOpenLegAndReconcile(ctx, opp, sellAdapter, sellOrder, buyOrder)
			}
			if sellDone && !buyDone {
				return e.cancelOpenLegAndReconcile(ctx, opp, buyAdapter, buyOrder, sellOrder)
			}
			_ = buyAdapter.CancelOrder(ctx, buyOrder.VenueOrderID, opp.Symbol)
			_ = sellAdapter.CancelOrder(ctx, sellOrder.VenueOrderID, opp.Symbol)
			return &Result{Outcome: OutcomeTimeout, Reason: "neither leg filled within poll deadline"}
		}

		select {
		case <-ctx.Done():
			_ = buyAdapter.CancelOrder(context.Background(), buyOrder.VenueOrderID, opp.Symbol)
			_ = sellAdapter.CancelOrder(context.Background(), sellOrder.VenueOrderID, opp.Symbol)
			return &Result{Outcome: OutcomeTimeout, Reason: ctx.Err().Error()}
		case <-ticker.C:
		}
	}
}

func (e *Executor) refreshOrder(ctx context.Context, adapter venue.Adapter, order *domain.Order, sym domain.Symbol) *domain.Order {
	if order.Status.Terminal() {
		return order
	}
	updated, err := adapter.GetOrder(ctx, order.VenueOrderID, sym)
	if err != nil {
		e.log.Warn("order poll failed", zap.String("venue", adapter.Name()), zap.Error(err))
		return order
	}
	return updated
}

func (e *Executor) cancelOpenLegAndReconcile(ctx context.Context, opp Opportunity, openAdapter venue.Adapter, openOrder, terminalOrder *domain.Order) *Result {
	_ = openAdapter.CancelOrder(ctx, openOrder.VenueOrderID, opp.Symbol)
	openOrder = e.refreshOrder(ctx, openAdapter, openOrder, opp.Symbol)

	buyOrder, sellOrder := terminalOrder, openOrder
	if openOrder.Side == domain.SideBuy {
		buyOrder, sellOrder = openOrder, terminalOrder
	}
	return e.reconcile(ctx, opp, nil, nil, buyOrder, sellOrder)
}

func (e *Executor) reconcile(ctx context.Context, opp Opportunity, _, _ venue.Adapter, buyOrder, sellOrder *domain.Order) *Result {
	matched := decimal.Min(buyOrder.FilledQuantity, sellOrder.FilledQuantity)
	exposureQty := buyOrder.FilledQuantity.Sub(sellOrder.FilledQuantity).Abs()

	outcome := OutcomeSuccess
	var exposureSide domain.OrderSide
	if exposureQty.Sign() > 0 {
		outcome = OutcomePartial
		if buyOrder.FilledQuantity.GreaterThan(sellOrder.FilledQuantity) {
			exposureSide = domain.SideBuy
		} else {
			exposureSide = domain.SideSell
		}
	}
	if matched.IsZero() {
		outcome = OutcomeFailed
	}

	netProfit := matched.Mul(sellOrder.AvgFillPrice.Mul(decimal.NewFromInt(1).Sub(opp.SellFee)).
		Sub(buyOrder.AvgFillPrice.Mul(decimal.NewFromInt(1).Add(opp.BuyFee))))

	trade := &domain.Trade{
		Symbol:          opp.Symbol,
		BuyVenue:        opp.BuyVenue,
		SellVenue:       opp.SellVenue,
		MatchedQuantity: matched,
		BuyPrice:        buyOrder.AvgFillPrice,
		SellPrice:       sellOrder.AvgFillPrice,
		BuyFee:          opp.BuyFee,
		SellFee:         opp.SellFee,
		NetProfitQuote:  netProfit,
		Outcome:         string(outcome),
		ExposureSide:    exposureSide,
		ExposureQty:     exposureQty,
		ExecutedAt:      time.Now(),
	}
	e.recordTrade(ctx, trade)

	return &Result{
		Outcome:      outcome,
		Trade:        trade,
		ExposureSide: exposureSide,
		ExposureQty:  exposureQty,
	}
}

func (e *Executor) recordTrade(ctx context.Context, trade *domain.Trade) {
	if e.journal == nil {
		return
	}
	if err := e.journal.RecordTrade(ctx, trade); err != nil {
		e.log.Error("failed to journal trade", zap.Error(err))
	}
}
