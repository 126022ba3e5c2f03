// Package engine is the central orchestrator of the arbitrage bot. It wires
// venue adapters, the price stream, the detector, the pre-trade risk gate,
// the dual-leg executor, and the journaling sink into one running process.
//
// Lifecycle: New() -> Start() -> [runs until ctx is cancelled] -> Stop().
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/arbiq/enginecore/internal/auth"
	"github.com/arbiq/enginecore/internal/config"
	"github.com/arbiq/enginecore/internal/detector"
	"github.com/arbiq/enginecore/internal/domain"
	"github.com/arbiq/enginecore/internal/executor"
	"github.com/arbiq/enginecore/internal/journal"
	"github.com/arbiq/enginecore/internal/normalizer"
	"github.com/arbiq/enginecore/internal/normalizer/venuea"
	"github.com/arbiq/enginecore/internal/normalizer/venueb"
	"github.com/arbiq/enginecore/internal/risk"
	"github.com/arbiq/enginecore/internal/stream"
	"github.com/arbiq/enginecore/internal/symbol"
	"github.com/arbiq/enginecore/internal/venue"
)

// Engine owns every long-lived subsystem and the detect-execute loop that
// ties them together.
type Engine struct {
	cfg config.Config
	log *zap.Logger

	adapters map[string]venue.Adapter
	stream   *stream.Stream
	detector *detector.Detector
	gate     *risk.Gate
	exec     *executor.Executor
	journal  journal.Repository
	pool     *pgxpool.Pool

	symbolsByVenue map[string][]domain.Symbol

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires every component from cfg but does not start any goroutines.
func New(cfg config.Config, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}

	adapters := make(map[string]venue.Adapter, len(cfg.Exchanges))
	symbolsByVenue := make(map[string][]domain.Symbol, len(cfg.Exchanges))
	var pairs []stream.Pair

	for _, ex := range cfg.Exchanges {
		if !ex.Enabled {
			continue
		}
		adapter, err := buildAdapter(ex, log)
		if err != nil {
			return nil, fmt.Errorf("build adapter %s: %w", ex.Name, err)
		}
		adapters[ex.Name] = adapter

		for _, raw := range ex.Symbols {
			sym, err := symbol.Canonicalise(raw)
			if err != nil {
				return nil, fmt.Errorf("exchange %s: symbol %q: %w", ex.Name, raw, err)
			}
			symbolsByVenue[ex.Name] = append(symbolsByVenue[ex.Name], sym)
			pairs = append(pairs, stream.Pair{VenueName: ex.Name, Adapter: adapter, Symbol: sym})
		}
	}
	if len(adapters) < 2 {
		return nil, fmt.Errorf("at least two enabled exchanges are required")
	}

	strm := stream.New(stream.Config{
		Pairs:               pairs,
		RefreshInterval:     cfg.Stream.PollingInterval(),
		MaxAge:              time.Duration(cfg.Trading.MaxSnapshotAgeMs) * time.Millisecond,
		PerVenueConcurrency: int64(cfg.Stream.PerVenueConcurrency),
		MaxConsecutiveErrors: 5,
		Depth:               10,
		Logger:              log,
	})

	det := detector.New(detector.Config{
		MinSpreadPercent:   decimal.NewFromFloat(cfg.Trading.MinSpreadPercent),
		MinProfitReference: decimal.NewFromFloat(cfg.Trading.MinProfitReference),
		MaxPositionSize:    decimal.NewFromFloat(cfg.Trading.MaxPositionPerVenue),
		MinOrderSize:       decimal.NewFromFloat(0),
		ReferenceRates:     referenceRates(cfg.Trading.ReferenceRates),
	})

	connectivity := risk.NewConnectivityBreaker(cfg.Breakers.ConnectivityFailuresToTrip, time.Duration(cfg.Breakers.ConnectivityCooldownMs)*time.Millisecond)
	errorRate := risk.NewErrorRateBreaker(cfg.Breakers.ErrorRateWindow, cfg.Breakers.ErrorRateMinSamples, decimal.NewFromFloat(cfg.Breakers.ErrorRateMax), time.Duration(cfg.Breakers.ErrorRateCooldownMs)*time.Millisecond)
	volatility := risk.NewVolatilityBreaker(time.Duration(cfg.Breakers.VolatilityWindowMs)*time.Millisecond, time.Duration(cfg.Breakers.VolatilityCooldownMs)*time.Millisecond, decimal.NewFromFloat(cfg.Breakers.VolatilityMaxPercent))

	gate := risk.NewGate(connectivity, errorRate, volatility, risk.Limits{
		MaxPositionPerVenue: decimal.NewFromFloat(cfg.Trading.MaxPositionPerVenue),
		MaxTotalPosition:    decimal.NewFromFloat(cfg.Trading.MaxTotalPosition),
		DailyLossLimit:      decimal.NewFromFloat(cfg.Trading.DailyLossLimit),
		PerTradeLossLimit:   decimal.NewFromFloat(cfg.Trading.PerTradeLossLimit),
		MaxDrawdown:         decimal.NewFromFloat(cfg.Trading.MaxDrawdown),
	}, log)

	repo, pool, err := buildJournal(cfg.Journal, log)
	if err != nil {
		return nil, fmt.Errorf("build journal: %w", err)
	}

	validator := executor.NewValidator(executor.LegLimits{})
	ex := executor.New(adapters, validator, gate, nil, repo, strm, executor.Config{
		PollInterval:      cfg.Executor.ExecutorPollInterval(),
		PollDeadline:      cfg.Executor.TotalDeadline(),
		ExecTimeout:       cfg.Executor.NetTimeout(),
		MaxAge:            time.Duration(cfg.Trading.MaxSnapshotAgeMs) * time.Millisecond,
		MaxRetries:        cfg.Trading.MaxRetries,
		RetryBaseDelay:    cfg.Executor.RetryBaseDelay(),
		SlippageTolerance: decimal.NewFromFloat(cfg.Trading.SlippageTolerancePercent),
	}, log)

	return &Engine{
		cfg:            cfg,
		log:            log,
		adapters:       adapters,
		stream:         strm,
		detector:       det,
		gate:           gate,
		exec:           ex,
		journal:        repo,
		pool:           pool,
		symbolsByVenue: symbolsByVenue,
	}, nil
}

func referenceRates(rates map[string]float64) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(rates))
	for k, v := range rates {
		out[k] = decimal.NewFromFloat(v)
	}
	return out
}

// buildAdapter constructs a venue.Adapter for one configured exchange: a
// Signer from its auth_scheme, a Normalizer from its normalizer_kind, and a
// RESTAdapter wired with the venue's path templates.
func buildAdapter(ex config.ExchangeConfig, log *zap.Logger) (venue.Adapter, error) {
	signer, err := buildSigner(ex)
	if err != nil {
		return nil, err
	}

	norm, err := buildNormalizer(ex)
	if err != nil {
		return nil, err
	}

	takerFee := decimal.NewFromFloat(0.001)
	if ex.TakerFeeOverride != nil {
		takerFee = decimal.NewFromFloat(*ex.TakerFeeOverride)
	}
	makerFee := decimal.NewFromFloat(0.001)
	if ex.MakerFeeOverride != nil {
		makerFee = decimal.NewFromFloat(*ex.MakerFeeOverride)
	}

	return venue.NewRESTAdapter(venue.RESTConfig{
		VenueName: ex.Name,
		BaseURL:   ex.EndpointOverride,
		RenderRule: symbol.VenueRenderRule{
			Separator:       ex.RenderSeparator,
			QuotePreference: ex.QuotePreference,
		},
		Signer:     signer,
		Normalizer: norm,
		Endpoints: venue.Endpoints{
			OrderBook:   pathTemplate2(ex.OrderBookPathTemplate),
			PlaceOrder:  ex.PlaceOrderPath,
			CancelOrder: pathTemplate1(ex.CancelOrderPathTemplate),
			GetOrder:    pathTemplate1(ex.GetOrderPathTemplate),
			OpenOrders:  ex.OpenOrdersPath,
			Balance:     pathTemplate1(ex.BalancePathTemplate),
		},
		TakerFee:         takerFee,
		MakerFee:         makerFee,
		Timeout:          10 * time.Second,
		RetryCount:       3,
		SupportsPostOnly: true,
		Logger:           log,
	}), nil
}

func pathTemplate1(tmpl string) func(string) string {
	return func(a string) string { return fmt.Sprintf(tmpl, a) }
}

func pathTemplate2(tmpl string) func(string, int) string {
	return func(a string, b int) string { return fmt.Sprintf(tmpl, a, b) }
}

func buildSigner(ex config.ExchangeConfig) (auth.Signer, error) {
	switch ex.AuthScheme {
	case "bearer-token":
		return auth.NewBearerSigner(auth.BearerConfig{Token: ex.APIKey})
	case "hmac-sha256":
		return auth.NewHMACSigner(auth.HMACConfig{APIKey: ex.APIKey, Secret: ex.APISecret})
	case "passphrase-hmac":
		return auth.NewHMACSigner(auth.HMACConfig{APIKey: ex.APIKey, Secret: ex.APISecret, Passphrase: ex.Passphrase})
	case "rsa-pss-sha256":
		return auth.NewRSAPSSSigner(auth.RSAPSSConfig{KeyID: ex.KeyID, PrivateKey: ex.PrivateKeyPEM})
	default:
		return nil, fmt.Errorf("unrecognised auth scheme %q", ex.AuthScheme)
	}
}

func buildNormalizer(ex config.ExchangeConfig) (normalizer.Normalizer, error) {
	switch ex.NormalizerKind {
	case "venuea":
		return venuea.NewNormalizer(ex.Name), nil
	case "venueb":
		return venueb.NewNormalizer(ex.Name), nil
	default:
		return nil, fmt.Errorf("unrecognised normalizer_kind %q (want venuea or venueb)", ex.NormalizerKind)
	}
}

// buildJournal constructs the journaling Repository. A configured DSN always
// yields a PostgresRepository (mode still governs table selection and
// dry-run write suppression); an empty DSN falls back to an in-memory
// repository, useful for local paper/dry-run runs without a database.
func buildJournal(cfg config.JournalConfig, log *zap.Logger) (journal.Repository, *pgxpool.Pool, error) {
	mode := journal.Mode(cfg.Mode)
	if cfg.DSN == "" {
		return journal.NewMemoryRepository(), nil, nil
	}

	pool, err := pgxpool.New(context.Background(), cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	repo, err := journal.NewPostgresRepository(pool, mode, log.Sugar())
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return repo, pool, nil
}

// Start begins the price stream and the detect-execute loop. It returns
// immediately; the loop runs on a background goroutine until ctx is
// cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context) {
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.stream.Start(e.ctx)

	e.wg.Add(1)
	go e.run()
}

// Stop cancels the detect-execute loop, stops the stream, and releases the
// journal's database connection if one was opened.
func (e *Engine) Stop(timeout time.Duration) {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	e.stream.Stop(timeout)
	if e.pool != nil {
		e.pool.Close()
	}
}

func (e *Engine) run() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.Stream.PollingInterval())
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case now := <-ticker.C:
			e.tick(now)
		}
	}
}

// tick gathers the freshest quote per (venue, symbol), runs the detector,
// and executes the best surviving opportunity, if any.
func (e *Engine) tick(now time.Time) {
	quotes := e.collectQuotes()
	for sym, vqs := range quotes {
		if len(vqs) < 2 {
			continue
		}
		opportunities := e.detector.Detect(now, vqs)
		if len(opportunities) == 0 {
			continue
		}
		best := opportunities[0]
		e.log.Debug("arbitrage opportunity detected",
			zap.String("symbol", sym.String()),
			zap.String("buy_venue", best.BuyVenue),
			zap.String("sell_venue", best.SellVenue),
			zap.String("net_profit_ref", best.NetProfitRef.String()),
		)

		res := e.exec.Execute(e.ctx, executor.Opportunity{
			Symbol:     best.Symbol,
			BuyVenue:   best.BuyVenue,
			SellVenue:  best.SellVenue,
			Quantity:   best.Quantity,
			BuyPrice:   best.BuyPrice,
			SellPrice:  best.SellPrice,
			BuyFee:     best.BuyFee,
			SellFee:    best.SellFee,
			SnapshotAt: now,
		})
		e.log.Info("execution finished",
			zap.String("symbol", sym.String()),
			zap.String("outcome", string(res.Outcome)),
			zap.String("reason", res.Reason),
		)
	}
}

func (e *Engine) collectQuotes() map[domain.Symbol][]detector.VenueQuote {
	out := make(map[domain.Symbol][]detector.VenueQuote)
	for venueName, syms := range e.symbolsByVenue {
		adapter := e.adapters[venueName]
		for _, sym := range syms {
			book, ok := e.stream.Snapshot(venueName, sym)
			if !ok {
				continue
			}
			out[sym] = append(out[sym], detector.VenueQuote{
				VenueName: venueName,
				Book:      book,
				TakerFee:  adapter.GetTakerFee(),
				MakerFee:  adapter.GetMakerFee(),
			})
		}
	}
	return out
}
