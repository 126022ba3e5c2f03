// Package config defines all configuration for the arbitrage engine.
// Config is loaded from a YAML file with ARBIQ_* environment overrides for
// process-wide settings such as the journal DSN and the log level; the
// per-exchange API keys and secrets are not overridable by env var.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly onto the YAML file
// structure; every numeric trading/risk knob is a float64 here and is
// converted to decimal.Decimal once, in internal/engine.New, rather
// than carried as decimal through the config layer itself.
type Config struct {
	Exchanges     []ExchangeConfig    `mapstructure:"exchanges"`
	Trading       TradingConfig       `mapstructure:"trading"`
	Stream        StreamConfig        `mapstructure:"stream"`
	Breakers      BreakersConfig      `mapstructure:"breakers"`
	Executor      ExecutorConfig      `mapstructure:"executor"`
	Journal       JournalConfig       `mapstructure:"journal"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ExchangeConfig is one venue's credential bundle, fee overrides, and
// connection settings.
type ExchangeConfig struct {
	Name             string   `mapstructure:"name"`
	AuthScheme       string   `mapstructure:"auth_scheme"` // bearer-token | hmac-sha256 | rsa-pss-sha256 | passphrase-hmac
	APIKey           string   `mapstructure:"api_key"`
	APISecret        string   `mapstructure:"api_secret"`
	Passphrase       string   `mapstructure:"passphrase"`
	KeyID            string   `mapstructure:"key_id"`          // RSA-PSS key identifier
	PrivateKeyPEM    string   `mapstructure:"private_key_pem"` // RSA-PSS signing key, PEM-encoded
	EndpointOverride string   `mapstructure:"endpoint_override"`
	MakerFeeOverride *float64 `mapstructure:"maker_fee_override"`
	TakerFeeOverride *float64 `mapstructure:"taker_fee_override"`
	Enabled          bool     `mapstructure:"enabled"`

	// NormalizerKind selects which concrete normalizer.Normalizer implementation
	// this venue's responses are parsed with ("venuea" or "venueb").
	NormalizerKind string `mapstructure:"normalizer_kind"`
	// Symbols lists the canonical BASE-QUOTE symbols this venue streams and trades.
	Symbols []string `mapstructure:"symbols"`
	// RenderSeparator and QuotePreference configure how canonical symbols are
	// rendered into this venue's preferred string form (internal/symbol.Render).
	RenderSeparator string `mapstructure:"render_separator"`
	QuotePreference string `mapstructure:"quote_preference"`

	// Path templates for the venue's REST surface, relative to EndpointOverride.
	OrderBookPathTemplate   string `mapstructure:"orderbook_path_template"`    // e.g. "/v1/book?symbol=%s&depth=%d"
	PlaceOrderPath          string `mapstructure:"place_order_path"`
	CancelOrderPathTemplate string `mapstructure:"cancel_order_path_template"` // e.g. "/v1/orders/%s/cancel"
	GetOrderPathTemplate    string `mapstructure:"get_order_path_template"`    // e.g. "/v1/orders/%s"
	OpenOrdersPath          string `mapstructure:"open_orders_path"`
	BalancePathTemplate     string `mapstructure:"balance_path_template"`      // e.g. "/v1/balances/%s"

	Extra map[string]string `mapstructure:"extra"`
}

// TradingConfig tunes the detector and pre-trade risk gate.
type TradingConfig struct {
	MinSpreadPercent        float64 `mapstructure:"min_spread_percent"`
	MinProfitReference      float64 `mapstructure:"min_profit_reference"`
	MaxPositionPerVenue     float64 `mapstructure:"max_position_per_venue"`
	MaxTotalPosition        float64 `mapstructure:"max_total_position"`
	DailyLossLimit          float64 `mapstructure:"daily_loss_limit"`
	PerTradeLossLimit       float64 `mapstructure:"per_trade_loss_limit"`
	MaxDrawdown             float64 `mapstructure:"max_drawdown"`
	SlippageTolerancePercent float64 `mapstructure:"slippage_tolerance_percent"`
	MaxSnapshotAgeMs        int     `mapstructure:"max_snapshot_age_ms"`
	MaxRetries              int     `mapstructure:"max_retries"`
	// ReferenceRates converts a quote currency code to the reference currency the
	// detector ranks net profit in (e.g. {"USDT": 1, "EUR": 1.08}). A symbol whose
	// quote currency is absent here is still evaluated, with its profit left
	// unconverted (see internal/detector).
	ReferenceRates map[string]float64 `mapstructure:"reference_rates"`
}

// StreamConfig tunes price-feed polling/subscription behaviour.
type StreamConfig struct {
	PollingIntervalMs int `mapstructure:"polling_interval_ms"`
	PerVenueConcurrency int `mapstructure:"per_venue_concurrency"`
}

// BreakersConfig tunes the three independent circuit breakers.
type BreakersConfig struct {
	VolatilityWindowMs        int     `mapstructure:"volatility_window_ms"`
	VolatilityMaxPercent      float64 `mapstructure:"volatility_max_percent"`
	VolatilityCooldownMs      int     `mapstructure:"volatility_cooldown_ms"`
	ConnectivityFailuresToTrip int    `mapstructure:"connectivity_failures_to_trip"`
	ConnectivityCooldownMs    int     `mapstructure:"connectivity_cooldown_ms"`
	ErrorRateWindow           int     `mapstructure:"error_rate_window"`
	ErrorRateMinSamples       int     `mapstructure:"error_rate_min_samples"`
	ErrorRateMax              float64 `mapstructure:"error_rate_max"`
	ErrorRateCooldownMs       int     `mapstructure:"error_rate_cooldown_ms"`
}

// ExecutorConfig tunes the dual-leg order executor.
type ExecutorConfig struct {
	PollIntervalMs   int `mapstructure:"poll_interval_ms"`
	TotalDeadlineMs  int `mapstructure:"total_deadline_ms"`
	NetTimeoutMs     int `mapstructure:"net_timeout_ms"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms"`
}

// JournalConfig selects the journaling sink's durability mode and, when
// durable writes are required, its Postgres connection string.
type JournalConfig struct {
	Mode string `mapstructure:"mode"` // paper | dry-run | realistic
	DSN  string `mapstructure:"dsn"`
}

// ObservabilityConfig tunes process-wide logging.
type ObservabilityConfig struct {
	LogLevel string `mapstructure:"log_level"`
}

// Load reads config from a YAML file with ARBIQ_* environment overrides.
// Per-exchange secrets are not individually overridable by env var (unlike
// the single-venue bots this pattern is borrowed from) since exchanges is a
// list; operators inject venue credentials via the YAML file or a secrets
// mount, and ARBIQ_JOURNAL_DSN/ARBIQ_OBSERVABILITY_LOG_LEVEL remain the
// common env overrides for the process-wide settings that aren't secrets.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ARBIQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if dsn := os.Getenv("ARBIQ_JOURNAL_DSN"); dsn != "" {
		cfg.Journal.DSN = dsn
	}
	if level := os.Getenv("ARBIQ_OBSERVABILITY_LOG_LEVEL"); level != "" {
		cfg.Observability.LogLevel = level
	}

	return &cfg, nil
}

// Validate checks required fields and value ranges before the cmd/
// entrypoint constructs any component.
func (c *Config) Validate() error {
	if len(c.Exchanges) < 2 {
		return fmt.Errorf("exchanges: at least two venues are required for cross-venue arbitrage")
	}
	seen := make(map[string]bool, len(c.Exchanges))
	for _, ex := range c.Exchanges {
		if ex.Name == "" {
			return fmt.Errorf("exchanges: name is required")
		}
		if seen[ex.Name] {
			return fmt.Errorf("exchanges: duplicate venue name %q", ex.Name)
		}
		seen[ex.Name] = true
		switch ex.AuthScheme {
		case "bearer-token", "hmac-sha256", "rsa-pss-sha256", "passphrase-hmac":
		default:
			return fmt.Errorf("exchanges[%s]: unrecognised auth_scheme %q", ex.Name, ex.AuthScheme)
		}
	}

	if c.Trading.MinSpreadPercent <= 0 {
		return fmt.Errorf("trading.min_spread_percent must be > 0")
	}
	if c.Trading.MaxPositionPerVenue <= 0 {
		return fmt.Errorf("trading.max_position_per_venue must be > 0")
	}
	if c.Trading.MaxTotalPosition <= 0 {
		return fmt.Errorf("trading.max_total_position must be > 0")
	}
	if c.Trading.MaxDrawdown <= 0 || c.Trading.MaxDrawdown >= 1 {
		return fmt.Errorf("trading.max_drawdown must be in (0, 1)")
	}
	if c.Trading.MaxRetries < 0 {
		return fmt.Errorf("trading.max_retries must be >= 0")
	}

	if c.Stream.PerVenueConcurrency <= 0 {
		return fmt.Errorf("stream.per_venue_concurrency must be > 0")
	}

	if c.Breakers.ConnectivityFailuresToTrip <= 0 {
		return fmt.Errorf("breakers.connectivity_failures_to_trip must be > 0")
	}
	if c.Breakers.ErrorRateMax <= 0 || c.Breakers.ErrorRateMax > 1 {
		return fmt.Errorf("breakers.error_rate_max must be in (0, 1]")
	}

	switch c.Journal.Mode {
	case "paper", "dry-run", "realistic":
	default:
		return fmt.Errorf("journal.mode must be one of paper, dry-run, realistic")
	}
	if c.Journal.Mode == "realistic" && c.Journal.DSN == "" {
		return fmt.Errorf("journal.dsn is required when journal.mode is realistic")
	}

	return nil
}

// PollingInterval returns stream.polling_interval_ms as a time.Duration.
func (c *StreamConfig) PollingInterval() time.Duration {
	return time.Duration(c.PollingIntervalMs) * time.Millisecond
}

// ExecutorPollInterval returns executor.poll_interval_ms as a time.Duration.
func (c *ExecutorConfig) ExecutorPollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// TotalDeadline returns executor.total_deadline_ms as a time.Duration.
func (c *ExecutorConfig) TotalDeadline() time.Duration {
	return time.Duration(c.TotalDeadlineMs) * time.Millisecond
}

// NetTimeout returns executor.net_timeout_ms as a time.Duration.
func (c *ExecutorConfig) NetTimeout() time.Duration {
	return time.Duration(c.NetTimeoutMs) * time.Millisecond
}

// RetryBaseDelay returns executor.retry_base_delay_ms as a time.Duration.
func (c *ExecutorConfig) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond
}
