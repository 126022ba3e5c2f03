package normalizer

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiq/enginecore/internal/domain"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		wantZero bool
		check   func(t *testing.T, ts time.Time)
	}{
		{name: "empty string", input: "", wantZero: true},
		{name: "null string", input: "null", wantZero: true},
		{
			name:  "RFC3339 format",
			input: "2021-01-01T00:00:00Z",
			check: func(t *testing.T, ts time.Time) {
				assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), ts)
			},
		},
		{
			name:  "Unix seconds",
			input: "1609459200",
			check: func(t *testing.T, ts time.Time) {
				assert.Equal(t, int64(1609459200), ts.Unix())
			},
		},
		{
			name:  "Unix milliseconds",
			input: "1609459200000",
			check: func(t *testing.T, ts time.Time) {
				assert.Equal(t, int64(1609459200), ts.Unix())
			},
		},
		{
			name:  "Unix microseconds",
			input: "1609459200000000",
			check: func(t *testing.T, ts time.Time) {
				assert.Equal(t, int64(1609459200), ts.Unix())
			},
		},
		{name: "invalid format", input: "not-a-timestamp", wantErr: true},
		{name: "unix timestamp out of range", input: "99999999999999999999", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := ParseTimestamp(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantZero {
				assert.True(t, ts.IsZero())
				return
			}
			if tt.check != nil {
				tt.check(t, ts)
			}
		})
	}
}

func TestParseTimestampOrNow(t *testing.T) {
	before := time.Now()
	ts := ParseTimestampOrNow("invalid")
	after := time.Now()
	assert.False(t, ts.Before(before))
	assert.False(t, ts.After(after))

	ts = ParseTimestampOrNow("2021-01-01T00:00:00Z")
	assert.True(t, ts.Before(before))
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "simple decimal", input: "123.45", want: "123.45"},
		{name: "integer", input: "100", want: "100"},
		{name: "small decimal", input: "0.00000001", want: "0.00000001"},
		{name: "negative decimal", input: "-123.45", want: "-123.45"},
		{name: "empty string", input: "", want: "0"},
		{name: "null string", input: "null", want: "0"},
		{name: "whitespace", input: "  123.45  ", want: "123.45"},
		{name: "invalid decimal", input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecimal(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)))
		})
	}
}

func TestParseDecimalOrZero(t *testing.T) {
	assert.True(t, ParseDecimalOrZero("invalid").IsZero())
	assert.True(t, ParseDecimalOrZero("").IsZero())
	assert.True(t, ParseDecimalOrZero("123.45").Equal(decimal.RequireFromString("123.45")))
}

func TestMustParseDecimal(t *testing.T) {
	assert.NotPanics(t, func() {
		result := MustParseDecimal("123.45")
		assert.True(t, result.Equal(decimal.RequireFromString("123.45")))
	})
	assert.Panics(t, func() {
		MustParseDecimal("invalid")
	})
}

func TestFormatDecimal(t *testing.T) {
	assert.Equal(t, "123.45", FormatDecimal(decimal.RequireFromString("123.45")))
	assert.Equal(t, "0", FormatDecimal(decimal.Zero))
}

func TestParseOrderStatus(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  domain.OrderStatus
	}{
		{name: "open", input: "open", want: domain.OrderStatusOpen},
		{name: "new", input: "new", want: domain.OrderStatusOpen},
		{name: "OPEN uppercase", input: "OPEN", want: domain.OrderStatusOpen},
		{name: "filled", input: "filled", want: domain.OrderStatusFilled},
		{name: "done", input: "done", want: domain.OrderStatusFilled},
		{name: "cancelled", input: "cancelled", want: domain.OrderStatusCancelled},
		{name: "canceled", input: "canceled", want: domain.OrderStatusCancelled},
		{name: "rejected", input: "rejected", want: domain.OrderStatusRejected},
		{name: "failed", input: "failed", want: domain.OrderStatusRejected},
		{name: "partially_filled", input: "partially_filled", want: domain.OrderStatusPartiallyFilled},
		{name: "partial", input: "partial", want: domain.OrderStatusPartiallyFilled},
		{name: "whitespace", input: "  open  ", want: domain.OrderStatusOpen},
		{name: "mixed case", input: "OpEn", want: domain.OrderStatusOpen},
		{name: "unknown", input: "unknown_status", want: domain.OrderStatusUnknown},
		{name: "empty", input: "", want: domain.OrderStatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOrderStatus(tt.input))
		})
	}
}

func TestParseOrderType(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  domain.OrderType
	}{
		{name: "limit", input: "limit", want: domain.OrderTypeLimit},
		{name: "market", input: "market", want: domain.OrderTypeMarket},
		{name: "LIMIT uppercase", input: "LIMIT", want: domain.OrderTypeLimit},
		{name: "unknown falls back to limit", input: "unknown_type", want: domain.OrderTypeLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOrderType(tt.input))
		})
	}
}

func TestParseOrderSide(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    domain.OrderSide
		wantErr bool
	}{
		{name: "buy", input: "buy", want: domain.SideBuy},
		{name: "bid", input: "bid", want: domain.SideBuy},
		{name: "sell", input: "sell", want: domain.SideSell},
		{name: "ask", input: "ask", want: domain.SideSell},
		{name: "BUY uppercase", input: "BUY", want: domain.SideBuy},
		{name: "whitespace", input: "  buy  ", want: domain.SideBuy},
		{name: "unknown", input: "unknown", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOrderSide(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTimeInForce(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  domain.TimeInForce
	}{
		{name: "GTC", input: "GTC", want: domain.TimeInForceGTC},
		{name: "gtc lowercase", input: "gtc", want: domain.TimeInForceGTC},
		{name: "IOC", input: "IOC", want: domain.TimeInForceIOC},
		{name: "immediate_or_cancel", input: "immediate_or_cancel", want: domain.TimeInForceIOC},
		{name: "FOK", input: "FOK", want: domain.TimeInForceFOK},
		{name: "fill_or_kill", input: "fill_or_kill", want: domain.TimeInForceFOK},
		{name: "GTD", input: "GTD", want: domain.TimeInForceGTD},
		{name: "unknown falls back to GTC", input: "unknown", want: domain.TimeInForceGTC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTimeInForce(tt.input))
		})
	}
}

func BenchmarkParseTimestamp(b *testing.B) {
	timestamps := []string{"2021-01-01T00:00:00Z", "1609459200", "1609459200000"}
	for i := 0; i < b.N; i++ {
		for _, ts := range timestamps {
			_, _ = ParseTimestamp(ts)
		}
	}
}

func BenchmarkParseDecimal(b *testing.B) {
	decimals := []string{"123.45", "1.23e5", "0.00000001"}
	for i := 0; i < b.N; i++ {
		for _, dec := range decimals {
			_, _ = ParseDecimal(dec)
		}
	}
}
