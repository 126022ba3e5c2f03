package normalizer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbiq/enginecore/internal/domain"
)

// Timestamp Conversion Utilities

// ParseTimestamp attempts to parse a timestamp string in various common formats.
// Handles RFC3339, ISO8601, and Unix timestamps.
//
// Supported formats:
//   - RFC3339: "2006-01-02T15:04:05Z07:00"
//   - ISO8601: "2006-01-02T15:04:05.999Z"
//   - Unix seconds: "1609459200"
//   - Unix milliseconds: "1609459200000"
//   - Unix microseconds: "1609459200000000"
//
// Returns the zero time for empty strings.
// Returns an error for malformed or unparseable timestamps.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return time.Time{}, nil
	}

	if isNumeric(s) {
		return parseUnixTimestamp(s)
	}

	formats := []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999Z",
		"2006-01-02T15:04:05.999999Z",
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05.999Z07:00",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse timestamp: %q", s)
}

// ParseTimestampOrNow parses a timestamp string, returning the current time if
// parsing fails. Useful for non-critical timestamp fields where a default is
// acceptable.
func ParseTimestampOrNow(s string) time.Time {
	t, err := ParseTimestamp(s)
	if err != nil || t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

// parseUnixTimestamp parses a Unix timestamp string that could be in seconds,
// milliseconds, or microseconds.
func parseUnixTimestamp(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid unix timestamp: %w", err)
	}

	var t time.Time
	switch {
	case n < 1e11: // seconds
		t = time.Unix(n, 0)
	case n < 1e14: // milliseconds
		t = time.Unix(n/1000, (n%1000)*1e6)
	case n < 1e17: // microseconds
		t = time.Unix(n/1e6, (n%1e6)*1e3)
	default:
		return time.Time{}, fmt.Errorf("unix timestamp out of reasonable range: %d", n)
	}

	return t.UTC(), nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '-' {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Decimal Conversion Utilities
//
// All monetary and quantity fields go through decimal.Decimal, never float64:
// floats lose precision on the sub-satoshi sizes and sub-cent prices venues
// report, and that precision loss compounds across the spread computations in
// internal/detector.

// ParseDecimal converts a string to a decimal.Decimal, preserving full precision
// regardless of scientific notation or trailing zeros in the source.
//
// Returns decimal.Zero for empty or "null" input.
// Returns an error for malformed decimal strings.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return decimal.Zero, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal: %w", err)
	}
	return d, nil
}

// ParseDecimalOrZero parses a decimal string, returning decimal.Zero if parsing
// fails. Useful for optional numeric fields where a default is acceptable.
func ParseDecimalOrZero(s string) decimal.Decimal {
	d, err := ParseDecimal(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// MustParseDecimal parses a decimal string and panics if parsing fails. Only
// for use in tests or where the input is guaranteed valid.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := ParseDecimal(s)
	if err != nil {
		panic(fmt.Sprintf("MustParseDecimal: %v", err))
	}
	return d
}

// FormatDecimal renders a decimal.Decimal without scientific notation or
// trailing zeros.
func FormatDecimal(d decimal.Decimal) string {
	return d.String()
}

// Enum Mapping Utilities

// ParseOrderStatus converts a venue-specific order status string to a domain
// OrderStatus.
//
// Common mappings (case-insensitive):
//   - "open", "new", "active", "pending" -> OrderStatusOpen
//   - "filled", "done", "closed" -> OrderStatusFilled
//   - "cancelled", "canceled" -> OrderStatusCancelled
//   - "rejected", "failed" -> OrderStatusRejected
//   - "partially_filled", "partial" -> OrderStatusPartiallyFilled
//
// Returns OrderStatusUnknown for unrecognized statuses.
func ParseOrderStatus(s string) domain.OrderStatus {
	s = normalizeToken(s)

	switch s {
	case "open", "new", "active", "pending", "accepted":
		return domain.OrderStatusOpen
	case "filled", "done", "closed", "complete":
		return domain.OrderStatusFilled
	case "cancelled", "canceled", "cancelled_by_user", "canceled_by_user":
		return domain.OrderStatusCancelled
	case "rejected", "failed", "invalid", "expired":
		return domain.OrderStatusRejected
	case "partially_filled", "partial", "partial_fill", "partially_filled_active":
		return domain.OrderStatusPartiallyFilled
	default:
		return domain.OrderStatusUnknown
	}
}

// ParseOrderType converts a venue-specific order type string to a domain
// OrderType. Returns OrderTypeLimit for unrecognized non-market types, since
// a resting order with a price is the conservative default.
func ParseOrderType(s string) domain.OrderType {
	s = normalizeToken(s)

	switch s {
	case "market":
		return domain.OrderTypeMarket
	default:
		return domain.OrderTypeLimit
	}
}

// ParseOrderSide converts a venue-specific order side string to a domain
// OrderSide.
func ParseOrderSide(s string) (domain.OrderSide, error) {
	s = normalizeToken(s)

	switch s {
	case "buy", "bid":
		return domain.SideBuy, nil
	case "sell", "ask":
		return domain.SideSell, nil
	default:
		return "", fmt.Errorf("unrecognized order side: %q", s)
	}
}

// ParseTimeInForce converts a venue-specific time-in-force string to a domain
// TimeInForce. Returns TimeInForceGTC for unrecognized values, matching most
// venues' own default.
func ParseTimeInForce(s string) domain.TimeInForce {
	s = normalizeToken(s)

	switch s {
	case "ioc", "immediate_or_cancel":
		return domain.TimeInForceIOC
	case "fok", "fill_or_kill":
		return domain.TimeInForceFOK
	case "gtd", "good_til_date", "good_til_time":
		return domain.TimeInForceGTD
	default:
		return domain.TimeInForceGTC
	}
}

func normalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
