package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/arbiq/enginecore/internal/domain"
)

// dbConn is the slice of *pgxpool.Pool's method set PostgresRepository
// actually uses. Narrowing to an interface lets tests substitute a fake
// connection without a live database; *pgxpool.Pool satisfies it as-is.
type dbConn interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// PostgresRepository is the durable Repository backend. Mode governs which
// logical partition ("table family") writes land in; it never changes the
// shape of a query, only the table name prefix.
type PostgresRepository struct {
	conn dbConn
	mode Mode
	log  *zap.SugaredLogger
}

// NewPostgresRepository constructs a PostgresRepository bound to an
// already-connected pool. mode must be Valid(); the caller resolves
// journal.dsn and builds the pool before calling in.
func NewPostgresRepository(conn dbConn, mode Mode, log *zap.SugaredLogger) (*PostgresRepository, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("journal: invalid mode %q", mode)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &PostgresRepository{conn: conn, mode: mode, log: log}, nil
}

// table returns the mode-qualified table name. dry-run never reaches a
// query, so it has no table; realistic and paper partition into separate
// tables so simulated runs never contaminate live history.
func (r *PostgresRepository) table(base string) string {
	if r.mode == ModePaper {
		return "paper_" + base
	}
	return base
}

func (r *PostgresRepository) RecordOrder(ctx context.Context, order *domain.Order) error {
	if r.mode == ModeDryRun {
		r.log.Debugw("dry-run: skipping order journal write", "venue", order.Venue, "venue_order_id", order.VenueOrderID, "status", order.Status)
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			venue, venue_order_id, symbol, side, type, time_in_force,
			quantity, limit_price, post_only, status,
			filled_quantity, avg_fill_price, observed_fee,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`, r.table("orders"))

	_, err := r.conn.Exec(ctx, query,
		order.Venue,
		order.VenueOrderID,
		order.Symbol.String(),
		order.Side,
		order.Type,
		order.TimeInForce,
		order.Quantity,
		order.LimitPrice,
		order.PostOnly,
		order.Status,
		order.FilledQuantity,
		order.AvgFillPrice,
		order.ObservedFee,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("journal: record order: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RecordTrade(ctx context.Context, trade *domain.Trade) error {
	if r.mode == ModeDryRun {
		r.log.Debugw("dry-run: skipping trade journal write", "symbol", trade.Symbol.String(), "outcome", trade.Outcome)
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, symbol, buy_venue, sell_venue, matched_quantity,
			buy_price, sell_price, buy_fee, sell_fee, net_profit_quote,
			outcome, exposure_side, exposure_qty, exposure_note, executed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`, r.table("trades"))

	_, err := r.conn.Exec(ctx, query,
		trade.ID,
		trade.Symbol.String(),
		trade.BuyVenue,
		trade.SellVenue,
		trade.MatchedQuantity,
		trade.BuyPrice,
		trade.SellPrice,
		trade.BuyFee,
		trade.SellFee,
		trade.NetProfitQuote,
		trade.Outcome,
		trade.ExposureSide,
		trade.ExposureQty,
		trade.ExposureNote,
		trade.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("journal: record trade: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RecordFeatures(ctx context.Context, snapshot FeatureSnapshot) error {
	if r.mode == ModeDryRun {
		r.log.Debugw("dry-run: skipping feature journal write", "symbol", snapshot.Symbol.String(), "venue", snapshot.Venue)
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			symbol, venue, side, quantity, price,
			used_maker, confidence, predicted_fill_price, recorded_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`, r.table("advisor_features"))

	_, err := r.conn.Exec(ctx, query,
		snapshot.Symbol.String(),
		snapshot.Venue,
		snapshot.Side,
		snapshot.Quantity,
		snapshot.Price,
		snapshot.UsedMaker,
		snapshot.Confidence,
		snapshot.PredictedFillPrice,
		snapshot.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("journal: record features: %w", err)
	}
	return nil
}

// ListTrades is the operator-tooling read surface. It is never called by the
// detector or executor, only by reporting code built outside the core.
func (r *PostgresRepository) ListTrades(ctx context.Context, filter TradeFilter) ([]*domain.Trade, error) {
	query := fmt.Sprintf(`
		SELECT id, symbol, buy_venue, sell_venue, matched_quantity,
			buy_price, sell_price, buy_fee, sell_fee, net_profit_quote,
			outcome, exposure_side, exposure_qty, exposure_note, executed_at
		FROM %s
		WHERE ($1::text[] IS NULL OR symbol = ANY($1))
			AND ($2 = '' OR buy_venue = $2 OR sell_venue = $2)
			AND ($3 = '' OR outcome = $3)
			AND ($4::timestamptz IS NULL OR executed_at >= $4)
			AND ($5::timestamptz IS NULL OR executed_at < $5)
		ORDER BY executed_at DESC
	`, r.table("trades"))

	args := []interface{}{
		nullableStrings(filter.Symbols),
		filter.Venue,
		filter.Outcome,
		nullableTime(filter.Range.Start),
		nullableTime(filter.Range.End),
	}
	if filter.Pagination.HasLimit() {
		query += fmt.Sprintf(" LIMIT %d", filter.Pagination.Limit)
	}
	if filter.Pagination.HasOffset() {
		query += fmt.Sprintf(" OFFSET %d", filter.Pagination.Offset)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: list trades: %w", err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		var t domain.Trade
		var symbolText string
		if err := rows.Scan(
			&t.ID, &symbolText, &t.BuyVenue, &t.SellVenue, &t.MatchedQuantity,
			&t.BuyPrice, &t.SellPrice, &t.BuyFee, &t.SellFee, &t.NetProfitQuote,
			&t.Outcome, &t.ExposureSide, &t.ExposureQty, &t.ExposureNote, &t.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("journal: scan trade: %w", err)
		}
		trades = append(trades, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate trades: %w", err)
	}

	return trades, nil
}

func nullableStrings(ss []string) interface{} {
	if len(ss) == 0 {
		return nil
	}
	return ss
}

func nullableTime(t interface{ IsZero() bool }) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
