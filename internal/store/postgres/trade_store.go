package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dualtrack/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Amount columns are read as text and parsed with decimal to keep full
// NUMERIC precision.
const tradeSelectCols = `id, parent_id, platform, coin, direction,
	input_amount::text, input_currency, strike_price::text, expiry_time,
	apr::text, premium::text, exercise_amount::text, exercise_currency,
	status, exercised, settlement_price::text, output_amount::text,
	output_currency, settled_at, created_at`

// Create inserts a new pending trade.
func (s *TradeStore) Create(ctx context.Context, t domain.Trade) error {
	const query = `
		INSERT INTO trades (
			id, parent_id, platform, coin, direction,
			input_amount, input_currency, strike_price, expiry_time,
			apr, premium, exercise_amount, exercise_currency,
			status, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6::numeric, $7, $8::numeric, $9,
			$10::numeric, $11::numeric, $12::numeric, $13,
			'pending', $14
		)`

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.ParentID, t.Platform, string(t.Coin), string(t.Direction),
		t.InputAmount.String(), string(t.InputCurrency), t.StrikePrice.String(), t.ExpiryTime,
		t.APR.String(), t.Premium.String(), t.ExerciseAmount.String(), string(t.ExerciseCurrency),
		t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create trade %s: %w", t.ID, err)
	}
	return nil
}

// GetByID returns a single trade. Returns domain.ErrNotFound if absent.
func (s *TradeStore) GetByID(ctx context.Context, id string) (domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE id = $1`

	t, err := scanTrade(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trade{}, fmt.Errorf("postgres: get trade %s: %w", id, domain.ErrNotFound)
		}
		return domain.Trade{}, fmt.Errorf("postgres: get trade %s: %w", id, err)
	}
	return t, nil
}

// List returns all trades, newest first.
func (s *TradeStore) List(ctx context.Context) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades ORDER BY created_at DESC, id`
	return s.query(ctx, "list trades", query)
}

// ListDue returns pending trades whose expiry is at or before now, oldest
// expiry first.
func (s *TradeStore) ListDue(ctx context.Context, now time.Time) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + `
		FROM trades
		WHERE status = 'pending' AND expiry_time <= $1
		ORDER BY expiry_time, id`
	return s.query(ctx, "list due trades", query, now)
}

// ListCreatedBefore returns trades created strictly before the cutoff.
func (s *TradeStore) ListCreatedBefore(ctx context.Context, before time.Time) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE created_at < $1 ORDER BY created_at`
	return s.query(ctx, "list trades before", query, before)
}

// Delete removes a trade. Children keep their rows; their parent_id is
// cleared by the foreign key.
func (s *TradeStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trades WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete trade %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: delete trade %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Settle transitions a pending trade to settled. The update only matches a
// row still in pending status, so of two concurrent callers exactly one
// succeeds.
func (s *TradeStore) Settle(ctx context.Context, id string, st domain.Settlement) (domain.Trade, error) {
	query := `
		UPDATE trades SET
			status = 'settled',
			exercised = $2,
			settlement_price = $3::numeric,
			output_amount = $4::numeric,
			output_currency = $5,
			settled_at = $6
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + tradeSelectCols

	t, err := scanTrade(s.pool.QueryRow(ctx, query,
		id, st.Exercised, st.SettlementPrice.String(), st.OutputAmount.String(),
		string(st.OutputCurrency), st.SettledAt,
	))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Trade{}, fmt.Errorf("postgres: settle trade %s: %w", id, err)
	}

	// No pending row matched: either the trade is gone or already settled.
	var status string
	err = s.pool.QueryRow(ctx, `SELECT status FROM trades WHERE id = $1`, id).Scan(&status)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.Trade{}, fmt.Errorf("postgres: settle trade %s: %w", id, domain.ErrNotFound)
	case err != nil:
		return domain.Trade{}, fmt.Errorf("postgres: settle trade %s status check: %w", id, err)
	}
	return domain.Trade{}, fmt.Errorf("postgres: settle trade %s (status %s): %w", id, status, domain.ErrAlreadySettled)
}

func (s *TradeStore) query(ctx context.Context, op, query string, args ...any) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: %s scan: %w", op, err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s rows: %w", op, err)
	}
	return trades, nil
}

func scanTrade(scanner interface{ Scan(dest ...any) error }) (domain.Trade, error) {
	var t domain.Trade
	var coin, direction, inputCur, exerciseCur, status string
	var inputAmt, strike, apr, premium, exerciseAmt string
	var settlePrice, outputAmt, outputCur *string

	err := scanner.Scan(
		&t.ID, &t.ParentID, &t.Platform, &coin, &direction,
		&inputAmt, &inputCur, &strike, &t.ExpiryTime,
		&apr, &premium, &exerciseAmt, &exerciseCur,
		&status, &t.Exercised, &settlePrice, &outputAmt,
		&outputCur, &t.SettledAt, &t.CreatedAt,
	)
	if err != nil {
		return domain.Trade{}, err
	}

	t.Coin = domain.Currency(coin)
	t.Direction = domain.Direction(direction)
	t.InputCurrency = domain.Currency(inputCur)
	t.ExerciseCurrency = domain.Currency(exerciseCur)
	t.Status = domain.TradeStatus(status)
	t.ExpiryTime = t.ExpiryTime.UTC()

	p := decimalParser{}
	t.InputAmount = p.parse("input_amount", inputAmt)
	t.StrikePrice = p.parse("strike_price", strike)
	t.APR = p.parse("apr", apr)
	t.Premium = p.parse("premium", premium)
	t.ExerciseAmount = p.parse("exercise_amount", exerciseAmt)
	t.SettlementPrice = p.parseOpt("settlement_price", settlePrice)
	t.OutputAmount = p.parseOpt("output_amount", outputAmt)
	if outputCur != nil {
		c := domain.Currency(*outputCur)
		t.OutputCurrency = &c
	}
	if p.err != nil {
		return domain.Trade{}, p.err
	}
	return t, nil
}

// decimalParser keeps the first parse error so a row can be decoded
// field by field.
type decimalParser struct {
	err error
}

func (p *decimalParser) parse(col, s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("parse %s %q: %w", col, s, err)
	}
	return d
}

func (p *decimalParser) parseOpt(col string, s *string) *decimal.Decimal {
	if s == nil {
		return nil
	}
	d := p.parse(col, *s)
	return &d
}

var _ domain.TradeStore = (*TradeStore)(nil)
