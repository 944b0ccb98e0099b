package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dualtrack/internal/domain"
)

// AssetStore implements domain.AssetStore using PostgreSQL.
type AssetStore struct {
	pool *pgxpool.Pool
}

// NewAssetStore creates a new AssetStore backed by the given connection pool.
func NewAssetStore(pool *pgxpool.Pool) *AssetStore {
	return &AssetStore{pool: pool}
}

// List returns every asset record ordered by currency.
func (s *AssetStore) List(ctx context.Context) ([]domain.Asset, error) {
	const query = `SELECT currency, initial_amount::text, updated_at FROM assets ORDER BY currency`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list assets rows: %w", err)
	}
	return assets, nil
}

// Upsert inserts or replaces the asset for its currency.
func (s *AssetStore) Upsert(ctx context.Context, a domain.Asset) (domain.Asset, error) {
	const query = `
		INSERT INTO assets (currency, initial_amount, updated_at)
		VALUES ($1, $2::numeric, NOW())
		ON CONFLICT (currency) DO UPDATE SET
			initial_amount = EXCLUDED.initial_amount,
			updated_at = NOW()
		RETURNING currency, initial_amount::text, updated_at`

	out, err := scanAsset(s.pool.QueryRow(ctx, query, string(a.Currency), a.InitialAmount.String()))
	if err != nil {
		return domain.Asset{}, fmt.Errorf("postgres: upsert asset %s: %w", a.Currency, err)
	}
	return out, nil
}

func scanAsset(scanner interface{ Scan(dest ...any) error }) (domain.Asset, error) {
	var a domain.Asset
	var currency, amount string
	if err := scanner.Scan(&currency, &amount, &a.UpdatedAt); err != nil {
		return domain.Asset{}, err
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("parse initial_amount %q: %w", amount, err)
	}
	a.Currency = domain.Currency(currency)
	a.InitialAmount = amt
	return a, nil
}

var _ domain.AssetStore = (*AssetStore)(nil)
