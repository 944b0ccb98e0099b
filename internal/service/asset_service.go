package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dualtrack/internal/domain"
)

// AssetService manages the initial-asset records.
type AssetService struct {
	assets domain.AssetStore
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewAssetService creates an AssetService. audit may be nil.
func NewAssetService(assets domain.AssetStore, audit domain.AuditStore, logger *slog.Logger) *AssetService {
	return &AssetService{
		assets: assets,
		audit:  audit,
		logger: logger.With(slog.String("component", "asset_service")),
	}
}

// List returns every asset record.
func (s *AssetService) List(ctx context.Context) ([]domain.Asset, error) {
	assets, err := s.assets.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("asset_service: list: %w", err)
	}
	return assets, nil
}

// Upsert sets the initial amount for currency.
func (s *AssetService) Upsert(ctx context.Context, currency domain.Currency, amount decimal.Decimal) (domain.Asset, error) {
	a := domain.Asset{Currency: currency, InitialAmount: amount}
	if err := a.Validate(); err != nil {
		return domain.Asset{}, err
	}
	out, err := s.assets.Upsert(ctx, a)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("asset_service: upsert %s: %w", currency, err)
	}

	s.logger.InfoContext(ctx, "asset updated",
		slog.String("currency", string(currency)),
		slog.String("initial_amount", amount.String()),
	)
	if s.audit != nil {
		if err := s.audit.Log(ctx, "asset.upserted", map[string]any{
			"currency":       string(currency),
			"initial_amount": amount.String(),
		}); err != nil {
			s.logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
		}
	}
	return out, nil
}
