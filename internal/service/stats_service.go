package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dualtrack/internal/domain"
	"github.com/alanyoungcy/dualtrack/internal/valuation"
)

// StatsRecorder receives valuation counters.
type StatsRecorder interface {
	RecordStatsDegraded()
}

// Stats is one valuation snapshot.
type Stats struct {
	Prices   domain.Prices
	Holdings valuation.Holdings
	Profit   valuation.Report
	// NetWorthUSDT is the available balance valued at live prices.
	NetWorthUSDT  decimal.Decimal
	Anchor        valuation.Anchor
	PriceDegraded bool
	// PriceStale is set when Prices were replayed from the cache because
	// every live source failed.
	PriceStale bool
	// Error is set when the ledger could not be read; every figure is zero.
	Error       string
	GeneratedAt time.Time
}

// StatsService computes holdings and profit from the ledger and live prices.
type StatsService struct {
	assets  domain.AssetStore
	trades  domain.TradeStore
	oracle  domain.PriceOracle
	anchor  valuation.Anchor
	metrics StatsRecorder
	logger  *slog.Logger
}

// NewStatsService creates a StatsService. metrics may be nil.
func NewStatsService(
	assets domain.AssetStore,
	trades domain.TradeStore,
	oracle domain.PriceOracle,
	anchor valuation.Anchor,
	metrics StatsRecorder,
	logger *slog.Logger,
) *StatsService {
	return &StatsService{
		assets:  assets,
		trades:  trades,
		oracle:  oracle,
		anchor:  anchor,
		metrics: metrics,
		logger:  logger.With(slog.String("component", "stats_service")),
	}
}

// ComputeStats never fails: an unavailable oracle values coins at zero and
// sets PriceDegraded, and an unreadable ledger yields an all-zero snapshot
// with Error set.
func (s *StatsService) ComputeStats(ctx context.Context) Stats {
	now := time.Now().UTC()
	prices, degraded := s.livePrices(ctx)

	assets, trades, err := s.load(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "stats ledger read failed", slog.String("error", err.Error()))
		return zeroStats(s.anchor, degraded, err, now)
	}

	h := valuation.Reconstruct(assets, trades)
	for _, a := range h.Anomalies {
		s.logger.ErrorContext(ctx, "ledger invariant violated", slog.String("detail", a))
	}

	return Stats{
		Prices:        prices,
		Holdings:      h,
		Profit:        valuation.Compute(assets, h, trades, prices, s.anchor),
		NetWorthUSDT:  valuation.ValueUSDT(h.Available, prices),
		Anchor:        s.anchor,
		PriceDegraded: degraded,
		PriceStale:    prices.Cached(),
		GeneratedAt:   now,
	}
}

// Ledger returns a diagnostic summary of the trade ledger.
func (s *StatsService) Ledger(ctx context.Context) (valuation.LedgerSummary, error) {
	trades, err := s.trades.List(ctx)
	if err != nil {
		return valuation.LedgerSummary{}, fmt.Errorf("stats_service: list trades: %w", err)
	}
	return valuation.Summarize(trades), nil
}

func (s *StatsService) livePrices(ctx context.Context) (domain.Prices, bool) {
	p, err := s.oracle.CurrentPrices(ctx)
	if err == nil && p.Usable() {
		return p, false
	}
	if err != nil {
		s.logger.WarnContext(ctx, "stats using zero prices", slog.String("error", err.Error()))
	} else {
		s.logger.WarnContext(ctx, "stats using zero prices, oracle returned non-positive quote")
	}
	if s.metrics != nil {
		s.metrics.RecordStatsDegraded()
	}
	return domain.Prices{BTC: decimal.Zero, ETH: decimal.Zero, Source: "degraded"}, true
}

func (s *StatsService) load(ctx context.Context) ([]domain.Asset, []domain.Trade, error) {
	assets, err := s.assets.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("stats_service: list assets: %w", err)
	}
	trades, err := s.trades.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("stats_service: list trades: %w", err)
	}
	return assets, trades, nil
}

func zeroStats(anchor valuation.Anchor, degraded bool, err error, now time.Time) Stats {
	zero := func(unit domain.Currency) valuation.Numeraire {
		return valuation.Numeraire{Unit: unit}
	}
	return Stats{
		Holdings: valuation.Holdings{
			Available:           valuation.NewBalances(),
			Locked:              valuation.NewBalances(),
			Total:               valuation.NewBalances(),
			ExercisedProjection: valuation.NewBalances(),
		},
		Profit: valuation.Report{
			USDT:             zero(domain.USDT),
			ETH:              zero(domain.ETH),
			BTC:              zero(domain.BTC),
			ProfitByPlatform: map[string]decimal.Decimal{},
		},
		Anchor:        anchor,
		PriceDegraded: degraded,
		Error:         err.Error(),
		GeneratedAt:   now,
	}
}
