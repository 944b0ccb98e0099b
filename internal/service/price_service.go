package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/dualtrack/internal/domain"
	"github.com/alanyoungcy/dualtrack/internal/oracle"
)

// OracleRecorder receives per-source request outcomes.
type OracleRecorder interface {
	RecordOracleRequest(source, result string)
}

// PriceService implements domain.PriceOracle over an ordered list of live
// sources. The first source that answers wins; its quote is cached and
// broadcast. When every source fails, a cached quote no older than
// staleAfter is served instead.
type PriceService struct {
	sources    []oracle.Source
	cache      domain.PriceCache
	bus        domain.SignalBus
	staleAfter time.Duration
	metrics    OracleRecorder
	logger     *slog.Logger
}

// NewPriceService creates a PriceService. cache, bus and metrics may be nil.
func NewPriceService(
	sources []oracle.Source,
	cache domain.PriceCache,
	bus domain.SignalBus,
	staleAfter time.Duration,
	metrics OracleRecorder,
	logger *slog.Logger,
) *PriceService {
	return &PriceService{
		sources:    sources,
		cache:      cache,
		bus:        bus,
		staleAfter: staleAfter,
		metrics:    metrics,
		logger:     logger.With(slog.String("component", "price_service")),
	}
}

// CurrentPrices returns live BTC and ETH prices, else a cached quote no
// older than staleAfter with Source domain.PriceSourceCache, else
// domain.ErrPriceUnavailable.
func (s *PriceService) CurrentPrices(ctx context.Context) (domain.Prices, error) {
	var errs []error
	for _, src := range s.sources {
		p, err := src.CurrentPrices(ctx)
		if err != nil {
			s.record(src.Name(), "error")
			s.logger.WarnContext(ctx, "price source failed",
				slog.String("source", src.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
			continue
		}
		s.record(src.Name(), "ok")
		s.remember(ctx, p)
		return p, nil
	}

	if p, ok := s.cached(ctx); ok {
		s.record(domain.PriceSourceCache, "ok")
		s.logger.InfoContext(ctx, "serving cached prices",
			slog.Time("fetched_at", p.FetchedAt),
		)
		return p, nil
	}
	s.record(domain.PriceSourceCache, "miss")

	return domain.Prices{}, fmt.Errorf("price_service: %w: %w", domain.ErrPriceUnavailable, errors.Join(errs...))
}

func (s *PriceService) remember(ctx context.Context, p domain.Prices) {
	if s.cache != nil {
		for _, coin := range []domain.Currency{domain.BTC, domain.ETH} {
			if err := s.cache.SetPrice(ctx, coin, p.Of(coin), p.FetchedAt); err != nil {
				s.logger.WarnContext(ctx, "cache price failed",
					slog.String("coin", string(coin)),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	if s.bus != nil {
		evt, _ := json.Marshal(domain.PriceEvent{
			BTC:       p.BTC.String(),
			ETH:       p.ETH.String(),
			Source:    p.Source,
			FetchedAt: p.FetchedAt,
		})
		if err := s.bus.Publish(ctx, domain.ChannelPrices, evt); err != nil {
			s.logger.WarnContext(ctx, "publish prices failed", slog.String("error", err.Error()))
		}
	}
}

func (s *PriceService) cached(ctx context.Context) (domain.Prices, bool) {
	if s.cache == nil || s.staleAfter <= 0 {
		return domain.Prices{}, false
	}
	btc, btcTS, err := s.cache.GetPrice(ctx, domain.BTC)
	if err != nil {
		return domain.Prices{}, false
	}
	eth, ethTS, err := s.cache.GetPrice(ctx, domain.ETH)
	if err != nil {
		return domain.Prices{}, false
	}
	oldest := btcTS
	if ethTS.Before(oldest) {
		oldest = ethTS
	}
	if time.Since(oldest) > s.staleAfter {
		return domain.Prices{}, false
	}
	p := domain.Prices{BTC: btc, ETH: eth, Source: domain.PriceSourceCache, FetchedAt: oldest}
	return p, p.Usable()
}

func (s *PriceService) record(source, result string) {
	if s.metrics != nil {
		s.metrics.RecordOracleRequest(source, result)
	}
}

var _ domain.PriceOracle = (*PriceService)(nil)
