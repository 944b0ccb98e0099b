package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/dualtrack/internal/domain"
	"github.com/alanyoungcy/dualtrack/internal/service"
)

// StatsProvider computes a valuation snapshot. It never fails.
type StatsProvider interface {
	ComputeStats(ctx context.Context) service.Stats
}

// StatsHandler serves holdings, profit and prices.
type StatsHandler struct {
	stats  StatsProvider
	oracle domain.PriceOracle
	logger *slog.Logger
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(stats StatsProvider, oracle domain.PriceOracle, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, oracle: oracle, logger: logHandler(logger, "stats")}
}

// GetStats always answers 200; degraded snapshots carry priceDegraded or
// error.
// GET /api/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toStatsDTO(h.stats.ComputeStats(r.Context())))
}

// GetPrice returns the live BTC and ETH quote, 503 when none is available.
// GET /api/price
func (h *StatsHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	p, err := h.oracle.CurrentPrices(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to fetch prices")
		return
	}
	writeJSON(w, http.StatusOK, toPricesDTO(p))
}
