package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/dualtrack/internal/domain"
)

// Scanner settles every due trade.
type Scanner interface {
	ScanAndSettle(ctx context.Context, now time.Time) ([]domain.Trade, error)
}

// ScanGauge records the size of the latest scan.
type ScanGauge interface {
	SetLastScanSettled(n int)
}

// CronHandler lets an external scheduler trigger a settlement scan.
type CronHandler struct {
	scanner Scanner
	gauge   ScanGauge
	logger  *slog.Logger
}

// NewCronHandler creates a CronHandler. gauge may be nil.
func NewCronHandler(scanner Scanner, gauge ScanGauge, logger *slog.Logger) *CronHandler {
	return &CronHandler{scanner: scanner, gauge: gauge, logger: logHandler(logger, "cron")}
}

type cronResponse struct {
	Success   bool       `json:"success"`
	Timestamp time.Time  `json:"timestamp"`
	Settled   int        `json:"settled"`
	Results   []tradeDTO `json:"results"`
	Error     string     `json:"error,omitempty"`
}

// RunScan runs one settlement scan now.
// GET /api/cron, POST /api/cron
func (h *CronHandler) RunScan(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	settled, err := h.scanner.ScanAndSettle(r.Context(), now)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "settlement scan failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, cronResponse{
			Timestamp: now,
			Results:   []tradeDTO{},
			Error:     "settlement scan failed",
		})
		return
	}
	if h.gauge != nil {
		h.gauge.SetLastScanSettled(len(settled))
	}
	writeJSON(w, http.StatusOK, cronResponse{
		Success:   true,
		Timestamp: now,
		Settled:   len(settled),
		Results:   toTradeDTOs(settled),
	})
}
