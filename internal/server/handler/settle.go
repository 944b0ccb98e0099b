package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/dualtrack/internal/domain"
)

// Settler settles a single trade on the user's decision.
type Settler interface {
	Settle(ctx context.Context, tradeID string, exercised bool) (domain.Trade, error)
}

// SettleHandler serves manual settlement.
type SettleHandler struct {
	settler Settler
	logger  *slog.Logger
}

// NewSettleHandler creates a SettleHandler.
func NewSettleHandler(settler Settler, logger *slog.Logger) *SettleHandler {
	return &SettleHandler{settler: settler, logger: logHandler(logger, "settle")}
}

type settleRequest struct {
	TradeID   string `json:"tradeId"`
	Exercised *bool  `json:"exercised"`
}

// Settle applies the caller's exercise decision to a pending trade.
// POST /api/settle
func (h *SettleHandler) Settle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.TradeID) == "" || req.Exercised == nil {
		writeError(w, http.StatusBadRequest, "tradeId and exercised are required")
		return
	}

	t, err := h.settler.Settle(r.Context(), req.TradeID, *req.Exercised)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to settle trade")
		return
	}
	writeJSON(w, http.StatusOK, toTradeDTO(t))
}
