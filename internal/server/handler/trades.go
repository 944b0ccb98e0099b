package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dualtrack/internal/domain"
	"github.com/alanyoungcy/dualtrack/internal/service"
)

// TradeService is what the trade endpoints need.
type TradeService interface {
	List(ctx context.Context) ([]service.TradeView, error)
	Get(ctx context.Context, id string) (service.TradeView, error)
	Create(ctx context.Context, in domain.TradeInput) (domain.Trade, error)
	Delete(ctx context.Context, id string) error
}

// TradeHandler serves the trade ledger endpoints.
type TradeHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trades TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{trades: trades, logger: logHandler(logger, "trades")}
}

// ListTrades returns all trades newest first, each with parent and children.
// GET /api/trades
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	views, err := h.trades.List(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to list trades")
		return
	}
	out := make([]tradeViewDTO, 0, len(views))
	for _, v := range views {
		out = append(out, toTradeViewDTO(v))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetTrade returns one trade.
// GET /api/trades/{id}
func (h *TradeHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	v, err := h.trades.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to get trade")
		return
	}
	writeJSON(w, http.StatusOK, toTradeViewDTO(v))
}

type createTradeRequest struct {
	ParentID         string          `json:"parentId"`
	Platform         string          `json:"platform"`
	Coin             string          `json:"coin"`
	Direction        string          `json:"direction"`
	InputAmount      decimal.Decimal `json:"inputAmount"`
	InputCurrency    string          `json:"inputCurrency"`
	StrikePrice      decimal.Decimal `json:"strikePrice"`
	ExpiryTime       string          `json:"expiryTime"`
	APR              decimal.Decimal `json:"apr"`
	Premium          decimal.Decimal `json:"premium"`
	ExerciseAmount   decimal.Decimal `json:"exerciseAmount"`
	ExerciseCurrency string          `json:"exerciseCurrency"`
}

func (req createTradeRequest) toInput() (domain.TradeInput, error) {
	coin, err := domain.ParseCoin(req.Coin)
	if err != nil {
		return domain.TradeInput{}, err
	}
	dir, err := domain.ParseDirection(req.Direction)
	if err != nil {
		return domain.TradeInput{}, err
	}
	expiry, err := domain.ParseExpiry(req.ExpiryTime)
	if err != nil {
		return domain.TradeInput{}, err
	}
	in := domain.TradeInput{
		Platform:       req.Platform,
		Coin:           coin,
		Direction:      dir,
		InputAmount:    req.InputAmount,
		StrikePrice:    req.StrikePrice,
		ExpiryTime:     expiry,
		APR:            req.APR,
		Premium:        req.Premium,
		ExerciseAmount: req.ExerciseAmount,
	}
	if id := strings.TrimSpace(req.ParentID); id != "" {
		in.ParentID = &id
	}
	if req.InputCurrency != "" {
		if in.InputCurrency, err = domain.ParseCurrency(req.InputCurrency); err != nil {
			return domain.TradeInput{}, err
		}
	}
	if req.ExerciseCurrency != "" {
		if in.ExerciseCurrency, err = domain.ParseCurrency(req.ExerciseCurrency); err != nil {
			return domain.TradeInput{}, err
		}
	}
	return in, nil
}

// CreateTrade records a new pending trade.
// POST /api/trades
func (h *TradeHandler) CreateTrade(w http.ResponseWriter, r *http.Request) {
	var req createTradeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := h.trades.Create(r.Context(), in)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to create trade")
		return
	}
	writeJSON(w, http.StatusCreated, toTradeDTO(t))
}

// DeleteTrade removes a trade. The id comes from the path or, for older
// clients, the id query parameter.
// DELETE /api/trades/{id}, DELETE /api/trades?id=
func (h *TradeHandler) DeleteTrade(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		id = r.URL.Query().Get("id")
	}
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "trade id is required")
		return
	}
	if err := h.trades.Delete(r.Context(), id); err != nil {
		writeDomainError(w, r, h.logger, err, "failed to delete trade")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
