package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dualtrack/internal/domain"
)

// AssetService is what the asset endpoints need.
type AssetService interface {
	List(ctx context.Context) ([]domain.Asset, error)
	Upsert(ctx context.Context, currency domain.Currency, amount decimal.Decimal) (domain.Asset, error)
}

// AssetHandler serves the initial-asset endpoints.
type AssetHandler struct {
	assets AssetService
	logger *slog.Logger
}

// NewAssetHandler creates an AssetHandler.
func NewAssetHandler(assets AssetService, logger *slog.Logger) *AssetHandler {
	return &AssetHandler{assets: assets, logger: logHandler(logger, "assets")}
}

// ListAssets returns every initial-asset record.
// GET /api/assets
func (h *AssetHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.assets.List(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to list assets")
		return
	}
	out := make([]assetDTO, 0, len(assets))
	for _, a := range assets {
		out = append(out, toAssetDTO(a))
	}
	writeJSON(w, http.StatusOK, out)
}

type upsertAssetRequest struct {
	Currency      string           `json:"currency"`
	InitialAmount *decimal.Decimal `json:"initialAmount"`
}

// UpsertAsset creates or replaces the record for one currency.
// POST /api/assets
func (h *AssetHandler) UpsertAsset(w http.ResponseWriter, r *http.Request) {
	var req upsertAssetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cur, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.InitialAmount == nil {
		writeError(w, http.StatusBadRequest, "initialAmount is required")
		return
	}

	asset, err := h.assets.Upsert(r.Context(), cur, *req.InitialAmount)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to save asset")
		return
	}
	writeJSON(w, http.StatusOK, toAssetDTO(asset))
}
