package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/dualtrack/internal/domain"
	"github.com/alanyoungcy/dualtrack/internal/valuation"
)

// recentEvents is how many settlement events and audit entries the debug
// view shows.
const recentEvents = 20

// LedgerSource summarises the trade ledger.
type LedgerSource interface {
	Ledger(ctx context.Context) (valuation.LedgerSummary, error)
}

// AuditLister reads the audit log.
type AuditLister interface {
	List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error)
}

// SnapshotLister lists archived ledger snapshots.
type SnapshotLister interface {
	Snapshots(ctx context.Context) ([]domain.BlobInfo, error)
}

// DebugHandler exposes the ledger internals used to check the holdings
// arithmetic by hand.
type DebugHandler struct {
	ledger    LedgerSource
	assets    AssetService
	bus       domain.SignalBus
	audit     AuditLister
	snapshots SnapshotLister
	logger    *slog.Logger
}

// NewDebugHandler creates a DebugHandler. bus, audit and snapshots may be
// nil.
func NewDebugHandler(
	ledger LedgerSource,
	assets AssetService,
	bus domain.SignalBus,
	audit AuditLister,
	snapshots SnapshotLister,
	logger *slog.Logger,
) *DebugHandler {
	return &DebugHandler{
		ledger:    ledger,
		assets:    assets,
		bus:       bus,
		audit:     audit,
		snapshots: snapshots,
		logger:    logHandler(logger, "debug"),
	}
}

type auditDTO struct {
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

type pendingDTO struct {
	ID            string           `json:"id"`
	Coin          domain.Currency  `json:"coin"`
	Direction     domain.Direction `json:"direction"`
	InputAmount   string           `json:"inputAmount"`
	InputCurrency domain.Currency  `json:"inputCurrency"`
	Status        string           `json:"status"`
}

// Debug returns counts, pending trades, locked principal, recent settlement
// events and archived snapshots.
// GET /api/debug
func (h *DebugHandler) Debug(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	summary, err := h.ledger.Ledger(ctx)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to read ledger")
		return
	}
	assets, err := h.assets.List(ctx)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to list assets")
		return
	}

	assetOut := make([]assetDTO, 0, len(assets))
	for _, a := range assets {
		assetOut = append(assetOut, toAssetDTO(a))
	}
	pending := make([]pendingDTO, 0, len(summary.Pending))
	for _, t := range summary.Pending {
		pending = append(pending, pendingDTO{
			ID:            t.ID,
			Coin:          t.Coin,
			Direction:     t.Direction,
			InputAmount:   t.InputAmount.String(),
			InputCurrency: t.InputCurrency,
			Status:        string(t.Status),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"assets":             assetOut,
		"totalTrades":        summary.PendingCount + summary.SettledCount,
		"pendingTradesCount": summary.PendingCount,
		"settledTradesCount": summary.SettledCount,
		"pendingTrades":      pending,
		"calculatedLocked":   summary.Locked,
		"recentSettlements":  h.recentSettlements(ctx),
		"recentAudit":        h.recentAudit(ctx),
		"snapshots":          h.listSnapshots(ctx),
	})
}

func (h *DebugHandler) recentSettlements(ctx context.Context) []domain.SettlementEvent {
	out := []domain.SettlementEvent{}
	if h.bus == nil {
		return out
	}
	msgs, err := h.bus.StreamLatest(ctx, domain.StreamSettlements, recentEvents)
	if err != nil {
		h.logger.WarnContext(ctx, "read settlement stream failed", slog.String("error", err.Error()))
		return out
	}
	for _, m := range msgs {
		var evt domain.SettlementEvent
		if json.Unmarshal(m.Payload, &evt) == nil {
			out = append(out, evt)
		}
	}
	return out
}

func (h *DebugHandler) recentAudit(ctx context.Context) []auditDTO {
	out := []auditDTO{}
	if h.audit == nil {
		return out
	}
	entries, err := h.audit.List(ctx, domain.ListOpts{Limit: recentEvents})
	if err != nil {
		h.logger.WarnContext(ctx, "read audit log failed", slog.String("error", err.Error()))
		return out
	}
	for _, e := range entries {
		out = append(out, auditDTO{Event: e.Event, Detail: e.Detail, CreatedAt: e.CreatedAt})
	}
	return out
}

func (h *DebugHandler) listSnapshots(ctx context.Context) []domain.BlobInfo {
	out := []domain.BlobInfo{}
	if h.snapshots == nil {
		return out
	}
	infos, err := h.snapshots.Snapshots(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "list snapshots failed", slog.String("error", err.Error()))
		return out
	}
	return append(out, infos...)
}
