package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/dualtrack/internal/domain"
)

// TradeView is a trade with its rollover neighbours resolved.
type TradeView struct {
	domain.Trade
	Parent   *domain.Trade
	Children []domain.Trade
}

// TradeService manages the trade ledger outside of settlement.
type TradeService struct {
	trades domain.TradeStore
	audit  domain.AuditStore
	newID  func() string
	now    func() time.Time
	logger *slog.Logger
}

// NewTradeService creates a TradeService. audit may be nil.
func NewTradeService(trades domain.TradeStore, audit domain.AuditStore, logger *slog.Logger) *TradeService {
	return &TradeService{
		trades: trades,
		audit:  audit,
		newID:  uuid.NewString,
		now:    time.Now,
		logger: logger.With(slog.String("component", "trade_service")),
	}
}

// List returns every trade, newest first, with parent and children attached.
func (s *TradeService) List(ctx context.Context) ([]TradeView, error) {
	trades, err := s.trades.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("trade_service: list: %w", err)
	}
	return buildViews(trades), nil
}

// Get returns one trade with its rollover neighbours.
func (s *TradeService) Get(ctx context.Context, id string) (TradeView, error) {
	trades, err := s.trades.List(ctx)
	if err != nil {
		return TradeView{}, fmt.Errorf("trade_service: get %s: %w", id, err)
	}
	for _, v := range buildViews(trades) {
		if v.ID == id {
			return v, nil
		}
	}
	return TradeView{}, fmt.Errorf("trade_service: get %s: %w", id, domain.ErrNotFound)
}

// Create validates and stores a new pending trade.
func (s *TradeService) Create(ctx context.Context, in domain.TradeInput) (domain.Trade, error) {
	if in.ParentID != nil && *in.ParentID == "" {
		in.ParentID = nil
	}
	if in.ParentID != nil {
		if _, err := s.trades.GetByID(ctx, *in.ParentID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Trade{}, fmt.Errorf("%w: parent trade %s does not exist", domain.ErrInvalidTrade, *in.ParentID)
			}
			return domain.Trade{}, fmt.Errorf("trade_service: load parent: %w", err)
		}
	}

	t, err := domain.NewTrade(s.newID(), in, s.now())
	if err != nil {
		return domain.Trade{}, err
	}
	if err := s.trades.Create(ctx, t); err != nil {
		return domain.Trade{}, fmt.Errorf("trade_service: create: %w", err)
	}

	s.logger.InfoContext(ctx, "trade created",
		slog.String("trade_id", t.ID),
		slog.String("platform", t.Platform),
		slog.String("coin", string(t.Coin)),
		slog.String("direction", string(t.Direction)),
		slog.Time("expiry", t.ExpiryTime),
	)
	s.auditLog(ctx, "trade.created", map[string]any{
		"trade_id":     t.ID,
		"platform":     t.Platform,
		"coin":         string(t.Coin),
		"direction":    string(t.Direction),
		"input_amount": t.InputAmount.String(),
		"strike_price": t.StrikePrice.String(),
		"expiry_time":  t.ExpiryTime.Format(time.RFC3339),
	})
	return t, nil
}

// Delete removes a trade. Its children are kept.
func (s *TradeService) Delete(ctx context.Context, id string) error {
	if err := s.trades.Delete(ctx, id); err != nil {
		return fmt.Errorf("trade_service: delete %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "trade deleted", slog.String("trade_id", id))
	s.auditLog(ctx, "trade.deleted", map[string]any{"trade_id": id})
	return nil
}

func (s *TradeService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func buildViews(trades []domain.Trade) []TradeView {
	byID := make(map[string]domain.Trade, len(trades))
	for _, t := range trades {
		byID[t.ID] = t
	}
	children := domain.ChildrenOf(trades)

	views := make([]TradeView, 0, len(trades))
	for _, t := range trades {
		v := TradeView{Trade: t, Children: children[t.ID]}
		if t.ParentID != nil {
			if p, ok := byID[*t.ParentID]; ok {
				v.Parent = &p
			}
		}
		views = append(views, v)
	}
	return views
}
