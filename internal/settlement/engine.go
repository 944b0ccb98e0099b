package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dualtrack/internal/domain"
)

// Settlement triggers, used for logging, events and metrics.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

const scanLockKey = "settlement:scan"

// Recorder receives settlement counters.
type Recorder interface {
	RecordSettlement(trigger string, exercised bool)
	RecordSettlementFailure(reason string)
}

// Notifier delivers operator notifications.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Engine settles pending trades, either with a caller-supplied outcome or by
// comparing the live price against the strike once a trade has expired.
type Engine struct {
	trades   domain.TradeStore
	oracle   domain.PriceOracle
	locks    domain.LockManager
	lockTTL  time.Duration
	bus      domain.SignalBus
	audit    domain.AuditStore
	notifier Notifier
	metrics  Recorder
	logger   *slog.Logger
}

// Option configures optional Engine collaborators.
type Option func(*Engine)

// WithLocks serialises ScanAndSettle across processes.
func WithLocks(locks domain.LockManager, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locks = locks
		if ttl > 0 {
			e.lockTTL = ttl
		}
	}
}

// WithBus publishes a SettlementEvent for every settled trade.
func WithBus(bus domain.SignalBus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithAudit records every settlement in the audit log.
func WithAudit(audit domain.AuditStore) Option {
	return func(e *Engine) { e.audit = audit }
}

// WithNotifier sends a trade_settled notification for every settled trade.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.metrics = r }
}

// NewEngine creates an Engine over the trade ledger and price oracle.
func NewEngine(trades domain.TradeStore, oracle domain.PriceOracle, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		trades:  trades,
		oracle:  oracle,
		lockTTL: 2 * time.Minute,
		logger:  logger.With(slog.String("component", "settlement")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Settle records an explicit outcome for a pending trade. The settlement
// price is informational only: when the oracle is unavailable it is recorded
// as zero.
func (e *Engine) Settle(ctx context.Context, tradeID string, exercised bool) (domain.Trade, error) {
	t, err := e.trades.GetByID(ctx, tradeID)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("settlement: load trade %s: %w", tradeID, err)
	}
	if t.IsSettled() {
		return domain.Trade{}, fmt.Errorf("settlement: trade %s: %w", tradeID, domain.ErrAlreadySettled)
	}

	price := decimal.Zero
	prices, err := e.oracle.CurrentPrices(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "settlement price unavailable, recording zero",
			slog.String("trade_id", tradeID),
			slog.String("error", err.Error()),
		)
	} else if p := prices.Of(t.Coin); p.IsPositive() {
		price = p
	}

	amount, currency := Payout(t, exercised)
	settled, err := e.trades.Settle(ctx, tradeID, domain.Settlement{
		Exercised:       exercised,
		SettlementPrice: price,
		OutputAmount:    amount,
		OutputCurrency:  currency,
		SettledAt:       time.Now().UTC(),
	})
	if err != nil {
		e.recordFailure(failureReason(err))
		return domain.Trade{}, fmt.Errorf("settlement: settle trade %s: %w", tradeID, err)
	}

	e.afterSettle(ctx, settled, TriggerManual)
	return settled, nil
}

// ScanAndSettle settles every pending trade whose expiry is at or before now.
// Only a live quote fetched at or after a trade's expiry decides it; a
// cached quote skips the whole pass. A trade that cannot be settled is
// logged and left pending for the next scan; only a failure to list due
// trades is returned as an error.
func (e *Engine) ScanAndSettle(ctx context.Context, now time.Time) ([]domain.Trade, error) {
	if e.locks != nil {
		unlock, err := e.locks.Acquire(ctx, scanLockKey, e.lockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			e.logger.InfoContext(ctx, "settlement scan already running elsewhere")
			return []domain.Trade{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("settlement: acquire scan lock: %w", err)
		}
		defer unlock()
	}

	due, err := e.trades.ListDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("settlement: list due trades: %w", err)
	}
	settled := make([]domain.Trade, 0, len(due))
	if len(due) == 0 {
		return settled, nil
	}

	prices, err := e.oracle.CurrentPrices(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "settlement scan skipped, no price",
			slog.Int("due", len(due)),
			slog.String("error", err.Error()),
		)
		for range due {
			e.recordFailure("price_unavailable")
		}
		e.notify(ctx, "price_degraded", "Settlement scan skipped",
			fmt.Sprintf("%d due trade(s) left pending: %v", len(due), err))
		return settled, nil
	}
	if prices.Cached() {
		// Settlement is final; a replayed quote may predate expiry.
		e.logger.WarnContext(ctx, "settlement scan skipped, only cached prices",
			slog.Int("due", len(due)),
			slog.Time("fetched_at", prices.FetchedAt),
		)
		for range due {
			e.recordFailure("price_stale")
		}
		e.notify(ctx, "price_degraded", "Settlement scan skipped",
			fmt.Sprintf("%d due trade(s) left pending: live price sources unavailable", len(due)))
		return settled, nil
	}

	for _, t := range due {
		if t.IsSettled() || t.ExpiryTime.After(now) {
			continue
		}
		if !prices.FetchedAt.IsZero() && prices.FetchedAt.Before(t.ExpiryTime) {
			e.logger.WarnContext(ctx, "settlement skipped, quote predates expiry",
				slog.String("trade_id", t.ID),
				slog.Time("fetched_at", prices.FetchedAt),
				slog.Time("expiry", t.ExpiryTime),
			)
			e.recordFailure("price_stale")
			continue
		}
		ref := prices.Of(t.Coin)
		if !ref.IsPositive() {
			e.logger.WarnContext(ctx, "settlement skipped, non-positive price",
				slog.String("trade_id", t.ID),
				slog.String("coin", string(t.Coin)),
			)
			e.recordFailure("price_unavailable")
			continue
		}

		out := Resolve(t, ref)
		result, err := e.trades.Settle(ctx, t.ID, domain.Settlement{
			Exercised:       out.Exercised,
			SettlementPrice: out.SettlementPrice,
			OutputAmount:    out.OutputAmount,
			OutputCurrency:  out.OutputCurrency,
			SettledAt:       now.UTC(),
		})
		if err != nil {
			reason := failureReason(err)
			e.recordFailure(reason)
			if reason == "already_settled" {
				e.logger.InfoContext(ctx, "trade settled concurrently", slog.String("trade_id", t.ID))
				continue
			}
			e.logger.ErrorContext(ctx, "settle trade failed",
				slog.String("trade_id", t.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		e.afterSettle(ctx, result, TriggerScheduled)
		settled = append(settled, result)
	}

	e.logger.InfoContext(ctx, "settlement scan complete",
		slog.Int("due", len(due)),
		slog.Int("settled", len(settled)),
	)
	return settled, nil
}

func (e *Engine) afterSettle(ctx context.Context, t domain.Trade, trigger string) {
	exercised := t.Exercised != nil && *t.Exercised
	if e.metrics != nil {
		e.metrics.RecordSettlement(trigger, exercised)
	}

	evt := newEvent(t, trigger)
	e.logger.InfoContext(ctx, "trade settled",
		slog.String("trade_id", t.ID),
		slog.String("trigger", trigger),
		slog.Bool("exercised", exercised),
		slog.String("output", evt.OutputAmount+" "+string(evt.OutputCurrency)),
	)

	if e.bus != nil {
		payload, _ := json.Marshal(evt)
		if err := e.bus.Publish(ctx, domain.ChannelSettlements, payload); err != nil {
			e.logger.WarnContext(ctx, "publish settlement event failed", slog.String("error", err.Error()))
		}
		if err := e.bus.StreamAppend(ctx, domain.StreamSettlements, payload); err != nil {
			e.logger.WarnContext(ctx, "append settlement stream failed", slog.String("error", err.Error()))
		}
	}

	if e.audit != nil {
		if err := e.audit.Log(ctx, "trade.settled", map[string]any{
			"trade_id":         t.ID,
			"trigger":          trigger,
			"exercised":        exercised,
			"settlement_price": evt.SettlementPrice,
			"output_amount":    evt.OutputAmount,
			"output_currency":  string(evt.OutputCurrency),
		}); err != nil {
			e.logger.WarnContext(ctx, "audit settlement failed", slog.String("error", err.Error()))
		}
	}

	e.notify(ctx, "trade_settled",
		fmt.Sprintf("%s %s note settled", t.Coin, t.Direction),
		fmt.Sprintf("platform=%s exercised=%t price=%s output=%s %s",
			t.Platform, exercised, evt.SettlementPrice, evt.OutputAmount, evt.OutputCurrency))
}

func (e *Engine) notify(ctx context.Context, event, title, msg string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, event, title, msg); err != nil {
		e.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) recordFailure(reason string) {
	if e.metrics != nil {
		e.metrics.RecordSettlementFailure(reason)
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrAlreadySettled):
		return "already_settled"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "store_error"
	}
}

func newEvent(t domain.Trade, trigger string) domain.SettlementEvent {
	evt := domain.SettlementEvent{
		TradeID:   t.ID,
		Platform:  t.Platform,
		Coin:      t.Coin,
		Direction: t.Direction,
		Trigger:   trigger,
	}
	if t.Exercised != nil {
		evt.Exercised = *t.Exercised
	}
	if t.SettlementPrice != nil {
		evt.SettlementPrice = t.SettlementPrice.String()
	}
	if t.OutputAmount != nil {
		evt.OutputAmount = t.OutputAmount.String()
	}
	if t.OutputCurrency != nil {
		evt.OutputCurrency = *t.OutputCurrency
	}
	if t.SettledAt != nil {
		evt.SettledAt = *t.SettledAt
	}
	return evt
}
