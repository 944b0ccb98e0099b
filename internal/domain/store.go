package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries. EventPrefix, when set,
// restricts audit entries to events starting with it, e.g. "trade.".
type ListOpts struct {
	Limit       int
	Offset      int
	EventPrefix string
}

// AssetStore persists the initial-asset records, one per currency.
type AssetStore interface {
	List(ctx context.Context) ([]Asset, error)
	Upsert(ctx context.Context, asset Asset) (Asset, error)
}

// TradeStore persists the trade ledger.
type TradeStore interface {
	Create(ctx context.Context, trade Trade) error
	GetByID(ctx context.Context, id string) (Trade, error)
	// List returns every trade, newest first.
	List(ctx context.Context) ([]Trade, error)
	// ListDue returns pending trades with expiry at or before now, oldest
	// expiry first.
	ListDue(ctx context.Context, now time.Time) ([]Trade, error)
	ListCreatedBefore(ctx context.Context, before time.Time) ([]Trade, error)
	Delete(ctx context.Context, id string) error
	// Settle transitions a pending trade to settled. It returns
	// ErrAlreadySettled when the trade is no longer pending and ErrNotFound
	// when it does not exist.
	Settle(ctx context.Context, id string, s Settlement) (Trade, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
