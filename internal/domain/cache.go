package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PriceCache keeps the last good quote per coin.
type PriceCache interface {
	SetPrice(ctx context.Context, coin Currency, price decimal.Decimal, ts time.Time) error
	GetPrice(ctx context.Context, coin Currency) (decimal.Decimal, time.Time, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
	// StreamLatest returns up to count newest entries, newest first.
	StreamLatest(ctx context.Context, stream string, count int) ([]StreamMessage, error)
}

// Bus channel and stream names.
const (
	ChannelPrices      = "prices"
	ChannelSettlements = "settlements"
	StreamSettlements  = "stream:settlements"
)
