package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dualtrack/internal/domain"
)

// PriceCache implements domain.PriceCache. Each coin is a hash at
// "{prefix}:price:{COIN}" with fields "price" (decimal string) and "ts"
// (unix nanoseconds).
type PriceCache struct {
	client *Client
	ttl    time.Duration
}

// NewPriceCache creates a PriceCache. A ttl of zero keeps entries forever.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	return &PriceCache{client: c, ttl: ttl}
}

// SetPrice stores the latest quote for coin.
func (pc *PriceCache) SetPrice(ctx context.Context, coin domain.Currency, price decimal.Decimal, ts time.Time) error {
	key := pc.client.Key("price", string(coin))
	rdb := pc.client.Underlying()

	pipe := rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"price": price.String(),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	})
	if pc.ttl > 0 {
		pipe.Expire(ctx, key, pc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set price %s: %w", coin, err)
	}
	return nil
}

// GetPrice returns the cached quote for coin or domain.ErrNotFound.
func (pc *PriceCache) GetPrice(ctx context.Context, coin domain.Currency) (decimal.Decimal, time.Time, error) {
	vals, err := pc.client.Underlying().HGetAll(ctx, pc.client.Key("price", string(coin))).Result()
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: get price %s: %w", coin, err)
	}
	return decodePrice(coin, vals)
}

func decodePrice(coin domain.Currency, vals map[string]string) (decimal.Decimal, time.Time, error) {
	priceStr, ok := vals["price"]
	if !ok {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: price %s: %w", coin, domain.ErrNotFound)
	}
	tsStr, ok := vals["ts"]
	if !ok {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: price %s ts: %w", coin, domain.ErrNotFound)
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: parse price %s: %w", coin, err)
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", coin, err)
	}
	return price, time.Unix(0, tsNano).UTC(), nil
}

var _ domain.PriceCache = (*PriceCache)(nil)
