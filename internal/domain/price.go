package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Prices is a USD quote for each priced coin.
type Prices struct {
	BTC       decimal.Decimal
	ETH       decimal.Decimal
	Source    string
	FetchedAt time.Time
}

// PriceSourceCache is the Source of a quote replayed from the last-good
// cache instead of fetched from a live source.
const PriceSourceCache = "cache"

// Cached reports whether p was replayed from the cache.
func (p Prices) Cached() bool {
	return p.Source == PriceSourceCache
}

// Of returns the USD price of c. USDT is always 1.
func (p Prices) Of(c Currency) decimal.Decimal {
	switch c {
	case BTC:
		return p.BTC
	case ETH:
		return p.ETH
	case USDT:
		return decimal.NewFromInt(1)
	}
	return decimal.Zero
}

// Usable reports whether both coin prices are strictly positive.
func (p Prices) Usable() bool {
	return p.BTC.IsPositive() && p.ETH.IsPositive()
}

// PriceOracle returns the current USD prices of BTC and ETH.
type PriceOracle interface {
	CurrentPrices(ctx context.Context) (Prices, error)
}
