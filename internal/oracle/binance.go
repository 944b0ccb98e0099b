package oracle

import (
	"context"
	"fmt"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dualtrack/internal/domain"
)

var binanceSymbols = map[string]domain.Currency{
	"BTCUSDT": domain.BTC,
	"ETHUSDT": domain.ETH,
}

// Binance reads spot last prices from the public ticker endpoint. USDT is
// treated as USD.
type Binance struct {
	list func(ctx context.Context, symbols []string) ([]*binance.SymbolPrice, error)
	now  func() time.Time
}

// NewBinance creates an unauthenticated spot client. An empty baseURL uses
// the library default.
func NewBinance(baseURL string) *Binance {
	client := binance.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	return &Binance{
		list: func(ctx context.Context, symbols []string) ([]*binance.SymbolPrice, error) {
			return client.NewListPricesService().Symbols(symbols).Do(ctx)
		},
		now: time.Now,
	}
}

// Name identifies the source in logs and metrics.
func (b *Binance) Name() string { return "binance" }

// CurrentPrices fetches BTCUSDT and ETHUSDT.
func (b *Binance) CurrentPrices(ctx context.Context) (domain.Prices, error) {
	symbols := make([]string, 0, len(binanceSymbols))
	for s := range binanceSymbols {
		symbols = append(symbols, s)
	}
	res, err := b.list(ctx, symbols)
	if err != nil {
		return domain.Prices{}, fmt.Errorf("binance: list prices: %w", err)
	}

	p := domain.Prices{Source: b.Name(), FetchedAt: b.now().UTC()}
	for _, sp := range res {
		if sp == nil {
			continue
		}
		coin, ok := binanceSymbols[sp.Symbol]
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(sp.Price)
		if err != nil {
			return domain.Prices{}, fmt.Errorf("binance: parse %s price %q: %w", sp.Symbol, sp.Price, err)
		}
		switch coin {
		case domain.BTC:
			p.BTC = price
		case domain.ETH:
			p.ETH = price
		}
	}
	return validate("binance", p)
}

var _ Source = (*Binance)(nil)
