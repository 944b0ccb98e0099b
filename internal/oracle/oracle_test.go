package oracle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	binance "github.com/adshao/go-binance/v2"

	"github.com/alanyoungcy/dualtrack/internal/domain"
)

const cmcBody = `{
  "status": {"error_code": 0, "error_message": null},
  "data": {
    "BTC": {"symbol": "BTC", "quote": {"USD": {"price": 97123.4567}}},
    "ETH": {"symbol": "ETH", "quote": {"USD": {"price": 3401.25}}}
  }
}`

func TestCoinMarketCapCurrentPrices(t *testing.T) {
	var gotKey, gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-CMC_PRO_API_KEY")
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(cmcBody))
	}))
	defer srv.Close()

	c := NewCoinMarketCap(srv.URL, "secret", 600, time.Second)
	p, err := c.CurrentPrices(context.Background())
	if err != nil {
		t.Fatalf("CurrentPrices: %v", err)
	}
	if gotKey != "secret" {
		t.Fatalf("api key header=%q", gotKey)
	}
	if gotPath != "/v1/cryptocurrency/quotes/latest" || gotQuery != "symbol=BTC,ETH&convert=USD" {
		t.Fatalf("request=%s?%s", gotPath, gotQuery)
	}
	if p.BTC.String() != "97123.4567" || p.ETH.String() != "3401.25" || p.Source != "coinmarketcap" {
		t.Fatalf("prices=%+v", p)
	}
}

func TestCoinMarketCapErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{}`, domain.ErrUnauthorized},
		{"rate limited", http.StatusTooManyRequests, `{}`, domain.ErrRateLimited},
		{"missing coin", http.StatusOK, `{"status":{"error_code":0},"data":{"BTC":{"quote":{"USD":{"price":1}}}}}`, domain.ErrPriceUnavailable},
		{"zero price", http.StatusOK, `{"status":{"error_code":0},"data":{"BTC":{"quote":{"USD":{"price":0}}},"ETH":{"quote":{"USD":{"price":1}}}}}`, domain.ErrPriceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewCoinMarketCap(srv.URL, "k", 600, time.Second).CurrentPrices(context.Background())
			if !errors.Is(err, tc.want) {
				t.Fatalf("err=%v want %v", err, tc.want)
			}
		})
	}
}

func TestCoinMarketCapAPIErrorCode(t *testing.T) {
	c := NewCoinMarketCap("http://unused", "k", 1, time.Second)
	_, err := c.parseQuotes([]byte(`{"status":{"error_code":1002,"error_message":"API key missing."}}`))
	if err == nil {
		t.Fatal("api error accepted")
	}
}

func TestBinanceCurrentPrices(t *testing.T) {
	b := &Binance{
		list: func(_ context.Context, symbols []string) ([]*binance.SymbolPrice, error) {
			if len(symbols) != 2 {
				t.Fatalf("symbols=%v", symbols)
			}
			return []*binance.SymbolPrice{
				{Symbol: "ETHUSDT", Price: "3400.10000000"},
				{Symbol: "BTCUSDT", Price: "97000.01000000"},
				{Symbol: "BNBUSDT", Price: "700"},
			}, nil
		},
		now: time.Now,
	}
	p, err := b.CurrentPrices(context.Background())
	if err != nil {
		t.Fatalf("CurrentPrices: %v", err)
	}
	if p.BTC.String() != "97000.01" || p.ETH.String() != "3400.1" {
		t.Fatalf("prices=%s/%s", p.BTC, p.ETH)
	}
}

func TestBinanceMissingSymbol(t *testing.T) {
	b := &Binance{
		list: func(context.Context, []string) ([]*binance.SymbolPrice, error) {
			return []*binance.SymbolPrice{{Symbol: "BTCUSDT", Price: "97000"}}, nil
		},
		now: time.Now,
	}
	if _, err := b.CurrentPrices(context.Background()); !errors.Is(err, domain.ErrPriceUnavailable) {
		t.Fatalf("err=%v want ErrPriceUnavailable", err)
	}
}
