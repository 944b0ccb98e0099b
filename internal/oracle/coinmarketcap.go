package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/dualtrack/internal/domain"
)

// DefaultCoinMarketCapURL is the production API root.
const DefaultCoinMarketCapURL = "https://pro-api.coinmarketcap.com"

// CoinMarketCap reads the latest USD quotes for BTC and ETH.
type CoinMarketCap struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
}

// NewCoinMarketCap creates a client. requestsPerMinute bounds outbound calls
// so a busy dashboard cannot exhaust the API plan.
func NewCoinMarketCap(baseURL, apiKey string, requestsPerMinute int, timeout time.Duration) *CoinMarketCap {
	if baseURL == "" {
		baseURL = DefaultCoinMarketCapURL
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 30
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CoinMarketCap{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 2),
		now:        time.Now,
	}
}

// Name identifies the source in logs and metrics.
func (c *CoinMarketCap) Name() string { return "coinmarketcap" }

type cmcQuoteResponse struct {
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
	Data map[string]struct {
		Quote struct {
			USD struct {
				Price decimal.Decimal `json:"price"`
			} `json:"USD"`
		} `json:"quote"`
	} `json:"data"`
}

// CurrentPrices fetches BTC and ETH in one request.
func (c *CoinMarketCap) CurrentPrices(ctx context.Context) (domain.Prices, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.Prices{}, fmt.Errorf("coinmarketcap: rate limit wait: %w", err)
	}

	body, err := c.doGet(ctx, "/v1/cryptocurrency/quotes/latest?symbol=BTC,ETH&convert=USD")
	if err != nil {
		return domain.Prices{}, fmt.Errorf("coinmarketcap: quotes: %w", err)
	}
	return c.parseQuotes(body)
}

func (c *CoinMarketCap) parseQuotes(body []byte) (domain.Prices, error) {
	var resp cmcQuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Prices{}, fmt.Errorf("coinmarketcap: decode quotes: %w", err)
	}
	if resp.Status.ErrorCode != 0 {
		return domain.Prices{}, fmt.Errorf("coinmarketcap: api error %d: %s",
			resp.Status.ErrorCode, resp.Status.ErrorMessage)
	}
	return validate("coinmarketcap", domain.Prices{
		BTC:       resp.Data["BTC"].Quote.USD.Price,
		ETH:       resp.Data["ETH"].Quote.USD.Price,
		Source:    c.Name(),
		FetchedAt: c.now().UTC(),
	})
}

func (c *CoinMarketCap) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-CMC_PRO_API_KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

var _ Source = (*CoinMarketCap)(nil)
