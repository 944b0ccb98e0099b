// Package oracle fetches live BTC and ETH USD prices from market data APIs.
package oracle

import (
	"context"
	"fmt"
	"net/http"

	"github.com/alanyoungcy/dualtrack/internal/domain"
)

// Source is one upstream price feed.
type Source interface {
	Name() string
	CurrentPrices(ctx context.Context) (domain.Prices, error)
}

func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	bodyStr := string(body)
	if len(bodyStr) > 256 {
		bodyStr = bodyStr[:256]
	}
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

func validate(source string, p domain.Prices) (domain.Prices, error) {
	if !p.Usable() {
		return domain.Prices{}, fmt.Errorf("%s: non-positive quote btc=%s eth=%s: %w",
			source, p.BTC, p.ETH, domain.ErrPriceUnavailable)
	}
	return p, nil
}
