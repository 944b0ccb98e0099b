package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dualtrack/internal/domain"
	"github.com/alanyoungcy/dualtrack/internal/service"
	"github.com/alanyoungcy/dualtrack/internal/valuation"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func do(h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	h(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func pendingTrade(id string) domain.Trade {
	return domain.Trade{
		ID:               id,
		Platform:         "binance",
		Coin:             domain.BTC,
		Direction:        domain.BuyLow,
		InputAmount:      decimal.NewFromInt(10000),
		InputCurrency:    domain.USDT,
		StrikePrice:      decimal.NewFromInt(95000),
		ExpiryTime:       time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC),
		Premium:          decimal.NewFromInt(50),
		ExerciseAmount:   decimal.RequireFromString("0.105263"),
		ExerciseCurrency: domain.BTC,
		Status:           domain.StatusPending,
	}
}

type stubSettler struct {
	trade domain.Trade
	err   error
}

func (s stubSettler) Settle(context.Context, string, bool) (domain.Trade, error) {
	return s.trade, s.err
}

func TestSettleStatusCodes(t *testing.T) {
	settled := pendingTrade("t1").WithSettlement(domain.Settlement{
		Exercised:       true,
		SettlementPrice: decimal.NewFromInt(94000),
		OutputAmount:    decimal.RequireFromString("0.105263"),
		OutputCurrency:  domain.BTC,
		SettledAt:       time.Now().UTC(),
	})
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"ok", `{"tradeId":"t1","exercised":true}`, nil, http.StatusOK},
		{"missing exercised", `{"tradeId":"t1"}`, nil, http.StatusBadRequest},
		{"missing id", `{"exercised":false}`, nil, http.StatusBadRequest},
		{"bad json", `{`, nil, http.StatusBadRequest},
		{"not found", `{"tradeId":"x","exercised":false}`, domain.ErrNotFound, http.StatusNotFound},
		{"already settled", `{"tradeId":"t1","exercised":false}`,
			fmt.Errorf("settlement: %w", domain.ErrAlreadySettled), http.StatusConflict},
		{"store", `{"tradeId":"t1","exercised":false}`, errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		h := NewSettleHandler(stubSettler{trade: settled, err: tt.err}, quietLogger())
		w := do(h.Settle, http.MethodPost, "/api/settle", tt.body)
		if w.Code != tt.want {
			t.Fatalf("%s: status=%d want=%d body=%s", tt.name, w.Code, tt.want, w.Body)
		}
	}

	w := do(NewSettleHandler(stubSettler{trade: settled}, quietLogger()).Settle,
		http.MethodPost, "/api/settle", `{"tradeId":"t1","exercised":true}`)
	var out tradeDTO
	decodeBody(t, w, &out)
	if out.Status != domain.StatusSettled || out.OutputCurrency == nil || *out.OutputCurrency != domain.BTC {
		t.Fatalf("out=%+v", out)
	}
	if !out.OutputAmount.Equal(decimal.RequireFromString("0.105263")) {
		t.Fatalf("outputAmount=%s", out.OutputAmount)
	}
}

type memTradeService struct {
	views   []service.TradeView
	created domain.TradeInput
	deleted string
	err     error
}

func (m *memTradeService) List(context.Context) ([]service.TradeView, error) { return m.views, m.err }

func (m *memTradeService) Get(_ context.Context, id string) (service.TradeView, error) {
	for _, v := range m.views {
		if v.ID == id {
			return v, nil
		}
	}
	return service.TradeView{}, domain.ErrNotFound
}

func (m *memTradeService) Create(_ context.Context, in domain.TradeInput) (domain.Trade, error) {
	m.created = in
	if m.err != nil {
		return domain.Trade{}, m.err
	}
	return domain.NewTrade("new-id", in, time.Now())
}

func (m *memTradeService) Delete(_ context.Context, id string) error {
	m.deleted = id
	return m.err
}

func TestCreateTrade(t *testing.T) {
	svc := &memTradeService{}
	h := NewTradeHandler(svc, quietLogger())
	body := `{"platform":"Binance","coin":"btc","direction":"buy_low","inputAmount":"10000",
		"strikePrice":95000,"expiryTime":"2025-01-10T16:00","apr":"12.5","premium":"50",
		"exerciseAmount":"0.105263","parentId":""}`
	w := do(h.CreateTrade, http.MethodPost, "/api/trades", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body)
	}
	if svc.created.ParentID != nil {
		t.Fatal("empty parentId should be nil")
	}
	// 16:00 in UTC+8 is 08:00 UTC.
	if want := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC); !svc.created.ExpiryTime.Equal(want) {
		t.Fatalf("expiry=%s want=%s", svc.created.ExpiryTime, want)
	}
	var out tradeDTO
	decodeBody(t, w, &out)
	if out.InputCurrency != domain.USDT || out.ExerciseCurrency != domain.BTC || out.Platform != "binance" {
		t.Fatalf("out=%+v", out)
	}
}

func TestCreateTradeRejectsBadInput(t *testing.T) {
	h := NewTradeHandler(&memTradeService{}, quietLogger())
	for _, body := range []string{
		`{"coin":"USDT","direction":"buy_low","expiryTime":"2025-01-10T16:00"}`,
		`{"coin":"BTC","direction":"sideways","expiryTime":"2025-01-10T16:00"}`,
		`{"coin":"BTC","direction":"buy_low","expiryTime":"tomorrow"}`,
		`{"coin":"BTC","direction":"buy_low","expiryTime":"2025-01-10T16:00","bogus":1}`,
	} {
		if w := do(h.CreateTrade, http.MethodPost, "/api/trades", body); w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status=%d", body, w.Code)
		}
	}

	invalid := &memTradeService{err: fmt.Errorf("trade_service: %w: parent missing", domain.ErrInvalidTrade)}
	w := do(NewTradeHandler(invalid, quietLogger()).CreateTrade, http.MethodPost, "/api/trades",
		`{"platform":"okx","coin":"ETH","direction":"sell_high","inputAmount":"1","strikePrice":"4000",
		  "expiryTime":"2025-01-10T16:00","premium":"0.01","exerciseAmount":"4000","parentId":"nope"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestDeleteTradeByQuery(t *testing.T) {
	svc := &memTradeService{}
	h := NewTradeHandler(svc, quietLogger())
	if w := do(h.DeleteTrade, http.MethodDelete, "/api/trades?id=abc", ""); w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if svc.deleted != "abc" {
		t.Fatalf("deleted=%q", svc.deleted)
	}
	if w := do(h.DeleteTrade, http.MethodDelete, "/api/trades", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("missing id status=%d", w.Code)
	}
}

func TestListTradesIncludesChildren(t *testing.T) {
	parent := pendingTrade("p")
	child := pendingTrade("c")
	child.ParentID = &parent.ID
	svc := &memTradeService{views: []service.TradeView{
		{Trade: child, Parent: &parent},
		{Trade: parent, Children: []domain.Trade{child}},
	}}
	w := do(NewTradeHandler(svc, quietLogger()).ListTrades, http.MethodGet, "/api/trades", "")
	var out []tradeViewDTO
	decodeBody(t, w, &out)
	if len(out) != 2 || out[0].Parent == nil || out[0].Parent.ID != "p" || len(out[1].Children) != 1 {
		t.Fatalf("out=%+v", out)
	}
}

type stubStats struct{ stats service.Stats }

func (s stubStats) ComputeStats(context.Context) service.Stats { return s.stats }

type stubOracle struct {
	prices domain.Prices
	err    error
}

func (s stubOracle) CurrentPrices(context.Context) (domain.Prices, error) { return s.prices, s.err }

func TestStatsAlwaysOK(t *testing.T) {
	degraded := service.Stats{
		Holdings: valuation.Holdings{
			Available: valuation.Balances{domain.USDT: decimal.NewFromInt(5000)},
		},
		NetWorthUSDT:  decimal.NewFromInt(5000),
		PriceDegraded: true,
		Anchor:        valuation.Anchor{Date: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	h := NewStatsHandler(stubStats{degraded}, stubOracle{err: domain.ErrPriceUnavailable}, quietLogger())
	w := do(h.GetStats, http.MethodGet, "/api/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var out statsDTO
	decodeBody(t, w, &out)
	if !out.PriceDegraded || !out.NetWorthUSDT.Equal(decimal.NewFromInt(5000)) || out.Anchor.Date != "2025-01-01" {
		t.Fatalf("out=%+v", out)
	}
	if out.ProfitByPlatform == nil {
		t.Fatal("profitByPlatform should be an empty object")
	}
}

func TestStatsPayloadShape(t *testing.T) {
	fetched := time.Date(2025, 3, 1, 7, 50, 0, 0, time.UTC)
	st := service.Stats{
		Prices:     domain.Prices{BTC: decimal.NewFromInt(90000), ETH: decimal.NewFromInt(3000), Source: domain.PriceSourceCache, FetchedAt: fetched},
		PriceStale: true,
		Profit: valuation.Report{
			USDT: valuation.Numeraire{Initial: decimal.NewFromInt(10000), Current: decimal.NewFromInt(11000), Profit: decimal.NewFromInt(1000), Rate: decimal.NewFromInt(10)},
			ETH:  valuation.Numeraire{Profit: decimal.RequireFromString("0.5")},
			BTC:  valuation.Numeraire{Profit: decimal.RequireFromString("0.01")},
		},
	}
	h := NewStatsHandler(stubStats{st}, stubOracle{}, quietLogger())
	w := do(h.GetStats, http.MethodGet, "/api/stats", "")

	var raw map[string]json.RawMessage
	decodeBody(t, w, &raw)
	for _, flat := range []string{"usdt", "eth", "btc"} {
		if _, ok := raw[flat]; ok {
			t.Fatalf("unexpected top-level %q in %s", flat, w.Body.String())
		}
	}
	var out statsDTO
	decodeBody(t, w, &out)
	if !out.PriceStale || out.PriceDegraded {
		t.Fatalf("priceStale=%t priceDegraded=%t", out.PriceStale, out.PriceDegraded)
	}
	if out.Prices.Source != domain.PriceSourceCache || out.Prices.FetchedAt == nil || !out.Prices.FetchedAt.Equal(fetched) {
		t.Fatalf("prices=%+v", out.Prices)
	}
	tests := []struct {
		key    string
		profit string
	}{
		{"USDT", "1000"},
		{"ETH", "0.5"},
		{"BTC", "0.01"},
	}
	for _, tc := range tests {
		n, ok := out.Numeraires[tc.key]
		if !ok || !n.Profit.Equal(decimal.RequireFromString(tc.profit)) {
			t.Fatalf("numeraires[%s]=%+v ok=%t", tc.key, n, ok)
		}
	}
	if !out.Numeraires["USDT"].Rate.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("usdt rate=%s", out.Numeraires["USDT"].Rate)
	}
}

func TestPriceUnavailable(t *testing.T) {
	h := NewStatsHandler(stubStats{}, stubOracle{err: fmt.Errorf("price_service: %w", domain.ErrPriceUnavailable)}, quietLogger())
	if w := do(h.GetPrice, http.MethodGet, "/api/price", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}

	h = NewStatsHandler(stubStats{}, stubOracle{prices: domain.Prices{
		BTC: decimal.NewFromInt(97000), ETH: decimal.NewFromInt(3400), Source: "coinmarketcap",
	}}, quietLogger())
	w := do(h.GetPrice, http.MethodGet, "/api/price", "")
	var out pricesDTO
	decodeBody(t, w, &out)
	if !out.BTC.Equal(decimal.NewFromInt(97000)) || out.Source != "coinmarketcap" {
		t.Fatalf("out=%+v", out)
	}
}

type stubScanner struct {
	settled []domain.Trade
	err     error
}

func (s stubScanner) ScanAndSettle(context.Context, time.Time) ([]domain.Trade, error) {
	return s.settled, s.err
}

type gauge struct{ n int }

func (g *gauge) SetLastScanSettled(n int) { g.n = n }

func TestCronRunScan(t *testing.T) {
	g := &gauge{n: -1}
	h := NewCronHandler(stubScanner{settled: []domain.Trade{pendingTrade("a"), pendingTrade("b")}}, g, quietLogger())
	w := do(h.RunScan, http.MethodPost, "/api/cron", "")
	var out cronResponse
	decodeBody(t, w, &out)
	if w.Code != http.StatusOK || !out.Success || out.Settled != 2 || len(out.Results) != 2 || g.n != 2 {
		t.Fatalf("status=%d out=%+v gauge=%d", w.Code, out, g.n)
	}

	w = do(NewCronHandler(stubScanner{err: errors.New("db")}, nil, quietLogger()).RunScan, http.MethodGet, "/api/cron", "")
	decodeBody(t, w, &out)
	if w.Code != http.StatusInternalServerError || out.Success {
		t.Fatalf("status=%d out=%+v", w.Code, out)
	}
}

type stubLedger struct{ summary valuation.LedgerSummary }

func (s stubLedger) Ledger(context.Context) (valuation.LedgerSummary, error) { return s.summary, nil }

type stubAssets struct{ assets []domain.Asset }

func (s stubAssets) List(context.Context) ([]domain.Asset, error) { return s.assets, nil }

func (s stubAssets) Upsert(_ context.Context, c domain.Currency, amt decimal.Decimal) (domain.Asset, error) {
	if amt.IsNegative() {
		return domain.Asset{}, domain.ErrInvalidAsset
	}
	return domain.Asset{Currency: c, InitialAmount: amt}, nil
}

type stubAudit []domain.AuditEntry

func (s stubAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return s, nil
}

func TestDebug(t *testing.T) {
	summary := valuation.Summarize([]domain.Trade{pendingTrade("a"), pendingTrade("b")})
	audit := stubAudit{{Event: "trade.created", CreatedAt: time.Now()}}
	h := NewDebugHandler(stubLedger{summary}, stubAssets{}, nil, audit, nil, quietLogger())
	w := do(h.Debug, http.MethodGet, "/api/debug", "")
	var out struct {
		TotalTrades        int                        `json:"totalTrades"`
		PendingTradesCount int                        `json:"pendingTradesCount"`
		CalculatedLocked   map[string]decimal.Decimal `json:"calculatedLocked"`
		RecentAudit        []struct {
			Event string `json:"event"`
		} `json:"recentAudit"`
		Snapshots []domain.BlobInfo `json:"snapshots"`
	}
	decodeBody(t, w, &out)
	if out.TotalTrades != 2 || out.PendingTradesCount != 2 {
		t.Fatalf("out=%+v", out)
	}
	if len(out.RecentAudit) != 1 || out.RecentAudit[0].Event != "trade.created" {
		t.Fatalf("audit=%+v", out.RecentAudit)
	}
	if out.Snapshots == nil {
		t.Fatal("snapshots should be an empty list, not null")
	}
	if !out.CalculatedLocked["USDT"].Equal(decimal.NewFromInt(20000)) {
		t.Fatalf("locked=%v", out.CalculatedLocked)
	}
}

func TestUpsertAsset(t *testing.T) {
	h := NewAssetHandler(stubAssets{}, quietLogger())
	tests := []struct {
		body string
		want int
	}{
		{`{"currency":"usdt","initialAmount":"10000"}`, http.StatusOK},
		{`{"currency":"DOGE","initialAmount":"1"}`, http.StatusBadRequest},
		{`{"currency":"BTC"}`, http.StatusBadRequest},
		{`{"currency":"BTC","initialAmount":"-1"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := do(h.UpsertAsset, http.MethodPost, "/api/assets", tt.body); w.Code != tt.want {
			t.Fatalf("%s: status=%d want=%d", tt.body, w.Code, tt.want)
		}
	}
}

func TestHealthReportsDependencies(t *testing.T) {
	h := NewHealthHandler(map[string]HealthChecker{
		"postgres": HealthCheckFunc(func(context.Context) error { return nil }),
		"redis":    HealthCheckFunc(func(context.Context) error { return errors.New("refused") }),
	}, quietLogger())
	w := do(h.HealthCheck, http.MethodGet, "/api/health", "")
	var out struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	decodeBody(t, w, &out)
	if w.Code != http.StatusServiceUnavailable || out.Dependencies["redis"] != "down" || out.Dependencies["postgres"] != "up" {
		t.Fatalf("status=%d out=%+v", w.Code, out)
	}
}
