package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dualtrack/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

var errStore = errors.New("connection refused")

type memAssets struct {
	assets map[domain.Currency]domain.Asset
	err    error
}

func (m *memAssets) List(context.Context) ([]domain.Asset, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Asset
	for _, a := range m.assets {
		out = append(out, a)
	}
	return out, nil
}

func (m *memAssets) Upsert(_ context.Context, a domain.Asset) (domain.Asset, error) {
	if m.err != nil {
		return domain.Asset{}, m.err
	}
	if m.assets == nil {
		m.assets = map[domain.Currency]domain.Asset{}
	}
	a.UpdatedAt = time.Now()
	m.assets[a.Currency] = a
	return a, nil
}

type memTrades struct {
	mu     sync.Mutex
	trades []domain.Trade
	err    error
}

func (m *memTrades) Create(_ context.Context, t domain.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, t)
	return nil
}

func (m *memTrades) GetByID(_ context.Context, id string) (domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.trades {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Trade{}, domain.ErrNotFound
}

func (m *memTrades) List(context.Context) ([]domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := append([]domain.Trade(nil), m.trades...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memTrades) ListDue(context.Context, time.Time) ([]domain.Trade, error) { return nil, nil }

func (m *memTrades) ListCreatedBefore(context.Context, time.Time) ([]domain.Trade, error) {
	return nil, nil
}

func (m *memTrades) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.trades {
		if t.ID == id {
			m.trades = append(m.trades[:i], m.trades[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memTrades) Settle(context.Context, string, domain.Settlement) (domain.Trade, error) {
	return domain.Trade{}, errors.New("not used")
}

type memAudit struct {
	events []string
}

func (m *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	m.events = append(m.events, event)
	return nil
}

func (m *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type stubOracle struct {
	prices domain.Prices
	err    error
}

func (o stubOracle) CurrentPrices(context.Context) (domain.Prices, error) { return o.prices, o.err }

type stubSource struct {
	name string
	stubOracle
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) CurrentPrices(ctx context.Context) (domain.Prices, error) {
	s.calls++
	return s.stubOracle.CurrentPrices(ctx)
}

type memPriceCache struct {
	prices map[domain.Currency]decimal.Decimal
	ts     map[domain.Currency]time.Time
}

func newMemPriceCache() *memPriceCache {
	return &memPriceCache{prices: map[domain.Currency]decimal.Decimal{}, ts: map[domain.Currency]time.Time{}}
}

func (c *memPriceCache) SetPrice(_ context.Context, coin domain.Currency, p decimal.Decimal, ts time.Time) error {
	c.prices[coin] = p
	c.ts[coin] = ts
	return nil
}

func (c *memPriceCache) GetPrice(_ context.Context, coin domain.Currency) (decimal.Decimal, time.Time, error) {
	p, ok := c.prices[coin]
	if !ok {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}
	return p, c.ts[coin], nil
}

type recordingBus struct {
	published map[string]int
}

func (b *recordingBus) Publish(_ context.Context, channel string, _ []byte) error {
	if b.published == nil {
		b.published = map[string]int{}
	}
	b.published[channel]++
	return nil
}

func (b *recordingBus) Subscribe(context.Context, string) (<-chan []byte, error) { return nil, nil }

func (b *recordingBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *recordingBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func (b *recordingBus) StreamLatest(context.Context, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}
