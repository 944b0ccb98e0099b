package valuation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dualtrack/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func scenarioAssets() []domain.Asset {
	return []domain.Asset{{Currency: domain.USDT, InitialAmount: d("1000")}}
}

func scenarioTrade() domain.Trade {
	return domain.Trade{
		ID:               "t1",
		Platform:         "binance",
		Coin:             domain.ETH,
		Direction:        domain.BuyLow,
		InputAmount:      d("500"),
		InputCurrency:    domain.USDT,
		StrikePrice:      d("2000"),
		Premium:          d("5"),
		ExerciseAmount:   d("0.26"),
		ExerciseCurrency: domain.ETH,
		Status:           domain.StatusPending,
	}
}

func settle(t domain.Trade, exercised bool, price string) domain.Trade {
	amt, cur := t.ExerciseAmount, t.ExerciseCurrency
	if !exercised {
		amt, cur = t.InputAmount.Add(t.Premium), t.InputCurrency
	}
	return t.WithSettlement(domain.Settlement{
		Exercised:       exercised,
		SettlementPrice: d(price),
		OutputAmount:    amt,
		OutputCurrency:  cur,
		SettledAt:       time.Now(),
	})
}

func wantBalance(t *testing.T, name string, b Balances, c domain.Currency, want string) {
	t.Helper()
	if b.Get(c).Cmp(d(want)) != 0 {
		t.Fatalf("%s.%s=%s want=%s", name, c, b.Get(c), want)
	}
}

// Scenario A.
func TestReconstructPendingLocksPrincipal(t *testing.T) {
	h := Reconstruct(scenarioAssets(), []domain.Trade{scenarioTrade()})

	wantBalance(t, "available", h.Available, domain.USDT, "500")
	wantBalance(t, "locked", h.Locked, domain.USDT, "500")
	wantBalance(t, "total", h.Total, domain.USDT, "1000")
	wantBalance(t, "projection", h.ExercisedProjection, domain.USDT, "500")
	wantBalance(t, "projection", h.ExercisedProjection, domain.ETH, "0.26")
	wantBalance(t, "total", h.Total, domain.BTC, "0")
}

// Scenarios B and C.
func TestReconstructSettled(t *testing.T) {
	cases := []struct {
		name      string
		exercised bool
		usdt      string
		eth       string
	}{
		{"exercised", true, "500", "0.26"},
		{"not exercised", false, "1005", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := settle(scenarioTrade(), tc.exercised, "1800")
			h := Reconstruct(scenarioAssets(), []domain.Trade{tr})

			wantBalance(t, "available", h.Available, domain.USDT, tc.usdt)
			wantBalance(t, "available", h.Available, domain.ETH, tc.eth)
			wantBalance(t, "locked", h.Locked, domain.USDT, "0")
			wantBalance(t, "total", h.Total, domain.USDT, tc.usdt)
		})
	}
}

func TestReconstructAdditivity(t *testing.T) {
	btcSell := domain.Trade{
		ID: "t2", Platform: "okx", Coin: domain.BTC, Direction: domain.SellHigh,
		InputAmount: d("0.1"), InputCurrency: domain.BTC, StrikePrice: d("100000"),
		Premium: d("0.001"), ExerciseAmount: d("10000"), ExerciseCurrency: domain.USDT,
		Status: domain.StatusPending,
	}
	assets := []domain.Asset{
		{Currency: domain.USDT, InitialAmount: d("1000")},
		{Currency: domain.BTC, InitialAmount: d("0.5")},
	}
	trades := []domain.Trade{settle(scenarioTrade(), true, "1800"), btcSell}

	h := Reconstruct(assets, trades)
	for _, c := range domain.Currencies {
		sum := h.Available.Get(c).Add(h.Locked.Get(c))
		if h.Total.Get(c).Cmp(sum) != 0 {
			t.Fatalf("total.%s=%s available+locked=%s", c, h.Total.Get(c), sum)
		}
		if h.Locked.Get(c).IsPositive() && h.Total.Get(c).LessThan(h.Available.Get(c)) {
			t.Fatalf("total.%s below available", c)
		}
	}
	wantBalance(t, "available", h.Available, domain.BTC, "0.4")
	wantBalance(t, "total", h.Total, domain.BTC, "0.5")
	wantBalance(t, "projection", h.ExercisedProjection, domain.USDT, "10500")
}

func TestReconstructConservation(t *testing.T) {
	pending := Reconstruct(scenarioAssets(), []domain.Trade{scenarioTrade()})
	settled := Reconstruct(scenarioAssets(), []domain.Trade{settle(scenarioTrade(), false, "2200")})

	delta := settled.Total.Get(domain.USDT).Sub(pending.Total.Get(domain.USDT))
	if delta.Cmp(d("5")) != 0 {
		t.Fatalf("usdt delta=%s want premium 5", delta)
	}
}

func TestReconstructFlagsMissingOutput(t *testing.T) {
	broken := scenarioTrade()
	broken.Status = domain.StatusSettled
	h := Reconstruct(scenarioAssets(), []domain.Trade{broken})
	if len(h.Anomalies) != 1 {
		t.Fatalf("anomalies=%v", h.Anomalies)
	}
	wantBalance(t, "available", h.Available, domain.USDT, "500")
}

func TestSummarize(t *testing.T) {
	s := Summarize([]domain.Trade{scenarioTrade(), settle(scenarioTrade(), true, "1")})
	if s.PendingCount != 1 || s.SettledCount != 1 || len(s.Pending) != 1 {
		t.Fatalf("summary=%+v", s)
	}
	wantBalance(t, "locked", s.Locked, domain.USDT, "500")
}
