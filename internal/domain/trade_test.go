package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func validInput() TradeInput {
	return TradeInput{
		Platform:       "Binance",
		Coin:           BTC,
		Direction:      BuyLow,
		InputAmount:    dec("1000"),
		StrikePrice:    dec("50000"),
		ExpiryTime:     time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC),
		APR:            dec("36.5"),
		Premium:        dec("5"),
		ExerciseAmount: dec("0.02"),
	}
}

func TestNewTradeDerivesCurrencies(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tr, err := NewTrade("t1", validInput(), now)
	if err != nil {
		t.Fatalf("NewTrade: %v", err)
	}
	if tr.InputCurrency != USDT || tr.ExerciseCurrency != BTC {
		t.Fatalf("buy_low currencies=%s/%s want USDT/BTC", tr.InputCurrency, tr.ExerciseCurrency)
	}
	if tr.Status != StatusPending || tr.Platform != "binance" {
		t.Fatalf("status=%s platform=%s", tr.Status, tr.Platform)
	}
	if err := tr.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	in := validInput()
	in.Direction = SellHigh
	in.Coin = ETH
	tr, err = NewTrade("t2", in, now)
	if err != nil {
		t.Fatalf("NewTrade sell_high: %v", err)
	}
	if tr.InputCurrency != ETH || tr.ExerciseCurrency != USDT {
		t.Fatalf("sell_high currencies=%s/%s want ETH/USDT", tr.InputCurrency, tr.ExerciseCurrency)
	}
}

func TestNewTradeRejects(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name   string
		mutate func(*TradeInput)
	}{
		{"no platform", func(in *TradeInput) { in.Platform = " " }},
		{"usdt coin", func(in *TradeInput) { in.Coin = USDT }},
		{"bad direction", func(in *TradeInput) { in.Direction = "sideways" }},
		{"zero input", func(in *TradeInput) { in.InputAmount = decimal.Zero }},
		{"zero strike", func(in *TradeInput) { in.StrikePrice = decimal.Zero }},
		{"negative premium", func(in *TradeInput) { in.Premium = dec("-1") }},
		{"no expiry", func(in *TradeInput) { in.ExpiryTime = time.Time{} }},
		{"wrong input currency", func(in *TradeInput) { in.InputCurrency = BTC }},
		{"wrong exercise currency", func(in *TradeInput) { in.ExerciseCurrency = ETH }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			if _, err := NewTrade("x", in, now); !errors.Is(err, ErrInvalidTrade) {
				t.Fatalf("err=%v want ErrInvalidTrade", err)
			}
		})
	}
}

func TestWithSettlementSetsAllFields(t *testing.T) {
	tr, err := NewTrade("t1", validInput(), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	settled := tr.WithSettlement(Settlement{
		Exercised:       true,
		SettlementPrice: dec("48000"),
		OutputAmount:    dec("0.02"),
		OutputCurrency:  BTC,
		SettledAt:       time.Now(),
	})
	if err := settled.Validate(); err != nil {
		t.Fatalf("Validate settled: %v", err)
	}
	if tr.IsSettled() {
		t.Fatal("original trade was mutated")
	}

	broken := settled
	broken.OutputAmount = nil
	if err := broken.Validate(); !errors.Is(err, ErrInvalidTrade) {
		t.Fatalf("partial settlement err=%v want ErrInvalidTrade", err)
	}
}

func TestChildrenOfDoesNotRequireParent(t *testing.T) {
	p := "parent"
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := []Trade{
		{ID: "c2", ParentID: &p, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "c1", ParentID: &p, CreatedAt: base.Add(time.Hour)},
		{ID: "solo"},
	}
	got := ChildrenOf(trades)
	kids := got["parent"]
	if len(kids) != 2 || kids[0].ID != "c1" || kids[1].ID != "c2" {
		t.Fatalf("children=%v", kids)
	}
	if _, ok := got["solo"]; ok {
		t.Fatal("trade without children indexed")
	}
}
