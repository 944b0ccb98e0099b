package valuation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dualtrack/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Anchor is the fixed price pair used to value the initial assets.
type Anchor struct {
	Date time.Time
	BTC  decimal.Decimal
	ETH  decimal.Decimal
}

// Prices returns the anchor as a price pair.
func (a Anchor) Prices() domain.Prices {
	return domain.Prices{BTC: a.BTC, ETH: a.ETH, Source: "anchor", FetchedAt: a.Date}
}

// Numeraire is profit measured in one unit of account.
type Numeraire struct {
	Unit    domain.Currency
	Initial decimal.Decimal
	Current decimal.Decimal
	Profit  decimal.Decimal
	Rate    decimal.Decimal // percent
}

// Report is the full profit picture for one snapshot.
type Report struct {
	USDT             Numeraire
	ETH              Numeraire
	BTC              Numeraire
	ProfitByPlatform map[string]decimal.Decimal
}

// ValueUSDT values b in USD at prices p.
func ValueUSDT(b Balances, p domain.Prices) decimal.Decimal {
	return b.Get(domain.USDT).
		Add(b.Get(domain.BTC).Mul(p.BTC)).
		Add(b.Get(domain.ETH).Mul(p.ETH))
}

// ValueIn values b in units of the given coin. A zero price for the unit
// coin is replaced by 1.
func ValueIn(unit domain.Currency, b Balances, p domain.Prices) decimal.Decimal {
	if unit == domain.USDT {
		return ValueUSDT(b, p)
	}
	unitPrice := p.Of(unit)
	if unitPrice.IsZero() {
		unitPrice = decimal.NewFromInt(1)
	}
	other := domain.BTC
	if unit == domain.BTC {
		other = domain.ETH
	}
	return b.Get(unit).
		Add(b.Get(domain.USDT).Div(unitPrice)).
		Add(b.Get(other).Mul(p.Of(other)).Div(unitPrice))
}

func newNumeraire(unit domain.Currency, initial, current decimal.Decimal) Numeraire {
	n := Numeraire{
		Unit:    unit,
		Initial: initial,
		Current: current,
		Profit:  current.Sub(initial),
		Rate:    decimal.Zero,
	}
	if initial.IsPositive() {
		n.Rate = n.Profit.Div(initial).Mul(hundred)
	}
	return n
}

// Compute values the initial assets at the anchor and the current total at
// live prices in each numeraire, and attributes settled-trade profit to
// platforms.
func Compute(assets []domain.Asset, h Holdings, trades []domain.Trade, live domain.Prices, anchor Anchor) Report {
	initial := NewBalances()
	for _, a := range assets {
		initial[a.Currency] = a.InitialAmount
	}
	anchorPrices := anchor.Prices()

	r := Report{ProfitByPlatform: make(map[string]decimal.Decimal)}
	r.USDT = newNumeraire(domain.USDT, ValueUSDT(initial, anchorPrices), ValueUSDT(h.Total, live))
	r.ETH = newNumeraire(domain.ETH, ValueIn(domain.ETH, initial, anchorPrices), ValueIn(domain.ETH, h.Total, live))
	r.BTC = newNumeraire(domain.BTC, ValueIn(domain.BTC, initial, anchorPrices), ValueIn(domain.BTC, h.Total, live))

	for _, t := range trades {
		if t.Status != domain.StatusSettled || t.OutputAmount == nil || t.OutputCurrency == nil {
			continue
		}
		out := t.OutputAmount.Mul(live.Of(*t.OutputCurrency))
		in := t.InputAmount.Mul(live.Of(t.InputCurrency))
		r.ProfitByPlatform[t.Platform] = r.ProfitByPlatform[t.Platform].Add(out.Sub(in))
	}
	return r
}
