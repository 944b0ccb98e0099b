// Package valuation derives balances and profit from the trade ledger. Every
// figure is recomputed from the full ledger on each call.
package valuation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dualtrack/internal/domain"
)

// Balances maps each tracked currency to an amount.
type Balances map[domain.Currency]decimal.Decimal

// NewBalances returns balances with every currency at zero.
func NewBalances() Balances {
	b := make(Balances, len(domain.Currencies))
	for _, c := range domain.Currencies {
		b[c] = decimal.Zero
	}
	return b
}

// Get returns the amount for c, zero when absent.
func (b Balances) Get(c domain.Currency) decimal.Decimal {
	return b[c]
}

func (b Balances) add(c domain.Currency, amt decimal.Decimal) {
	b[c] = b[c].Add(amt)
}

func (b Balances) clone() Balances {
	out := make(Balances, len(b))
	for c, v := range b {
		out[c] = v
	}
	return out
}

// Holdings is the reconstructed state of the book.
type Holdings struct {
	Available Balances
	Locked    Balances
	Total     Balances
	// ExercisedProjection is Available plus the exercise payout of every
	// pending trade, as if all of them exercised now.
	ExercisedProjection Balances
	// Anomalies lists settled trades whose output fields are missing.
	Anomalies []string
}

// Reconstruct replays the ledger over the initial assets.
func Reconstruct(assets []domain.Asset, trades []domain.Trade) Holdings {
	h := Holdings{
		Available: NewBalances(),
		Locked:    NewBalances(),
	}
	for _, a := range assets {
		h.Available[a.Currency] = a.InitialAmount
	}

	var pendingPayout []domain.Trade
	for _, t := range trades {
		switch t.Status {
		case domain.StatusSettled:
			h.Available.add(t.InputCurrency, t.InputAmount.Neg())
			if t.OutputAmount == nil || t.OutputCurrency == nil {
				h.Anomalies = append(h.Anomalies, fmt.Sprintf("trade %s settled without output", t.ID))
				continue
			}
			h.Available.add(*t.OutputCurrency, *t.OutputAmount)
		case domain.StatusPending:
			h.Available.add(t.InputCurrency, t.InputAmount.Neg())
			h.Locked.add(t.InputCurrency, t.InputAmount)
			pendingPayout = append(pendingPayout, t)
		}
	}

	h.Total = NewBalances()
	for _, c := range domain.Currencies {
		h.Total[c] = h.Available.Get(c).Add(h.Locked.Get(c))
	}

	h.ExercisedProjection = h.Available.clone()
	for _, t := range pendingPayout {
		h.ExercisedProjection.add(t.ExerciseCurrency, t.ExerciseAmount)
	}
	return h
}

// LedgerSummary is a diagnostic view of the ledger.
type LedgerSummary struct {
	PendingCount int
	SettledCount int
	Pending      []domain.Trade
	Locked       Balances
}

// Summarize counts trades by status and sums locked principal.
func Summarize(trades []domain.Trade) LedgerSummary {
	s := LedgerSummary{Locked: NewBalances()}
	for _, t := range trades {
		switch t.Status {
		case domain.StatusPending:
			s.PendingCount++
			s.Pending = append(s.Pending, t)
			s.Locked.add(t.InputCurrency, t.InputAmount)
		case domain.StatusSettled:
			s.SettledCount++
		}
	}
	return s
}
