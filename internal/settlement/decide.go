// Package settlement decides and records the outcome of expired
// dual-currency notes.
package settlement

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dualtrack/internal/domain"
)

// Outcome is the result of resolving a trade against a reference price.
type Outcome struct {
	Exercised       bool
	SettlementPrice decimal.Decimal
	OutputAmount    decimal.Decimal
	OutputCurrency  domain.Currency
}

// Decide reports whether a note with the given direction and strike is
// exercised at the reference price. A price exactly at the strike is never
// an exercise.
func Decide(direction domain.Direction, strike, reference decimal.Decimal) bool {
	switch direction {
	case domain.BuyLow:
		return reference.LessThan(strike)
	case domain.SellHigh:
		return reference.GreaterThan(strike)
	}
	return false
}

// Payout returns what the owner receives for t given the exercise decision.
func Payout(t domain.Trade, exercised bool) (decimal.Decimal, domain.Currency) {
	if exercised {
		return t.ExerciseAmount, t.ExerciseCurrency
	}
	return t.InputAmount.Add(t.Premium), t.InputCurrency
}

// Resolve combines Decide and Payout for one trade.
func Resolve(t domain.Trade, reference decimal.Decimal) Outcome {
	exercised := Decide(t.Direction, t.StrikePrice, reference)
	amount, currency := Payout(t, exercised)
	return Outcome{
		Exercised:       exercised,
		SettlementPrice: reference,
		OutputAmount:    amount,
		OutputCurrency:  currency,
	}
}
