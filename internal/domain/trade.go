package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one dual-currency note. The settlement fields are nil while the
// trade is pending and all set once it is settled.
type Trade struct {
	ID               string          `json:"id"`
	ParentID         *string         `json:"parentId"` // rollover predecessor; not owning
	Platform         string          `json:"platform"`
	Coin             Currency        `json:"coin"`
	Direction        Direction       `json:"direction"`
	InputAmount      decimal.Decimal `json:"inputAmount"`
	InputCurrency    Currency        `json:"inputCurrency"`
	StrikePrice      decimal.Decimal `json:"strikePrice"`
	ExpiryTime       time.Time       `json:"expiryTime"`
	APR              decimal.Decimal `json:"apr"`
	Premium          decimal.Decimal `json:"premium"`
	ExerciseAmount   decimal.Decimal `json:"exerciseAmount"`
	ExerciseCurrency Currency        `json:"exerciseCurrency"`
	Status           TradeStatus     `json:"status"`

	Exercised       *bool            `json:"exercised"`
	SettlementPrice *decimal.Decimal `json:"settlementPrice"`
	OutputAmount    *decimal.Decimal `json:"outputAmount"`
	OutputCurrency  *Currency        `json:"outputCurrency"`
	SettledAt       *time.Time       `json:"settledAt"`

	CreatedAt time.Time `json:"createdAt"`
}

// Settlement is the set of fields written when a trade transitions to settled.
type Settlement struct {
	Exercised       bool
	SettlementPrice decimal.Decimal
	OutputAmount    decimal.Decimal
	OutputCurrency  Currency
	SettledAt       time.Time
}

// IsSettled reports whether the trade has been settled.
func (t Trade) IsSettled() bool {
	return t.Status == StatusSettled
}

// WithSettlement returns a copy of t marked settled with s applied.
func (t Trade) WithSettlement(s Settlement) Trade {
	ex := s.Exercised
	price := s.SettlementPrice
	amt := s.OutputAmount
	cur := s.OutputCurrency
	at := s.SettledAt
	t.Status = StatusSettled
	t.Exercised = &ex
	t.SettlementPrice = &price
	t.OutputAmount = &amt
	t.OutputCurrency = &cur
	t.SettledAt = &at
	return t
}

// Validate checks that the settlement fields agree with the status.
func (t Trade) Validate() error {
	set := 0
	if t.Exercised != nil {
		set++
	}
	if t.SettlementPrice != nil {
		set++
	}
	if t.OutputAmount != nil {
		set++
	}
	if t.OutputCurrency != nil {
		set++
	}
	if t.SettledAt != nil {
		set++
	}
	switch t.Status {
	case StatusPending:
		if set != 0 {
			return fmt.Errorf("%w: pending trade %s carries settlement fields", ErrInvalidTrade, t.ID)
		}
	case StatusSettled:
		if set != 5 {
			return fmt.Errorf("%w: settled trade %s is missing settlement fields", ErrInvalidTrade, t.ID)
		}
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTrade, t.Status)
	}
	return nil
}

// TradeInput carries the user-supplied fields of a new trade.
type TradeInput struct {
	ParentID         *string
	Platform         string
	Coin             Currency
	Direction        Direction
	InputAmount      decimal.Decimal
	InputCurrency    Currency // derived from Direction when empty
	StrikePrice      decimal.Decimal
	ExpiryTime       time.Time
	APR              decimal.Decimal
	Premium          decimal.Decimal
	ExerciseAmount   decimal.Decimal
	ExerciseCurrency Currency // derived from Direction when empty
}

// NewTrade validates in and builds a pending trade with the given id.
//
// buy_low notes take USDT in and deliver the coin on exercise; sell_high
// notes take the coin in and deliver USDT.
func NewTrade(id string, in TradeInput, now time.Time) (Trade, error) {
	var problems []string

	if strings.TrimSpace(in.Platform) == "" {
		problems = append(problems, "platform is required")
	}
	if !in.Coin.IsCoin() {
		problems = append(problems, fmt.Sprintf("coin must be BTC or ETH, got %q", in.Coin))
	}
	if !in.Direction.Valid() {
		problems = append(problems, fmt.Sprintf("unknown direction %q", in.Direction))
	}

	wantIn, wantEx := conventionalCurrencies(in.Direction, in.Coin)
	if in.InputCurrency == "" {
		in.InputCurrency = wantIn
	}
	if in.ExerciseCurrency == "" {
		in.ExerciseCurrency = wantEx
	}
	if in.Direction.Valid() && in.Coin.IsCoin() {
		if in.InputCurrency != wantIn {
			problems = append(problems, fmt.Sprintf("%s input currency must be %s", in.Direction, wantIn))
		}
		if in.ExerciseCurrency != wantEx {
			problems = append(problems, fmt.Sprintf("%s exercise currency must be %s", in.Direction, wantEx))
		}
	}

	if !in.InputAmount.IsPositive() {
		problems = append(problems, "input amount must be > 0")
	}
	if !in.StrikePrice.IsPositive() {
		problems = append(problems, "strike price must be > 0")
	}
	if !in.ExerciseAmount.IsPositive() {
		problems = append(problems, "exercise amount must be > 0")
	}
	if in.Premium.IsNegative() {
		problems = append(problems, "premium must be >= 0")
	}
	if in.APR.IsNegative() {
		problems = append(problems, "apr must be >= 0")
	}
	if in.ExpiryTime.IsZero() {
		problems = append(problems, "expiry time is required")
	}

	if len(problems) > 0 {
		return Trade{}, fmt.Errorf("%w: %s", ErrInvalidTrade, strings.Join(problems, "; "))
	}

	return Trade{
		ID:               id,
		ParentID:         in.ParentID,
		Platform:         strings.ToLower(strings.TrimSpace(in.Platform)),
		Coin:             in.Coin,
		Direction:        in.Direction,
		InputAmount:      in.InputAmount,
		InputCurrency:    in.InputCurrency,
		StrikePrice:      in.StrikePrice,
		ExpiryTime:       in.ExpiryTime.UTC(),
		APR:              in.APR,
		Premium:          in.Premium,
		ExerciseAmount:   in.ExerciseAmount,
		ExerciseCurrency: in.ExerciseCurrency,
		Status:           StatusPending,
		CreatedAt:        now.UTC(),
	}, nil
}

func conventionalCurrencies(d Direction, coin Currency) (input, exercise Currency) {
	switch d {
	case BuyLow:
		return USDT, coin
	case SellHigh:
		return coin, USDT
	}
	return "", ""
}

// ChildrenOf groups trades by their ParentID. Trades whose parent is not
// present in the slice are still indexed under the dangling id.
func ChildrenOf(trades []Trade) map[string][]Trade {
	out := make(map[string][]Trade)
	for _, t := range trades {
		if t.ParentID == nil || *t.ParentID == "" {
			continue
		}
		out[*t.ParentID] = append(out[*t.ParentID], t)
	}
	for id := range out {
		kids := out[id]
		sort.SliceStable(kids, func(i, j int) bool {
			return kids[i].CreatedAt.Before(kids[j].CreatedAt)
		})
	}
	return out
}
